package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/selectqoma/eva-voice-bot/internal/auth"
	"github.com/selectqoma/eva-voice-bot/internal/config"
	"github.com/selectqoma/eva-voice-bot/internal/httpapi"
	"github.com/selectqoma/eva-voice-bot/internal/memory"
	"github.com/selectqoma/eva-voice-bot/internal/observability"
	"github.com/selectqoma/eva-voice-bot/internal/rag"
	"github.com/selectqoma/eva-voice-bot/internal/rooms"
	"github.com/selectqoma/eva-voice-bot/internal/session"
	"github.com/selectqoma/eva-voice-bot/internal/store"
	"github.com/selectqoma/eva-voice-bot/internal/voice"
)

const janitorInterval = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := run(&cfg); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	turns, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer turns.Close(context.Background())

	st, err := store.New(cfg.CustomerDataPath)
	if err != nil {
		return err
	}

	var retriever voice.ContextRetriever
	var ingestor *rag.Ingestor
	var ragRetriever *rag.Retriever
	if cfg.OpenAIAPIKey != "" {
		embedder := rag.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		ingestor = rag.NewIngestor(cfg.CustomerDataPath, embedder)
		ragRetriever = rag.NewRetriever(cfg.CustomerDataPath, embedder)
		retriever = ragRetriever
	} else {
		log.Printf("no embeddings key configured, knowledge base lookups disabled")
		ingestor = rag.NewIngestor(cfg.CustomerDataPath, nil)
		ragRetriever = rag.NewRetriever(cfg.CustomerDataPath, nil)
	}

	transcriber := voice.NewDeepgramTranscriber(voice.DeepgramConfig{
		APIKey:        cfg.DeepgramAPIKey,
		WSBaseURL:     cfg.DeepgramWSBaseURL,
		Model:         cfg.DeepgramModel,
		Language:      cfg.DeepgramLanguage,
		EndpointingMS: cfg.DeepgramEndpointingMS,
	})
	completer := voice.NewGroqCompleter(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel)
	synthesizer := voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
		APIKey:       cfg.ElevenLabsAPIKey,
		BaseURL:      cfg.ElevenLabsBaseURL,
		ModelID:      cfg.ElevenLabsModelID,
		OutputFormat: cfg.ElevenLabsOutputFormat,
	})

	pipeline := voice.NewPipeline(transcriber, completer, synthesizer, retriever, turns, metrics)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s session.Session) {
		log.Printf("session %s expired after inactivity", s.ID)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
	})
	go sessions.RunJanitor(ctx.Done(), janitorInterval)

	var roomsClient *rooms.Client
	if cfg.DailyAPIKey != "" {
		roomsClient = rooms.NewClient(cfg.DailyAPIKey, cfg.DailyBaseURL)
	}

	tokens := auth.NewManager(cfg.TokenSecret, cfg.TokenTTL)
	server := httpapi.NewServer(cfg, pipeline, sessions, st, tokens, ingestor, ragRetriever, roomsClient, metrics)

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.BindAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
