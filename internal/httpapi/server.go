package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/selectqoma/eva-voice-bot/internal/auth"
	"github.com/selectqoma/eva-voice-bot/internal/config"
	"github.com/selectqoma/eva-voice-bot/internal/observability"
	"github.com/selectqoma/eva-voice-bot/internal/rag"
	"github.com/selectqoma/eva-voice-bot/internal/rooms"
	"github.com/selectqoma/eva-voice-bot/internal/session"
	"github.com/selectqoma/eva-voice-bot/internal/store"
	"github.com/selectqoma/eva-voice-bot/internal/voice"
)

var errEmptyBody = errors.New("request body is empty")

// Server exposes the REST and websocket surface of the service.
type Server struct {
	cfg       *config.Config
	pipeline  *voice.Pipeline
	sessions  *session.Manager
	store     *store.Store
	tokens    *auth.Manager
	ingestor  *rag.Ingestor
	retriever *rag.Retriever
	rooms     *rooms.Client
	metrics   *observability.Metrics
}

func NewServer(
	cfg *config.Config,
	pipeline *voice.Pipeline,
	sessions *session.Manager,
	st *store.Store,
	tokens *auth.Manager,
	ingestor *rag.Ingestor,
	retriever *rag.Retriever,
	roomsClient *rooms.Client,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:       cfg,
		pipeline:  pipeline,
		sessions:  sessions,
		store:     st,
		tokens:    tokens,
		ingestor:  ingestor,
		retriever: retriever,
		rooms:     roomsClient,
		metrics:   metrics,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/voice/stream", s.handleVoiceStream)
		r.Get("/voice/voices", s.handleListVoices)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Get("/customers/{customerID}/config", s.handleCustomerConfig)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/auth/me", s.handleMe)

			r.Post("/customers", s.handleCreateCustomer)
			r.Get("/customers", s.handleListCustomers)
			r.Get("/customers/{customerID}", s.handleGetCustomer)
			r.Put("/customers/{customerID}", s.handleUpdateCustomer)
			r.Delete("/customers/{customerID}", s.handleDeleteCustomer)

			r.Post("/customers/{customerID}/documents/ingest-text", s.handleIngestText)
			r.Post("/customers/{customerID}/documents/upload", s.handleUploadDocument)
			r.Get("/customers/{customerID}/documents/status", s.handleDocumentStatus)
			r.Delete("/customers/{customerID}/documents", s.handleDeleteDocuments)

			r.Get("/sessions", s.handleListSessions)
			r.Post("/sessions", s.handleCreateSession)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
