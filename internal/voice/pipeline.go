package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/selectqoma/eva-voice-bot/internal/memory"
	"github.com/selectqoma/eva-voice-bot/internal/observability"
	"github.com/selectqoma/eva-voice-bot/internal/protocol"
	"github.com/selectqoma/eva-voice-bot/internal/reliability"
)

// State names a phase of the conversation loop.
type State string

const (
	StateInitializing State = "initializing"
	StateListening    State = "listening"
	StateThinking     State = "thinking"
	StateSpeaking     State = "speaking"
	StateClosed       State = "closed"
)

const (
	reconnectBackoffBase = 250 * time.Millisecond
	reconnectBackoffMax  = 2 * time.Second
	saveTurnTimeout      = 5 * time.Second
)

// SessionConfig carries the per-connection conversation parameters.
type SessionConfig struct {
	SessionID    string
	CustomerID   string
	SystemPrompt string
	Greeting     string
	VoiceKey     string
	Format       AudioFormat

	HistoryLimit      int
	MaxTokens         int
	Temperature       float64
	KeepAliveInterval time.Duration
}

// Pipeline runs voice conversations end to end: audio in, transcripts
// through the language model, synthesized speech out.
type Pipeline struct {
	transcriber Transcriber
	completer   Completer
	synthesizer Synthesizer
	retriever   ContextRetriever
	turns       memory.Store
	metrics     *observability.Metrics
}

func NewPipeline(
	transcriber Transcriber,
	completer Completer,
	synthesizer Synthesizer,
	retriever ContextRetriever,
	turns memory.Store,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		completer:   completer,
		synthesizer: synthesizer,
		retriever:   retriever,
		turns:       turns,
		metrics:     metrics,
	}
}

// run owns the state of one live conversation. All fields are accessed
// from the main loop goroutine except those guarded below.
type run struct {
	p   *Pipeline
	cfg SessionConfig

	inbound  <-chan any
	outbound chan<- any

	history *History

	mu         sync.Mutex
	processing bool
	voiceKey   string

	stt         TranscriberSession
	sttEvents   <-chan TranscriptEvent
	reconnected bool
}

// Run drives one conversation until the client disconnects, the context
// is canceled, or speech recognition fails past recovery. Inbound
// carries protocol.AudioFrame and protocol.Config values; every event
// the client should see is sent on outbound in order.
func (p *Pipeline) Run(ctx context.Context, cfg SessionConfig, inbound <-chan any, outbound chan<- any) error {
	r := &run{
		p:        p,
		cfg:      cfg,
		inbound:  inbound,
		outbound: outbound,
		history:  NewHistory(cfg.HistoryLimit),
		voiceKey: cfg.VoiceKey,
	}
	if !KnownVoice(r.voiceKey) {
		r.voiceKey = DefaultVoiceKey
	}

	if err := r.connect(ctx); err != nil {
		r.sendCritical(ctx, protocol.NewError("speech recognition unavailable"))
		return err
	}
	defer func() { _ = r.stt.Close() }()

	r.greet(ctx)

	return r.loop(ctx)
}

// connect opens the STT stream, retrying once with backoff.
func (r *run) connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(reliability.ExponentialBackoff(attempt-1, reconnectBackoffBase, reconnectBackoffMax)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		sess, events, err := r.p.transcriber.Connect(ctx, r.cfg.Format)
		if err == nil {
			r.stt = sess
			r.sttEvents = events
			return nil
		}
		lastErr = err
		r.p.metrics.ProviderErrors.WithLabelValues("stt").Inc()
		log.Printf("session %s: stt connect attempt %d failed: %v", r.cfg.SessionID, attempt+1, err)
	}
	return fmt.Errorf("stt connect: %w", lastErr)
}

// greet speaks the opening line so the caller hears the bot first.
func (r *run) greet(ctx context.Context) {
	greeting := strings.TrimSpace(r.cfg.Greeting)
	if greeting == "" {
		r.sendCritical(ctx, protocol.NewStatus(protocol.StatusListening))
		return
	}

	r.sendCritical(ctx, protocol.NewStatus(protocol.StatusSpeaking))
	r.sendCritical(ctx, protocol.NewResponse(greeting))
	r.history.Append("assistant", greeting)
	r.saveTurnBestEffort("assistant", greeting)

	if audio, err := r.synthesize(ctx, greeting); err != nil {
		log.Printf("session %s: greeting synthesis failed: %v", r.cfg.SessionID, err)
		r.sendCritical(ctx, protocol.NewError("speech synthesis failed"))
	} else {
		r.sendCritical(ctx, protocol.NewAudio(audio))
	}
	r.sendCritical(ctx, protocol.NewAudioEnd())
	r.sendCritical(ctx, protocol.NewStatus(protocol.StatusListening))
}

func (r *run) loop(ctx context.Context) error {
	keepAlive := time.NewTicker(r.cfg.KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-r.inbound:
			if !ok {
				return nil
			}
			if err := r.handleInbound(ctx, msg); err != nil {
				return err
			}

		case ev, ok := <-r.sttEvents:
			if !ok {
				if err := r.reconnect(ctx); err != nil {
					r.sendCritical(ctx, protocol.NewError("speech recognition unavailable"))
					return err
				}
				continue
			}
			if ev.Err != nil {
				r.p.metrics.ProviderErrors.WithLabelValues("stt").Inc()
				log.Printf("session %s: stt stream error: %v", r.cfg.SessionID, ev.Err)
				continue
			}
			r.handleTranscript(ctx, ev)

		case <-keepAlive.C:
			r.sendBestEffort(protocol.NewPing())
		}
	}
}

func (r *run) handleInbound(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case protocol.AudioFrame:
		if err := r.stt.SendAudio(ctx, m.PCM); err != nil {
			log.Printf("session %s: forward audio: %v", r.cfg.SessionID, err)
		}
	case protocol.Config:
		r.setVoice(m.Voice)
	default:
		log.Printf("session %s: unexpected inbound message %T", r.cfg.SessionID, msg)
	}
	return nil
}

// setVoice applies a voice change for subsequent synthesis. Unknown
// keys fall back to the default voice without interrupting the call.
func (r *run) setVoice(key string) {
	if !KnownVoice(key) {
		key = DefaultVoiceKey
	}
	r.mu.Lock()
	r.voiceKey = key
	r.mu.Unlock()
}

func (r *run) currentVoiceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ResolveVoice(r.voiceKey)
}

// reconnect replaces a dropped STT stream once per conversation.
func (r *run) reconnect(ctx context.Context) error {
	if r.reconnected {
		return errors.New("stt stream lost after reconnect")
	}
	r.reconnected = true
	_ = r.stt.Close()
	log.Printf("session %s: stt stream closed, reconnecting", r.cfg.SessionID)
	return r.connect(ctx)
}

func (r *run) handleTranscript(ctx context.Context, ev TranscriptEvent) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	if !ev.SpeechFinal {
		r.sendBestEffort(protocol.NewTranscript(text, ev.IsFinal))
		return
	}

	r.sendCritical(ctx, protocol.NewTranscript(text, true))
	if !r.tryBeginTurn() {
		r.p.metrics.TurnsDropped.Inc()
		log.Printf("session %s: dropped final transcript, turn in flight", r.cfg.SessionID)
		return
	}
	go r.runTurn(ctx, text)
}

func (r *run) tryBeginTurn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processing {
		return false
	}
	r.processing = true
	return true
}

func (r *run) endTurn() {
	r.mu.Lock()
	r.processing = false
	r.mu.Unlock()
}

// runTurn takes one finalized utterance through the model and back out
// as speech. Failures end the turn with an error event; the next final
// transcript starts fresh.
func (r *run) runTurn(ctx context.Context, text string) {
	defer r.endTurn()
	started := time.Now()
	r.p.metrics.TurnsStarted.Inc()

	r.history.Append("user", text)
	r.saveTurnBestEffort("user", text)
	r.sendCritical(ctx, protocol.NewStatus(protocol.StatusThinking))

	reply, err := r.p.completer.Complete(ctx, r.buildMessages(ctx, text), r.cfg.MaxTokens, r.cfg.Temperature)
	if err != nil {
		r.p.metrics.ProviderErrors.WithLabelValues("llm").Inc()
		log.Printf("session %s: completion failed: %v", r.cfg.SessionID, err)
		r.sendCritical(ctx, protocol.NewError("response generation failed"))
		r.sendCritical(ctx, protocol.NewStatus(protocol.StatusListening))
		return
	}

	r.history.Append("assistant", reply)
	r.saveTurnBestEffort("assistant", reply)
	r.sendCritical(ctx, protocol.NewResponse(reply))
	r.sendCritical(ctx, protocol.NewStatus(protocol.StatusSpeaking))

	if audio, err := r.synthesize(ctx, reply); err != nil {
		r.p.metrics.ProviderErrors.WithLabelValues("tts").Inc()
		log.Printf("session %s: synthesis failed: %v", r.cfg.SessionID, err)
		r.sendCritical(ctx, protocol.NewError("speech synthesis failed"))
	} else {
		r.sendCritical(ctx, protocol.NewAudio(audio))
	}
	r.sendCritical(ctx, protocol.NewAudioEnd())
	r.sendCritical(ctx, protocol.NewStatus(protocol.StatusListening))

	r.p.metrics.TurnLatency.Observe(time.Since(started).Seconds())
}

// buildMessages assembles the prompt: persona, optional retrieved
// context, then the rolling history which already includes the latest
// user turn.
func (r *run) buildMessages(ctx context.Context, query string) []Message {
	msgs := []Message{{Role: "system", Content: r.cfg.SystemPrompt}}

	if r.p.retriever != nil {
		ragCtx, err := r.p.retriever.Context(ctx, r.cfg.CustomerID, query)
		if err != nil {
			log.Printf("session %s: context retrieval failed: %v", r.cfg.SessionID, err)
		} else if ragCtx != "" {
			msgs = append(msgs, Message{
				Role:    "system",
				Content: "Relevant knowledge base context:\n" + ragCtx,
			})
		}
	}

	return append(msgs, r.history.Messages()...)
}

func (r *run) synthesize(ctx context.Context, text string) (string, error) {
	pcm, err := r.p.synthesizer.Synthesize(ctx, text, r.currentVoiceID())
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(pcm), nil
}

// sendCritical blocks until the event is accepted or the conversation
// context ends. Turn events must not be reordered or dropped.
func (r *run) sendCritical(ctx context.Context, msg any) {
	select {
	case r.outbound <- msg:
	case <-ctx.Done():
	}
}

// sendBestEffort drops the event when the client is not keeping up.
// Partial transcripts and pings are disposable.
func (r *run) sendBestEffort(msg any) {
	select {
	case r.outbound <- msg:
	default:
	}
}

func (r *run) saveTurnBestEffort(role, content string) {
	if r.p.turns == nil {
		return
	}
	rec := memory.TurnRecord{
		SessionID:  r.cfg.SessionID,
		CustomerID: r.cfg.CustomerID,
		Role:       role,
		Content:    content,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTurnTimeout)
		defer cancel()
		if err := r.p.turns.SaveTurn(ctx, rec); err != nil {
			log.Printf("session %s: save turn: %v", r.cfg.SessionID, err)
		}
	}()
}
