package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selectqoma/eva-voice-bot/internal/protocol"
	"github.com/selectqoma/eva-voice-bot/internal/store"
	"github.com/selectqoma/eva-voice-bot/internal/voice"
)

const (
	maxInboundMessage = 1 << 20
	readDeadline      = 90 * time.Second
	writeDeadline     = 10 * time.Second
	channelBuffer     = 256
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if s.cfg.AllowAnyOrigin {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return strings.Contains(origin, r.Host)
		},
	}
}

// handleVoiceStream upgrades the connection and runs one conversation
// on it.
func (s *Server) handleVoiceStream(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("voice stream: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Missing upstream credentials surface as an in-band error so the
	// client sees why the call cannot start.
	if s.cfg.DeepgramAPIKey == "" || s.cfg.GroqAPIKey == "" {
		_ = conn.WriteJSON(protocol.NewError("voice service not configured"))
		return
	}

	customerID := r.URL.Query().Get("customer_id")
	sessCfg := s.sessionConfig(customerID)
	if requested := r.URL.Query().Get("voice"); requested != "" {
		sessCfg.VoiceKey = requested
	}

	record := s.sessions.Create(customerID, sessCfg.VoiceKey)
	sessCfg.SessionID = record.ID
	s.metrics.ActiveSessions.Inc()
	s.metrics.SessionEvents.WithLabelValues("started").Inc()
	defer func() {
		s.sessions.End(record.ID)
		s.metrics.ActiveSessions.Dec()
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, channelBuffer)
	outbound := make(chan any, channelBuffer)

	go s.readClient(ctx, conn, record.ID, inbound)
	go s.writeClient(ctx, conn, record.ID, outbound)

	if err := s.pipeline.Run(ctx, sessCfg, inbound, outbound); err != nil &&
		!errors.Is(err, context.Canceled) {
		log.Printf("session %s: pipeline ended: %v", record.ID, err)
	}
	// Give the writer a moment to flush queued events before the
	// deferred close tears the socket down.
	time.Sleep(100 * time.Millisecond)
}

// sessionConfig builds per-connection parameters, folding in the
// customer's bot profile when one is configured.
func (s *Server) sessionConfig(customerID string) voice.SessionConfig {
	cfg := voice.SessionConfig{
		CustomerID:        customerID,
		SystemPrompt:      defaultSystemPrompt,
		Greeting:          "Hi! How can I help you today?",
		VoiceKey:          voice.DefaultVoiceKey,
		Format:            voice.AudioFormat{Encoding: "linear16", SampleRate: 16000, Channels: 1},
		HistoryLimit:      s.cfg.HistoryLimit,
		MaxTokens:         s.cfg.MaxResponseTokens,
		Temperature:       s.cfg.Temperature,
		KeepAliveInterval: s.cfg.KeepAliveInterval,
	}
	if customerID == "" {
		return cfg
	}
	customer, err := s.store.GetCustomer(customerID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("voice stream: load customer %s: %v", customerID, err)
		}
		return cfg
	}
	cfg.SystemPrompt = customerSystemPrompt(customer)
	if customer.Greeting != "" {
		cfg.Greeting = customer.Greeting
	}
	if customer.VoiceID != "" {
		cfg.VoiceKey = customer.VoiceID
	}
	return cfg
}

const defaultSystemPrompt = "You are Eva, a friendly voice assistant. " +
	"Keep answers short and conversational, one or two sentences, " +
	"since they will be spoken aloud."

func customerSystemPrompt(c store.Customer) string {
	var b strings.Builder
	name := c.BotName
	if name == "" {
		name = "Eva"
	}
	b.WriteString("You are " + name + ", a voice assistant")
	if c.CompanyName != "" {
		b.WriteString(" for " + c.CompanyName)
	}
	b.WriteString(". ")
	if c.Personality != "" {
		b.WriteString(c.Personality + " ")
	}
	b.WriteString("Keep answers short and conversational, one or two " +
		"sentences, since they will be spoken aloud.")
	return b.String()
}

// readClient forwards client frames to the pipeline until the socket
// closes. Binary frames carry PCM audio, text frames carry control
// messages.
func (s *Server) readClient(ctx context.Context, conn *websocket.Conn, sessionID string, inbound chan<- any) {
	defer close(inbound)
	conn.SetReadLimit(maxInboundMessage)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("session %s: read: %v", sessionID, err)
			}
			return
		}
		s.sessions.Touch(sessionID)

		var msg any
		switch msgType {
		case websocket.BinaryMessage:
			s.metrics.WSMessages.WithLabelValues("in", "audio").Inc()
			msg = protocol.AudioFrame{PCM: raw}
		case websocket.TextMessage:
			parsed, err := protocol.ParseClientMessage(raw)
			if err != nil {
				log.Printf("session %s: drop inbound message: %v", sessionID, err)
				continue
			}
			s.metrics.WSMessages.WithLabelValues("in", "control").Inc()
			if cfg, ok := parsed.(protocol.Config); ok {
				s.sessions.SetVoice(sessionID, cfg.Voice)
			}
			msg = parsed
		default:
			continue
		}

		select {
		case inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// writeClient serializes pipeline events onto the socket in order.
func (s *Server) writeClient(ctx context.Context, conn *websocket.Conn, sessionID string, outbound <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("session %s: write: %v", sessionID, err)
				return
			}
			s.metrics.WSMessages.WithLabelValues("out", "event").Inc()
		}
	}
}
