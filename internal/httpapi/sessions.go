package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/selectqoma/eva-voice-bot/internal/store"
	"github.com/selectqoma/eva-voice-bot/internal/voice"
)

type sessionResponse struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customer_id,omitempty"`
	Voice          string    `json:"voice"`
	Status         string    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	all := s.sessions.List()
	out := make([]sessionResponse, 0, len(all))
	for _, sess := range all {
		out = append(out, sessionResponse{
			ID:             sess.ID,
			CustomerID:     sess.CustomerID,
			Voice:          sess.VoiceKey,
			Status:         string(sess.Status),
			StartedAt:      sess.StartedAt,
			LastActivityAt: sess.LastActivityAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"active":   s.sessions.ActiveCount(),
	})
}

type createSessionRequest struct {
	CustomerID string `json:"customer_id"`
}

// handleCreateSession provisions a Daily room for a customer call and
// records the session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if s.rooms == nil {
		respondError(w, http.StatusServiceUnavailable, "room provisioning not configured")
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CustomerID == "" {
		respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	customer, err := s.store.GetCustomer(req.CustomerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	room, err := s.rooms.CreateRoom(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	token, err := s.rooms.CreateToken(r.Context(), room.Name, false)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	voiceKey := customer.VoiceID
	if voiceKey == "" {
		voiceKey = voice.DefaultVoiceKey
	}
	record := s.sessions.Create(customer.ID, voiceKey)

	respondJSON(w, http.StatusCreated, map[string]string{
		"session_id":  record.ID,
		"customer_id": customer.ID,
		"room_name":   room.Name,
		"room_url":    room.URL,
		"token":       token,
	})
}
