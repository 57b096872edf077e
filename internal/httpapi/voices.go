package httpapi

import (
	"net/http"

	"github.com/selectqoma/eva-voice-bot/internal/voice"
)

type voicesResponse struct {
	Voices  []string `json:"voices"`
	Default string   `json:"default"`
}

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, voicesResponse{
		Voices:  voice.VoiceKeys(),
		Default: voice.DefaultVoiceKey,
	})
}
