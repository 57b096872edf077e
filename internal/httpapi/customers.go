package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/selectqoma/eva-voice-bot/internal/store"
	"github.com/selectqoma/eva-voice-bot/internal/voice"
)

type customerRequest struct {
	CompanyName string `json:"company_name"`
	BotName     string `json:"bot_name"`
	Personality string `json:"personality"`
	Greeting    string `json:"greeting"`
	VoiceID     string `json:"voice_id"`
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CompanyName == "" {
		respondError(w, http.StatusBadRequest, "company_name is required")
		return
	}
	if req.VoiceID != "" && !voice.KnownVoice(req.VoiceID) {
		respondError(w, http.StatusBadRequest, "unknown voice")
		return
	}

	customer, err := s.store.CreateCustomer(store.Customer{
		CompanyName: req.CompanyName,
		BotName:     req.BotName,
		Personality: req.Personality,
		Greeting:    req.Greeting,
		VoiceID:     req.VoiceID,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, customer)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, _ *http.Request) {
	customers, err := s.store.ListCustomers()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.store.GetCustomer(chi.URLParam(r, "customerID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.VoiceID != "" && !voice.KnownVoice(req.VoiceID) {
		respondError(w, http.StatusBadRequest, "unknown voice")
		return
	}

	customer, err := s.store.UpdateCustomer(chi.URLParam(r, "customerID"), store.Customer{
		CompanyName: req.CompanyName,
		BotName:     req.BotName,
		Personality: req.Personality,
		Greeting:    req.Greeting,
		VoiceID:     req.VoiceID,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	if err := s.store.DeleteCustomer(customerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.ingestor.Delete(customerID); err == nil {
		s.retriever.Invalidate(customerID)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleCustomerConfig serves the public widget configuration for a
// customer. It requires no authentication.
func (s *Server) handleCustomerConfig(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	customer, err := s.store.GetCustomer(customerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"customer_id":        customer.ID,
		"bot_name":           customer.BotName,
		"greeting":           customer.Greeting,
		"voice_id":           customer.VoiceID,
		"has_knowledge_base": s.ingestor.HasKnowledgeBase(customerID),
	})
}
