package httpapi

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/selectqoma/eva-voice-bot/internal/store"
)

const maxUploadSize = 5 << 20

var allowedUploadExts = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

type ingestTextRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

func (s *Server) lookupCustomer(w http.ResponseWriter, r *http.Request) (store.Customer, bool) {
	customer, err := s.store.GetCustomer(chi.URLParam(r, "customerID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "customer not found")
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return store.Customer{}, false
	}
	return customer, true
}

func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.lookupCustomer(w, r)
	if !ok {
		return
	}

	var req ingestTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	source := req.Source
	if source == "" {
		source = "pasted-text"
	}

	chunks, err := s.ingestor.IngestText(r.Context(), customer.ID, source, req.Text)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.retriever.Invalidate(customer.ID)
	respondJSON(w, http.StatusOK, map[string]any{"source": source, "chunks": chunks})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.lookupCustomer(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExts[ext] {
		respondError(w, http.StatusBadRequest, "only .txt, .md and .csv files are supported")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	chunks, err := s.ingestor.IngestText(r.Context(), customer.ID, header.Filename, string(raw))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.retriever.Invalidate(customer.ID)
	respondJSON(w, http.StatusOK, map[string]any{"source": header.Filename, "chunks": chunks})
}

func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.lookupCustomer(w, r)
	if !ok {
		return
	}

	chunks, sources, err := s.ingestor.Stats(customer.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sources == nil {
		sources = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"has_knowledge_base": s.ingestor.HasKnowledgeBase(customer.ID),
		"chunks":             chunks,
		"sources":            sources,
	})
}

func (s *Server) handleDeleteDocuments(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.lookupCustomer(w, r)
	if !ok {
		return
	}

	if err := s.ingestor.Delete(customer.ID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.retriever.Invalidate(customer.ID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
