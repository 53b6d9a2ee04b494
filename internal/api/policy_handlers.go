package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skillbridge/review-engine/internal/models"
)

// Policy handlers — read-only view of the review policy catalog

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies := s.policies.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"policies": policies,
		"total":    len(policies),
	})
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	docType := models.DocumentType(chi.URLParam(r, "type"))

	pol := s.policies.Get(docType)
	if pol == nil {
		respondError(w, http.StatusNotFound, "not_found", "no review policy for document type: "+string(docType))
		return
	}

	respondJSON(w, http.StatusOK, pol)
}
