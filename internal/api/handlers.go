package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skillbridge/review-engine/internal/engine"
	"github.com/skillbridge/review-engine/internal/models"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// documentParams pulls the document key path parameters from a request
func documentParams(r *http.Request) (studentID string, docType models.DocumentType, docID string) {
	return chi.URLParam(r, "studentID"),
		models.DocumentType(chi.URLParam(r, "docType")),
		chi.URLParam(r, "docID")
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Eligibility handlers

func (s *Server) handleResolveMentors(w http.ResponseWriter, r *http.Request) {
	studentID, docType, docID := documentParams(r)
	if studentID == "" || docID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "student id and document id are required")
		return
	}

	res, err := s.engine.Resolve(r.Context(), studentID, docType, docID)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownDocumentType) {
			respondError(w, http.StatusNotFound, "unknown_document_type", "no review policy for document type: "+string(docType))
			return
		}
		slog.Error("failed to resolve eligible mentors", "error", err, "student_id", studentID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to resolve eligible mentors")
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleShareDocument(w http.ResponseWriter, r *http.Request) {
	studentID, docType, docID := documentParams(r)
	if studentID == "" || docID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "student id and document id are required")
		return
	}

	var req models.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.MentorID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "mentorId is required")
		return
	}

	review, err := s.engine.Share(r.Context(), studentID, docType, docID, req.MentorID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrUnknownDocumentType):
			respondError(w, http.StatusNotFound, "unknown_document_type", "no review policy for document type: "+string(docType))
		case errors.Is(err, engine.ErrAlreadyClaimed):
			respondError(w, http.StatusConflict, "already_claimed", "a review request already exists for this document")
		case errors.Is(err, engine.ErrNotEligible):
			respondError(w, http.StatusUnprocessableEntity, "not_eligible", "the chosen mentor is not eligible for this document")
		default:
			slog.Error("failed to share document", "error", err, "student_id", studentID, "mentor_id", req.MentorID)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to share document")
		}
		return
	}

	respondJSON(w, http.StatusCreated, review)
}
