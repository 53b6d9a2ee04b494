package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skillbridge/review-engine/internal/engine"
	"github.com/skillbridge/review-engine/internal/models"
)

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	filters := models.ReviewFilters{
		StudentID: r.URL.Query().Get("student_id"),
		MentorID:  r.URL.Query().Get("mentor_id"),
		Status:    models.ReviewStatus(r.URL.Query().Get("status")),
		Limit:     50,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filters.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filters.Offset = o
		}
	}

	reviews, err := s.engine.ListReviews(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list reviews", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list reviews")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reviews": reviews,
		"total":   len(reviews),
	})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "review id is required")
		return
	}

	review, err := s.engine.GetReview(r.Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrReviewNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "review request not found")
			return
		}
		slog.Error("failed to get review", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get review")
		return
	}

	respondJSON(w, http.StatusOK, review)
}

func (s *Server) handleSubmitVerdict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "review id is required")
		return
	}

	var verdict models.VerdictRequest
	if err := json.NewDecoder(r.Body).Decode(&verdict); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	review, err := s.engine.SubmitVerdict(r.Context(), id, verdict)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrReviewNotFound):
			respondError(w, http.StatusNotFound, "not_found", "review request not found")
		case errors.Is(err, engine.ErrReviewNotPending):
			respondError(w, http.StatusConflict, "not_pending", "review request already received a verdict")
		case errors.Is(err, engine.ErrInvalidVerdict):
			respondError(w, http.StatusBadRequest, "invalid_verdict", err.Error())
		default:
			slog.Error("failed to submit verdict", "error", err, "id", id)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to submit verdict")
		}
		return
	}

	respondJSON(w, http.StatusOK, review)
}

func (s *Server) handleReleaseClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "review id is required")
		return
	}

	if err := s.engine.ReleaseClaim(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, engine.ErrReviewNotFound):
			respondError(w, http.StatusNotFound, "not_found", "review request not found")
		case errors.Is(err, engine.ErrReviewNotPending):
			respondError(w, http.StatusConflict, "not_pending", "only pending review requests can be released")
		default:
			slog.Error("failed to release claim", "error", err, "id", id)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to release claim")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "released",
	})
}
