package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/skillbridge/review-engine/internal/engine"
	"github.com/skillbridge/review-engine/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// watchPollInterval is how often the watch endpoint re-reads review state
const watchPollInterval = 2 * time.Second

// WatchMessage is one frame of the review watch stream
type WatchMessage struct {
	Type    string                `json:"type"` // "state" or "error"
	Review  *models.ReviewRequest `json:"review,omitempty"`
	Message string                `json:"message,omitempty"`
}

// handleWatchReview streams review state changes over a websocket until
// the review reaches a terminal status or the client disconnects. Used by
// the student dashboard to flip from "pending with mentor X" to the
// verdict without polling the REST endpoint.
func (s *Server) handleWatchReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "review id required", http.StatusBadRequest)
		return
	}

	review, err := s.engine.GetReview(r.Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrReviewNotFound) {
			http.Error(w, "review not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get review for watch", "id", id, "error", err)
		http.Error(w, "failed to get review", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("review watch connected", "review_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Detect client disconnect; inbound frames carry no meaning here
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Initial state frame
	if err := s.sendWatchMessage(conn, WatchMessage{Type: "state", Review: review}); err != nil {
		return
	}

	if review.Status.IsTerminal() {
		return
	}

	lastStatus := review.Status

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("review watch client disconnected", "review_id", id)
			return
		case <-ticker.C:
			current, err := s.engine.GetReview(ctx, id)
			if err != nil {
				if errors.Is(err, engine.ErrReviewNotFound) {
					// Claim was released while watching
					s.sendWatchMessage(conn, WatchMessage{Type: "error", Message: "review request was released"})
					return
				}
				slog.Error("review watch poll failed", "review_id", id, "error", err)
				continue
			}

			if current.Status == lastStatus {
				continue
			}
			lastStatus = current.Status

			if err := s.sendWatchMessage(conn, WatchMessage{Type: "state", Review: current}); err != nil {
				return
			}

			if current.Status.IsTerminal() {
				slog.Info("review watch finished", "review_id", id, "status", current.Status)
				return
			}
		}
	}
}

// sendWatchMessage sends a JSON frame to the websocket client
func (s *Server) sendWatchMessage(conn *websocket.Conn, msg WatchMessage) error {
	if err := conn.WriteJSON(msg); err != nil {
		slog.Debug("failed to write watch message", "error", err)
		return err
	}
	return nil
}
