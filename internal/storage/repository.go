package storage

import (
	"context"
	"errors"
	"time"

	"github.com/skillbridge/review-engine/internal/models"
)

// Common errors returned by repository implementations
var (
	// ErrAlreadyClaimed is returned by CreateReviewRequest when a review
	// request already exists for the document key, regardless of status.
	ErrAlreadyClaimed = errors.New("document already claimed by an existing review request")

	// ErrReviewNotFound is returned when a review request does not exist
	ErrReviewNotFound = errors.New("review request not found")
)

// Repository defines the interface for engine persistence.
// Implementations must make CreateReviewRequest an atomic check-and-insert
// so that concurrent shares of the same document cannot both commit.
type Repository interface {
	// Sessions (read-only: session records are produced by the booking
	// and payment surfaces of the platform)
	GetSessionsByStudent(ctx context.Context, studentID string) ([]*models.Session, error)

	// Review ledger
	GetReviewRequests(ctx context.Context, key models.DocumentKey) ([]*models.ReviewRequest, error)
	GetReviewRequest(ctx context.Context, id string) (*models.ReviewRequest, error)
	CreateReviewRequest(ctx context.Context, req *models.ReviewRequest) error
	UpdateReviewRequest(ctx context.Context, req *models.ReviewRequest) error
	DeleteReviewRequest(ctx context.Context, id string) error
	ListReviewRequests(ctx context.Context, filters models.ReviewFilters) ([]*models.ReviewRequest, error)
	GetPendingRequestsOlderThan(ctx context.Context, docType models.DocumentType, cutoff time.Time) ([]*models.ReviewRequest, error)

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
