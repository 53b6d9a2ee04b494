package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skillbridge/review-engine/internal/models"
)

// MemoryRepository implements Repository with in-process maps. It backs
// the test suites and local development without a database; the claim
// invariant is enforced by holding the write lock across the existence
// check and the insert.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string][]*models.Session       // by student ID
	reviews  map[string]*models.ReviewRequest   // by request ID
	claims   map[models.DocumentKey]string      // document key -> request ID
	clients  map[string]*models.ApiClient       // by API key
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string][]*models.Session),
		reviews:  make(map[string]*models.ReviewRequest),
		claims:   make(map[models.DocumentKey]string),
		clients:  make(map[string]*models.ApiClient),
	}
}

// AddSession seeds a session record
func (r *MemoryRepository) AddSession(sess *models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.StudentID] = append(r.sessions[sess.StudentID], sess)
}

// AddClient seeds an API client
func (r *MemoryRepository) AddClient(client *models.ApiClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ApiKey] = client
}

// GetSessionsByStudent returns the student's eligibility-relevant
// sessions, oldest first
func (r *MemoryRepository) GetSessionsByStudent(ctx context.Context, studentID string) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*models.Session
	for _, sess := range r.sessions[studentID] {
		if sess.Status.CountsForEligibility() {
			sessions = append(sessions, sess)
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	return sessions, nil
}

// GetReviewRequests returns the ledger for a document key, oldest first
func (r *MemoryRepository) GetReviewRequests(ctx context.Context, key models.DocumentKey) ([]*models.ReviewRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var requests []*models.ReviewRequest
	for _, req := range r.reviews {
		if req.Key() == key {
			requests = append(requests, cloneReview(req))
		}
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})

	return requests, nil
}

// GetReviewRequest returns a review request by ID, nil when not found
func (r *MemoryRepository) GetReviewRequest(ctx context.Context, id string) (*models.ReviewRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.reviews[id]
	if !ok {
		return nil, nil
	}

	return cloneReview(req), nil
}

// CreateReviewRequest inserts a request if no request exists for its
// document key. The existence check and the insert happen under one lock,
// so concurrent shares of the same document serialize here.
func (r *MemoryRepository) CreateReviewRequest(ctx context.Context, req *models.ReviewRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := req.Key()
	if _, claimed := r.claims[key]; claimed {
		return ErrAlreadyClaimed
	}

	r.reviews[req.ID] = cloneReview(req)
	r.claims[key] = req.ID

	return nil
}

// UpdateReviewRequest replaces a stored request's mutable fields
func (r *MemoryRepository) UpdateReviewRequest(ctx context.Context, req *models.ReviewRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.reviews[req.ID]
	if !ok {
		return ErrReviewNotFound
	}

	stored.Status = req.Status
	stored.Rating = req.Rating
	stored.Feedback = req.Feedback
	stored.ReviewedAt = req.ReviewedAt

	return nil
}

// DeleteReviewRequest removes a request, releasing its document claim
func (r *MemoryRepository) DeleteReviewRequest(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.reviews[id]
	if !ok {
		return ErrReviewNotFound
	}

	delete(r.claims, req.Key())
	delete(r.reviews, id)

	return nil
}

// ListReviewRequests returns requests matching filters, newest first
func (r *MemoryRepository) ListReviewRequests(ctx context.Context, filters models.ReviewFilters) ([]*models.ReviewRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var requests []*models.ReviewRequest
	for _, req := range r.reviews {
		if filters.StudentID != "" && req.StudentID != filters.StudentID {
			continue
		}
		if filters.MentorID != "" && req.MentorID != filters.MentorID {
			continue
		}
		if filters.Status != "" && req.Status != filters.Status {
			continue
		}
		requests = append(requests, cloneReview(req))
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(requests) {
			return nil, nil
		}
		requests = requests[filters.Offset:]
	}

	if filters.Limit > 0 && len(requests) > filters.Limit {
		requests = requests[:filters.Limit]
	}

	return requests, nil
}

// GetPendingRequestsOlderThan returns stale pending requests of a type,
// oldest first
func (r *MemoryRepository) GetPendingRequestsOlderThan(ctx context.Context, docType models.DocumentType, cutoff time.Time) ([]*models.ReviewRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var requests []*models.ReviewRequest
	for _, req := range r.reviews {
		if req.DocumentType == docType && req.Status == models.ReviewPending && req.CreatedAt.Before(cutoff) {
			requests = append(requests, cloneReview(req))
		}
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})

	return requests, nil
}

// GetClientByApiKey returns the client for a key, nil when unknown
func (r *MemoryRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[apiKey]
	if !ok {
		return nil, nil
	}

	return client, nil
}

// UpdateClientLastUsed records key usage time
func (r *MemoryRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[apiKey]; ok {
		now := time.Now().UTC()
		client.LastUsedAt = &now
	}

	return nil
}

// Ping always succeeds for the in-memory repository
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}

// cloneReview copies a request so callers cannot mutate stored state
func cloneReview(req *models.ReviewRequest) *models.ReviewRequest {
	clone := *req
	if req.Rating != nil {
		rating := *req.Rating
		clone.Rating = &rating
	}
	if req.ReviewedAt != nil {
		reviewedAt := *req.ReviewedAt
		clone.ReviewedAt = &reviewedAt
	}
	return &clone
}
