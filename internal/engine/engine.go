package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skillbridge/review-engine/internal/models"
	"github.com/skillbridge/review-engine/internal/policy"
	"github.com/skillbridge/review-engine/internal/storage"
)

// ResolutionCache caches resolver results per document key. The engine
// works without one: a nil cache means every resolution hits the
// repository directly.
type ResolutionCache interface {
	Get(ctx context.Context, key models.DocumentKey) (*models.Resolution, bool)
	Set(ctx context.Context, key models.DocumentKey, res *models.Resolution)
	Invalidate(ctx context.Context, key models.DocumentKey)
}

// Engine defines the mentor eligibility and review-sharing operations
type Engine interface {
	// Resolve returns the mentors a student may currently share the
	// document with. Pure read path; an empty mentor list carries a
	// reason code and is never an error.
	Resolve(ctx context.Context, studentID string, docType models.DocumentType, docID string) (*models.Resolution, error)

	// Share creates a pending review request for the chosen mentor.
	// The sole mutation entry point for claims.
	Share(ctx context.Context, studentID string, docType models.DocumentType, docID, mentorID string) (*models.ReviewRequest, error)

	// SubmitVerdict completes a pending review with the mentor's verdict
	SubmitVerdict(ctx context.Context, reviewID string, verdict models.VerdictRequest) (*models.ReviewRequest, error)

	// ReleaseClaim removes a pending review request, reopening the
	// document for sharing. Admin override for unresponsive mentors.
	ReleaseClaim(ctx context.Context, reviewID string) error

	// ExpireStaleClaims releases pending requests older than their
	// document type's claim TTL. Returns the number released.
	ExpireStaleClaims(ctx context.Context) (int, error)

	GetReview(ctx context.Context, reviewID string) (*models.ReviewRequest, error)
	ListReviews(ctx context.Context, filters models.ReviewFilters) ([]*models.ReviewRequest, error)

	Ping(ctx context.Context) error
}

// ReviewEngine implements Engine on top of an injected repository
type ReviewEngine struct {
	repo     storage.Repository
	policies *policy.Catalog
	cache    ResolutionCache
	now      func() time.Time
}

// New creates a review engine. cache may be nil.
func New(repo storage.Repository, policies *policy.Catalog, cache ResolutionCache) (*ReviewEngine, error) {
	if repo == nil {
		return nil, errors.New("repository cannot be nil")
	}
	if policies == nil {
		return nil, errors.New("policy catalog cannot be nil")
	}

	return &ReviewEngine{
		repo:     repo,
		policies: policies,
		cache:    cache,
		now:      time.Now,
	}, nil
}

// Resolve returns the current eligibility verdict for a document
func (e *ReviewEngine) Resolve(ctx context.Context, studentID string, docType models.DocumentType, docID string) (*models.Resolution, error) {
	if e.policies.Get(docType) == nil {
		return nil, ErrUnknownDocumentType
	}

	key := models.DocumentKey{
		DocumentID:   docID,
		DocumentType: docType,
		StudentID:    studentID,
	}

	if e.cache != nil {
		if res, ok := e.cache.Get(ctx, key); ok {
			return res, nil
		}
	}

	res, err := e.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(ctx, key, res)
	}

	return res, nil
}

// resolve computes a resolution from a fresh snapshot read. The four
// source reads (sessions, payments, schedule items, ledger) are not one
// transaction; slight staleness is fine because Share re-validates.
func (e *ReviewEngine) resolve(ctx context.Context, key models.DocumentKey) (*models.Resolution, error) {
	res := &models.Resolution{
		Mentors: []models.MentorCandidate{},
	}

	ledger, err := e.repo.GetReviewRequests(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read review ledger: %w", err)
	}

	// Exclusion is any-status: once shared, a document can never go to a
	// different mentor, even after the review completed or was rejected.
	claimed := make(map[string]bool)
	for _, req := range ledger {
		claimed[req.MentorID] = true
		if req.Status == models.ReviewPending {
			res.HasActiveReview = true
			res.PendingReviewMentor = &models.MentorCandidate{
				MentorID:   req.MentorID,
				MentorName: req.MentorName,
			}
		}
	}

	sessions, err := e.repo.GetSessionsByStudent(ctx, key.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	enrollments := AggregateEnrollments(sessions)
	if len(enrollments) == 0 {
		res.Reason = models.ReasonNoSessions
		return res, nil
	}

	paid := filterPaid(enrollments)
	if len(paid) == 0 {
		res.Reason = models.ReasonNoPaidEnrollment
		return res, nil
	}

	ongoing := filterOngoing(paid)
	if len(ongoing) == 0 {
		res.Reason = models.ReasonAllEnrollmentsCompleted
		return res, nil
	}

	for _, candidate := range mentorCandidates(ongoing) {
		if !claimed[candidate.MentorID] {
			res.Mentors = append(res.Mentors, candidate)
		}
	}

	if len(res.Mentors) == 0 {
		res.Reason = models.ReasonAllCandidatesClaimed
	}

	return res, nil
}

// Share creates a pending review request for the chosen mentor. The
// eligibility precondition is evaluated against a fresh snapshot, never
// the cache, and the claim invariant itself is enforced by the
// repository's atomic check-and-insert: when two shares race, exactly one
// commits and the loser gets ErrAlreadyClaimed with no partial write.
func (e *ReviewEngine) Share(ctx context.Context, studentID string, docType models.DocumentType, docID, mentorID string) (*models.ReviewRequest, error) {
	if e.policies.Get(docType) == nil {
		return nil, ErrUnknownDocumentType
	}

	key := models.DocumentKey{
		DocumentID:   docID,
		DocumentType: docType,
		StudentID:    studentID,
	}

	// A claimed document fails before eligibility is even considered
	ledger, err := e.repo.GetReviewRequests(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read review ledger: %w", err)
	}
	if len(ledger) > 0 {
		return nil, ErrAlreadyClaimed
	}

	sessions, err := e.repo.GetSessionsByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	candidates := mentorCandidates(filterOngoing(filterPaid(AggregateEnrollments(sessions))))

	var chosen *models.MentorCandidate
	for i := range candidates {
		if candidates[i].MentorID == mentorID {
			chosen = &candidates[i]
			break
		}
	}
	if chosen == nil {
		return nil, ErrNotEligible
	}

	req := &models.ReviewRequest{
		ID:           uuid.New().String(),
		DocumentID:   docID,
		DocumentType: docType,
		StudentID:    studentID,
		MentorID:     chosen.MentorID,
		MentorName:   chosen.MentorName,
		Status:       models.ReviewPending,
		CreatedAt:    e.now().UTC(),
	}

	if err := e.repo.CreateReviewRequest(ctx, req); err != nil {
		if errors.Is(err, storage.ErrAlreadyClaimed) {
			// Lost the race to a concurrent share
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to create review request: %w", err)
	}

	e.invalidate(ctx, key)

	slog.Info("document shared for review",
		"student_id", studentID,
		"document_type", docType,
		"document_id", docID,
		"mentor_id", mentorID,
		"review_id", req.ID,
	)

	return req, nil
}

// SubmitVerdict records the mentor's verdict on a pending review
func (e *ReviewEngine) SubmitVerdict(ctx context.Context, reviewID string, verdict models.VerdictRequest) (*models.ReviewRequest, error) {
	req, err := e.repo.GetReviewRequest(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review request: %w", err)
	}
	if req == nil {
		return nil, ErrReviewNotFound
	}
	if req.Status != models.ReviewPending {
		return nil, ErrReviewNotPending
	}

	pol := e.policies.Get(req.DocumentType)
	if pol == nil {
		return nil, ErrUnknownDocumentType
	}

	switch verdict.Status {
	case models.ReviewVerified:
		if pol.RequireRating && verdict.Rating == nil {
			return nil, fmt.Errorf("%w: rating is required for a verified %s review", ErrInvalidVerdict, req.DocumentType)
		}
		if verdict.Rating != nil && (*verdict.Rating < pol.MinRating || *verdict.Rating > pol.MaxRating) {
			return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidVerdict, pol.MinRating, pol.MaxRating)
		}
	case models.ReviewRejected:
		// A rejection needs no rating
	default:
		return nil, fmt.Errorf("%w: status must be %q or %q", ErrInvalidVerdict, models.ReviewVerified, models.ReviewRejected)
	}

	if pol.MaxFeedbackLength > 0 && len(verdict.Feedback) > pol.MaxFeedbackLength {
		return nil, fmt.Errorf("%w: feedback exceeds %d characters", ErrInvalidVerdict, pol.MaxFeedbackLength)
	}

	now := e.now().UTC()
	req.Status = verdict.Status
	req.Rating = verdict.Rating
	req.Feedback = verdict.Feedback
	req.ReviewedAt = &now

	if err := e.repo.UpdateReviewRequest(ctx, req); err != nil {
		if errors.Is(err, storage.ErrReviewNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to update review request: %w", err)
	}

	e.invalidate(ctx, req.Key())

	slog.Info("review verdict submitted",
		"review_id", req.ID,
		"mentor_id", req.MentorID,
		"status", req.Status,
	)

	return req, nil
}

// ReleaseClaim deletes a pending review request, reopening the document.
// Completed reviews are never released: the one-shot claim stays final
// once a mentor has responded.
func (e *ReviewEngine) ReleaseClaim(ctx context.Context, reviewID string) error {
	req, err := e.repo.GetReviewRequest(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("failed to get review request: %w", err)
	}
	if req == nil {
		return ErrReviewNotFound
	}
	if req.Status != models.ReviewPending {
		return ErrReviewNotPending
	}

	if err := e.repo.DeleteReviewRequest(ctx, reviewID); err != nil {
		if errors.Is(err, storage.ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("failed to delete review request: %w", err)
	}

	e.invalidate(ctx, req.Key())

	slog.Info("review claim released",
		"review_id", req.ID,
		"student_id", req.StudentID,
		"mentor_id", req.MentorID,
	)

	return nil
}

// ExpireStaleClaims releases pending requests that sat unanswered past
// their document type's claim TTL
func (e *ReviewEngine) ExpireStaleClaims(ctx context.Context) (int, error) {
	released := 0

	for _, pol := range e.policies.List() {
		if pol.ClaimTTL <= 0 {
			continue
		}

		cutoff := e.now().UTC().Add(-pol.ClaimTTL)

		stale, err := e.repo.GetPendingRequestsOlderThan(ctx, pol.Type, cutoff)
		if err != nil {
			return released, fmt.Errorf("failed to find stale claims for %s: %w", pol.Type, err)
		}

		for _, req := range stale {
			if err := e.repo.DeleteReviewRequest(ctx, req.ID); err != nil {
				slog.Error("failed to release stale claim",
					"error", err,
					"review_id", req.ID,
				)
				continue
			}

			e.invalidate(ctx, req.Key())
			released++

			slog.Info("stale claim released",
				"review_id", req.ID,
				"student_id", req.StudentID,
				"mentor_id", req.MentorID,
				"created_at", req.CreatedAt,
				"claim_ttl", pol.ClaimTTL,
			)
		}
	}

	return released, nil
}

// GetReview returns a review request by ID
func (e *ReviewEngine) GetReview(ctx context.Context, reviewID string) (*models.ReviewRequest, error) {
	req, err := e.repo.GetReviewRequest(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review request: %w", err)
	}
	if req == nil {
		return nil, ErrReviewNotFound
	}
	return req, nil
}

// ListReviews returns review requests matching filters
func (e *ReviewEngine) ListReviews(ctx context.Context, filters models.ReviewFilters) ([]*models.ReviewRequest, error) {
	return e.repo.ListReviewRequests(ctx, filters)
}

// Ping checks the underlying repository
func (e *ReviewEngine) Ping(ctx context.Context) error {
	return e.repo.Ping(ctx)
}

func (e *ReviewEngine) invalidate(ctx context.Context, key models.DocumentKey) {
	if e.cache != nil {
		e.cache.Invalidate(ctx, key)
	}
}
