package models

import (
	"time"
)

// DocumentType identifies the kind of reviewable document
type DocumentType string

const (
	DocumentResume      DocumentType = "resume"
	DocumentCoverLetter DocumentType = "cover_letter"
)

// IsValid returns true for a known document type
func (d DocumentType) IsValid() bool {
	return d == DocumentResume || d == DocumentCoverLetter
}

// ReviewStatus represents the lifecycle state of a review request
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewVerified ReviewStatus = "verified"
	ReviewRejected ReviewStatus = "rejected"
)

// IsTerminal returns true if the review reached a final state
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewVerified || s == ReviewRejected
}

// DocumentKey identifies a student document in the review ledger
type DocumentKey struct {
	DocumentID   string
	DocumentType DocumentType
	StudentID    string
}

// ReviewRequest records one share of a document with a mentor.
// At most one request may exist per document key at any time: once any
// request exists (pending, verified, or rejected) the document is claimed
// and cannot be shared with a different mentor.
type ReviewRequest struct {
	ID           string       `json:"id"`
	DocumentID   string       `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	StudentID    string       `json:"student_id"`
	MentorID     string       `json:"mentor_id"`
	MentorName   string       `json:"mentor_name,omitempty"`
	Status       ReviewStatus `json:"status"`
	Rating       *int         `json:"rating,omitempty"`
	Feedback     string       `json:"feedback,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ReviewedAt   *time.Time   `json:"reviewed_at,omitempty"`
}

// Key returns the review ledger key for this request
func (r *ReviewRequest) Key() DocumentKey {
	return DocumentKey{
		DocumentID:   r.DocumentID,
		DocumentType: r.DocumentType,
		StudentID:    r.StudentID,
	}
}

// ReviewFilters defines filters for listing review requests
type ReviewFilters struct {
	StudentID string
	MentorID  string
	Status    ReviewStatus
	Limit     int
	Offset    int
}

// ShareRequest is the payload for sharing a document with a mentor.
// The field name preserves the platform's existing API contract.
type ShareRequest struct {
	MentorID string `json:"mentorId"`
}

// VerdictRequest is the payload for a mentor's review verdict
type VerdictRequest struct {
	Status   ReviewStatus `json:"status"`
	Rating   *int         `json:"rating,omitempty"`
	Feedback string       `json:"feedback,omitempty"`
}
