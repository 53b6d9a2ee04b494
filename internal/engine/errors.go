package engine

import "errors"

// Write-path errors. Neither is retried automatically: picking a
// different mentor after a failed share is a user decision.
var (
	// ErrAlreadyClaimed - a review request already exists for the
	// document key, so the document cannot be shared again
	ErrAlreadyClaimed = errors.New("document already claimed by a review request")

	// ErrNotEligible - the chosen mentor is not in the eligible set at
	// commit time
	ErrNotEligible = errors.New("mentor is not eligible for this document")

	// ErrReviewNotFound - no review request with the given ID exists
	ErrReviewNotFound = errors.New("review request not found")

	// ErrReviewNotPending - the review already received a verdict
	ErrReviewNotPending = errors.New("review request is not pending")

	// ErrUnknownDocumentType - the document type has no review policy
	ErrUnknownDocumentType = errors.New("unknown document type")

	// ErrInvalidVerdict - the verdict payload violates the document
	// type's review policy
	ErrInvalidVerdict = errors.New("invalid verdict")
)
