package models

// EnrollmentKey identifies an enrollment by mentor and skill. A tuple key
// is used instead of a concatenated string so identifiers containing
// separator characters cannot collide.
type EnrollmentKey struct {
	MentorID  string
	SkillName string
}

// Enrollment is the derived unit of eligibility evaluation: all of one
// student's sessions sharing a (mentor, skill) pair. It is built per query
// and never persisted.
type Enrollment struct {
	Key        EnrollmentKey
	MentorName string
	Sessions   []*Session
}

// HasSuccessfulPayment implements the payment gate: one successfully paid
// session qualifies the whole enrollment, even if other sessions in it are
// unpaid. Payment is a one-time trust signal per mentor+skill pairing.
func (e *Enrollment) HasSuccessfulPayment() bool {
	for _, s := range e.Sessions {
		if s.HasSuccessfulPayment() {
			return true
		}
	}
	return false
}

// IsOngoing classifies the enrollment as still in progress.
//
// When any schedule items exist across the enrollment's sessions they are
// authoritative: the enrollment is ongoing unless every item is completed.
// Before a mentor structures the engagement no items exist, and the coarse
// session status is the only available signal: ongoing unless every
// session is completed.
func (e *Enrollment) IsOngoing() bool {
	var items int
	for _, s := range e.Sessions {
		for _, item := range s.ScheduleItems {
			items++
			if item.Status != ScheduleItemCompleted {
				return true
			}
		}
	}
	if items > 0 {
		// All schedule items completed
		return false
	}

	for _, s := range e.Sessions {
		if s.Status != SessionCompleted {
			return true
		}
	}
	return false
}

// MentorCandidate is a mentor the student may share a document with.
// JSON field names preserve the platform's existing API contract.
type MentorCandidate struct {
	MentorID   string `json:"mentorId"`
	MentorName string `json:"mentorName"`
}

// EmptyReason explains why a resolution produced zero eligible mentors.
// An empty mentor list is a normal business outcome, not an error.
type EmptyReason string

const (
	// ReasonNoSessions - student has no non-cancelled sessions at all
	ReasonNoSessions EmptyReason = "no_sessions"
	// ReasonNoPaidEnrollment - sessions exist but none was paid successfully
	ReasonNoPaidEnrollment EmptyReason = "no_paid_enrollment"
	// ReasonAllEnrollmentsCompleted - paid enrollments exist but all finished
	ReasonAllEnrollmentsCompleted EmptyReason = "all_enrollments_completed"
	// ReasonAllCandidatesClaimed - eligible mentors exist but every one
	// already appears in the review ledger for this document
	ReasonAllCandidatesClaimed EmptyReason = "all_candidates_claimed"
)

// Resolution is the read-side verdict for a (student, document) pair.
// JSON field names preserve the platform's existing API contract.
type Resolution struct {
	Mentors             []MentorCandidate `json:"mentors"`
	HasActiveReview     bool              `json:"hasActiveReview"`
	PendingReviewMentor *MentorCandidate  `json:"pendingReviewMentor"`
	Reason              EmptyReason       `json:"reason,omitempty"`
}
