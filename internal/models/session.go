package models

import (
	"time"
)

// SessionStatus represents the current state of a mentorship session
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionScheduled SessionStatus = "scheduled"
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionRejected  SessionStatus = "rejected"
)

// CountsForEligibility returns true if sessions in this state participate
// in enrollment aggregation. Cancelled and rejected sessions never do.
func (s SessionStatus) CountsForEligibility() bool {
	return s != SessionCancelled && s != SessionRejected
}

// PaymentStatus represents the state of a session payment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Payment belongs to exactly one session. A session without a payment
// record is treated the same as one with a non-success payment.
type Payment struct {
	SessionID string        `json:"session_id"`
	Status    PaymentStatus `json:"status"`
	PaidAt    *time.Time    `json:"paid_at,omitempty"`
}

// IsSuccessful reports whether the payment reached the success state.
// Safe to call on a nil payment.
func (p *Payment) IsSuccessful() bool {
	return p != nil && p.Status == PaymentSuccess
}

// ScheduleItemStatus represents the state of a fine-grained schedule unit
type ScheduleItemStatus string

const (
	ScheduleItemLocked    ScheduleItemStatus = "locked"
	ScheduleItemUpcoming  ScheduleItemStatus = "upcoming"
	ScheduleItemCompleted ScheduleItemStatus = "completed"
)

// ScheduleItem is an individually completable unit within a session.
// Once a mentor structures an engagement into schedule items, these are
// authoritative over the session's coarse status for completion tracking.
type ScheduleItem struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	Position  int                `json:"position"`
	Status    ScheduleItemStatus `json:"status"`
}

// Session is one purchased mentorship engagement unit.
// MentorName and SkillName are snapshots taken at purchase time, not live
// joins, so historical enrollments stay stable if the catalog changes later.
type Session struct {
	ID            string         `json:"id"`
	StudentID     string         `json:"student_id"`
	MentorID      string         `json:"mentor_id"`
	MentorName    string         `json:"mentor_name"`
	SkillName     string         `json:"skill_name"`
	Status        SessionStatus  `json:"status"`
	Payment       *Payment       `json:"payment,omitempty"`
	ScheduleItems []ScheduleItem `json:"schedule_items,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// HasSuccessfulPayment reports whether this session was paid successfully
func (s *Session) HasSuccessfulPayment() bool {
	return s.Payment.IsSuccessful()
}
