package engine

import (
	"github.com/skillbridge/review-engine/internal/models"
)

// AggregateEnrollments groups a student's sessions into enrollments keyed
// by (mentor, skill). Pure grouping over a snapshot read: every session
// lands in exactly one enrollment, no filtering beyond dropping sessions
// that never count for eligibility. Enrollment order is the order of
// first appearance, which keeps repeated resolutions deterministic.
func AggregateEnrollments(sessions []*models.Session) []*models.Enrollment {
	byKey := make(map[models.EnrollmentKey]*models.Enrollment)
	var order []models.EnrollmentKey

	for _, sess := range sessions {
		if !sess.Status.CountsForEligibility() {
			continue
		}

		key := models.EnrollmentKey{
			MentorID:  sess.MentorID,
			SkillName: sess.SkillName,
		}

		enrollment, ok := byKey[key]
		if !ok {
			enrollment = &models.Enrollment{
				Key:        key,
				MentorName: sess.MentorName,
			}
			byKey[key] = enrollment
			order = append(order, key)
		}

		enrollment.Sessions = append(enrollment.Sessions, sess)
	}

	enrollments := make([]*models.Enrollment, 0, len(order))
	for _, key := range order {
		enrollments = append(enrollments, byKey[key])
	}

	return enrollments
}

// mentorCandidates deduplicates ongoing, paid enrollments by mentor. A
// student with several qualifying enrollments under the same mentor still
// gets a single candidate entry, at the position of first appearance.
func mentorCandidates(enrollments []*models.Enrollment) []models.MentorCandidate {
	seen := make(map[string]bool)
	var candidates []models.MentorCandidate

	for _, e := range enrollments {
		if seen[e.Key.MentorID] {
			continue
		}
		seen[e.Key.MentorID] = true
		candidates = append(candidates, models.MentorCandidate{
			MentorID:   e.Key.MentorID,
			MentorName: e.MentorName,
		})
	}

	return candidates
}

// filterPaid keeps enrollments that passed the payment gate
func filterPaid(enrollments []*models.Enrollment) []*models.Enrollment {
	var paid []*models.Enrollment
	for _, e := range enrollments {
		if e.HasSuccessfulPayment() {
			paid = append(paid, e)
		}
	}
	return paid
}

// filterOngoing keeps enrollments that are not fully completed
func filterOngoing(enrollments []*models.Enrollment) []*models.Enrollment {
	var ongoing []*models.Enrollment
	for _, e := range enrollments {
		if e.IsOngoing() {
			ongoing = append(ongoing, e)
		}
	}
	return ongoing
}
