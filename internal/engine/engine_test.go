package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/skillbridge/review-engine/internal/models"
	"github.com/skillbridge/review-engine/internal/policy"
	"github.com/skillbridge/review-engine/internal/storage"
)

type ReviewEngineTestSuite struct {
	suite.Suite
	ctx      context.Context
	repo     *storage.MemoryRepository
	policies *policy.Catalog
	engine   *ReviewEngine

	testTime      time.Time
	testStudentID string
	testDocID     string
}

func (s *ReviewEngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = storage.NewMemoryRepository()
	s.policies = policy.NewCatalog()

	eng, err := New(s.repo, s.policies, nil)
	s.Require().NoError(err)
	s.engine = eng

	s.testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.engine.now = func() time.Time { return s.testTime }

	s.testStudentID = "student-1"
	s.testDocID = "resume-1"
}

func TestReviewEngineSuite(t *testing.T) {
	suite.Run(t, new(ReviewEngineTestSuite))
}

// addSession seeds a session with an optional payment status
func (s *ReviewEngineTestSuite) addSession(id, mentorID, skill string, status models.SessionStatus, paymentStatus models.PaymentStatus, items ...models.ScheduleItemStatus) *models.Session {
	sess := &models.Session{
		ID:         id,
		StudentID:  s.testStudentID,
		MentorID:   mentorID,
		MentorName: "Mentor " + mentorID,
		SkillName:  skill,
		Status:     status,
		CreatedAt:  s.testTime.Add(-time.Hour),
	}

	if paymentStatus != "" {
		sess.Payment = &models.Payment{
			SessionID: id,
			Status:    paymentStatus,
		}
	}

	for i, itemStatus := range items {
		sess.ScheduleItems = append(sess.ScheduleItems, models.ScheduleItem{
			ID:        fmt.Sprintf("%s-item-%d", id, i),
			SessionID: id,
			Position:  i,
			Status:    itemStatus,
		})
	}

	s.repo.AddSession(sess)
	return sess
}

func (s *ReviewEngineTestSuite) resolve() *models.Resolution {
	res, err := s.engine.Resolve(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID)
	s.Require().NoError(err)
	s.Require().NotNil(res)
	return res
}

func (s *ReviewEngineTestSuite) TestResolve_NoSessions() {
	res := s.resolve()

	s.Empty(res.Mentors)
	s.False(res.HasActiveReview)
	s.Nil(res.PendingReviewMentor)
	s.Equal(models.ReasonNoSessions, res.Reason)
}

func (s *ReviewEngineTestSuite) TestResolve_CancelledSessionsDoNotCount() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionCancelled, models.PaymentSuccess)
	s.addSession("sess-2", "mentor-b", "go", models.SessionRejected, models.PaymentSuccess)

	res := s.resolve()

	s.Empty(res.Mentors)
	s.Equal(models.ReasonNoSessions, res.Reason)
}

func (s *ReviewEngineTestSuite) TestResolve_SinglePaidOngoingSession() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	res := s.resolve()

	s.Require().Len(res.Mentors, 1)
	s.Equal("mentor-a", res.Mentors[0].MentorID)
	s.Equal("Mentor mentor-a", res.Mentors[0].MentorName)
	s.False(res.HasActiveReview)
	s.Empty(res.Reason)
}

func (s *ReviewEngineTestSuite) TestResolve_UnpaidEnrollmentExcluded() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentPending)
	s.addSession("sess-2", "mentor-b", "go", models.SessionOngoing, "")

	res := s.resolve()

	s.Empty(res.Mentors)
	s.Equal(models.ReasonNoPaidEnrollment, res.Reason)
}

func (s *ReviewEngineTestSuite) TestResolve_FailedAndRefundedPaymentsDoNotQualify() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentFailed)
	s.addSession("sess-2", "mentor-a", "go", models.SessionOngoing, models.PaymentRefunded)

	res := s.resolve()

	s.Empty(res.Mentors)
	s.Equal(models.ReasonNoPaidEnrollment, res.Reason)
}

func (s *ReviewEngineTestSuite) TestResolve_OnePaidSessionQualifiesEnrollment() {
	// Same mentor+skill: one success payment carries the unpaid session
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentFailed)
	s.addSession("sess-2", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	res := s.resolve()

	s.Require().Len(res.Mentors, 1)
	s.Equal("mentor-a", res.Mentors[0].MentorID)
}

func (s *ReviewEngineTestSuite) TestResolve_CompletedEnrollmentExcluded() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionCompleted, models.PaymentSuccess)

	res := s.resolve()

	s.Empty(res.Mentors)
	s.Equal(models.ReasonAllEnrollmentsCompleted, res.Reason)
}

func (s *ReviewEngineTestSuite) TestResolve_ScheduleItemsAuthoritativeOverSessionStatus() {
	// Session says completed, but an upcoming item remains: still ongoing
	s.addSession("sess-1", "mentor-a", "go", models.SessionCompleted, models.PaymentSuccess,
		models.ScheduleItemCompleted, models.ScheduleItemUpcoming)

	res := s.resolve()

	s.Require().Len(res.Mentors, 1)
	s.Equal("mentor-a", res.Mentors[0].MentorID)
}

func (s *ReviewEngineTestSuite) TestResolve_AllItemsCompletedMeansCompleted() {
	// Session says ongoing, but every schedule item is done: completed
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess,
		models.ScheduleItemCompleted, models.ScheduleItemCompleted)

	res := s.resolve()

	s.Empty(res.Mentors)
	s.Equal(models.ReasonAllEnrollmentsCompleted, res.Reason)
}

func (s *ReviewEngineTestSuite) TestResolve_ItemsPooledAcrossSessions() {
	// One enrollment, two sessions: the completed session carries all the
	// schedule items (all done), the scheduled one has none. Items pool
	// across the enrollment, so nothing open remains and the scheduled
	// session's status does not reopen it.
	s.addSession("sess-1", "mentor-a", "go", models.SessionCompleted, models.PaymentSuccess,
		models.ScheduleItemCompleted, models.ScheduleItemCompleted, models.ScheduleItemCompleted)
	s.addSession("sess-2", "mentor-a", "go", models.SessionScheduled, "")

	res := s.resolve()

	s.Empty(res.Mentors)
	s.Equal(models.ReasonAllEnrollmentsCompleted, res.Reason)
}

func (s *ReviewEngineTestSuite) TestResolve_MixedMentors() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)
	s.addSession("sess-2", "mentor-b", "python", models.SessionCompleted, models.PaymentSuccess)
	s.addSession("sess-3", "mentor-c", "rust", models.SessionScheduled, "")

	res := s.resolve()

	// mentor-b completed, mentor-c unpaid, only mentor-a remains
	s.Require().Len(res.Mentors, 1)
	s.Equal("mentor-a", res.Mentors[0].MentorID)
}

func (s *ReviewEngineTestSuite) TestResolve_SameMentorTwoSkillsDeduplicated() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)
	s.addSession("sess-2", "mentor-a", "python", models.SessionOngoing, models.PaymentSuccess)

	res := s.resolve()

	s.Require().Len(res.Mentors, 1)
	s.Equal("mentor-a", res.Mentors[0].MentorID)
}

func (s *ReviewEngineTestSuite) TestResolve_UnknownDocumentType() {
	_, err := s.engine.Resolve(s.ctx, s.testStudentID, "portfolio", s.testDocID)
	s.Require().ErrorIs(err, ErrUnknownDocumentType)
}

func (s *ReviewEngineTestSuite) TestResolve_IsIdempotent() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	first := s.resolve()
	second := s.resolve()

	s.Equal(first, second)
}

func (s *ReviewEngineTestSuite) TestShare_CreatesPendingRequest() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)
	s.Require().NotNil(req)

	s.NotEmpty(req.ID)
	s.Equal(s.testDocID, req.DocumentID)
	s.Equal(models.DocumentResume, req.DocumentType)
	s.Equal(s.testStudentID, req.StudentID)
	s.Equal("mentor-a", req.MentorID)
	s.Equal("Mentor mentor-a", req.MentorName)
	s.Equal(models.ReviewPending, req.Status)
	s.Equal(s.testTime, req.CreatedAt)
	s.Nil(req.ReviewedAt)
}

func (s *ReviewEngineTestSuite) TestShare_PendingReviewSurfacesInResolution() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	_, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	res := s.resolve()

	s.Empty(res.Mentors)
	s.True(res.HasActiveReview)
	s.Require().NotNil(res.PendingReviewMentor)
	s.Equal("mentor-a", res.PendingReviewMentor.MentorID)
	s.Equal(models.ReasonAllCandidatesClaimed, res.Reason)
}

func (s *ReviewEngineTestSuite) TestShare_SecondShareFailsAlreadyClaimed() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)
	s.addSession("sess-2", "mentor-b", "python", models.SessionOngoing, models.PaymentSuccess)

	_, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	// Even a different, still-eligible mentor is refused
	_, err = s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-b")
	s.Require().ErrorIs(err, ErrAlreadyClaimed)
}

func (s *ReviewEngineTestSuite) TestShare_CompletedReviewStillClaimsDocument() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)
	s.addSession("sess-2", "mentor-b", "python", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	rating := 4
	_, err = s.engine.SubmitVerdict(s.ctx, req.ID, models.VerdictRequest{
		Status: models.ReviewVerified,
		Rating: &rating,
	})
	s.Require().NoError(err)

	// The completed review no longer blocks other documents, but this
	// document stays claimed for good
	_, err = s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-b")
	s.Require().ErrorIs(err, ErrAlreadyClaimed)

	res := s.resolve()
	s.False(res.HasActiveReview)
	s.Nil(res.PendingReviewMentor)
	s.Require().Len(res.Mentors, 1)
	s.Equal("mentor-b", res.Mentors[0].MentorID)
	s.Empty(res.Reason)
}

func (s *ReviewEngineTestSuite) TestShare_RejectedReviewStillExcludesMentor() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	_, err = s.engine.SubmitVerdict(s.ctx, req.ID, models.VerdictRequest{
		Status:   models.ReviewRejected,
		Feedback: "not my area",
	})
	s.Require().NoError(err)

	res := s.resolve()
	s.Empty(res.Mentors)
	s.Equal(models.ReasonAllCandidatesClaimed, res.Reason)

	// A second document is unaffected by the first document's ledger
	s.testDocID = "resume-2"
	res = s.resolve()
	s.Require().Len(res.Mentors, 1)
	s.Equal("mentor-a", res.Mentors[0].MentorID)
}

func (s *ReviewEngineTestSuite) TestShare_IneligibleMentorRejected() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	_, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-z")
	s.Require().ErrorIs(err, ErrNotEligible)
}

func (s *ReviewEngineTestSuite) TestShare_CompletedEnrollmentMentorRejected() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionCompleted, models.PaymentSuccess)

	_, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().ErrorIs(err, ErrNotEligible)
}

func (s *ReviewEngineTestSuite) TestShare_ConcurrentRaceHasOneWinner() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)
	s.addSession("sess-2", "mentor-b", "python", models.SessionOngoing, models.PaymentSuccess)

	const attempts = 16
	mentors := []string{"mentor-a", "mentor-b"}

	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, mentors[i%len(mentors)])
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			s.ErrorIs(err, ErrAlreadyClaimed)
		}
	}
	s.Equal(1, winners)

	// Exactly one request exists in the ledger
	ledger, err := s.repo.GetReviewRequests(s.ctx, models.DocumentKey{
		DocumentID:   s.testDocID,
		DocumentType: models.DocumentResume,
		StudentID:    s.testStudentID,
	})
	s.Require().NoError(err)
	s.Len(ledger, 1)
}

func (s *ReviewEngineTestSuite) TestSubmitVerdict_Verified() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	rating := 5
	updated, err := s.engine.SubmitVerdict(s.ctx, req.ID, models.VerdictRequest{
		Status:   models.ReviewVerified,
		Rating:   &rating,
		Feedback: "strong resume",
	})
	s.Require().NoError(err)

	s.Equal(models.ReviewVerified, updated.Status)
	s.Require().NotNil(updated.Rating)
	s.Equal(5, *updated.Rating)
	s.Equal("strong resume", updated.Feedback)
	s.Require().NotNil(updated.ReviewedAt)
	s.Equal(s.testTime, *updated.ReviewedAt)
}

func (s *ReviewEngineTestSuite) TestSubmitVerdict_RatingRequired() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	_, err = s.engine.SubmitVerdict(s.ctx, req.ID, models.VerdictRequest{
		Status: models.ReviewVerified,
	})
	s.Require().ErrorIs(err, ErrInvalidVerdict)
}

func (s *ReviewEngineTestSuite) TestSubmitVerdict_RatingOutOfRange() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	rating := 6
	_, err = s.engine.SubmitVerdict(s.ctx, req.ID, models.VerdictRequest{
		Status: models.ReviewVerified,
		Rating: &rating,
	})
	s.Require().ErrorIs(err, ErrInvalidVerdict)
}

func (s *ReviewEngineTestSuite) TestSubmitVerdict_NotPending() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	rating := 3
	_, err = s.engine.SubmitVerdict(s.ctx, req.ID, models.VerdictRequest{
		Status: models.ReviewVerified,
		Rating: &rating,
	})
	s.Require().NoError(err)

	_, err = s.engine.SubmitVerdict(s.ctx, req.ID, models.VerdictRequest{
		Status: models.ReviewRejected,
	})
	s.Require().ErrorIs(err, ErrReviewNotPending)
}

func (s *ReviewEngineTestSuite) TestSubmitVerdict_UnknownReview() {
	_, err := s.engine.SubmitVerdict(s.ctx, "missing", models.VerdictRequest{
		Status: models.ReviewRejected,
	})
	s.Require().ErrorIs(err, ErrReviewNotFound)
}

func (s *ReviewEngineTestSuite) TestReleaseClaim_ReopensDocument() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	s.Require().NoError(s.engine.ReleaseClaim(s.ctx, req.ID))

	res := s.resolve()
	s.Require().Len(res.Mentors, 1)
	s.Equal("mentor-a", res.Mentors[0].MentorID)
	s.False(res.HasActiveReview)

	// The document can be shared again, with any eligible mentor
	_, err = s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)
}

func (s *ReviewEngineTestSuite) TestReleaseClaim_CompletedReviewRefused() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	rating := 4
	_, err = s.engine.SubmitVerdict(s.ctx, req.ID, models.VerdictRequest{
		Status: models.ReviewVerified,
		Rating: &rating,
	})
	s.Require().NoError(err)

	err = s.engine.ReleaseClaim(s.ctx, req.ID)
	s.Require().ErrorIs(err, ErrReviewNotPending)
}

func (s *ReviewEngineTestSuite) TestExpireStaleClaims() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	// Not yet stale
	released, err := s.engine.ExpireStaleClaims(s.ctx)
	s.Require().NoError(err)
	s.Zero(released)

	// Jump past the resume claim TTL
	s.testTime = s.testTime.Add(22 * 24 * time.Hour)

	released, err = s.engine.ExpireStaleClaims(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, released)

	_, err = s.engine.GetReview(s.ctx, req.ID)
	s.Require().ErrorIs(err, ErrReviewNotFound)

	res := s.resolve()
	s.Require().Len(res.Mentors, 1)
}

func (s *ReviewEngineTestSuite) TestExpireStaleClaims_CompletedReviewsUntouched() {
	s.addSession("sess-1", "mentor-a", "go", models.SessionOngoing, models.PaymentSuccess)

	req, err := s.engine.Share(s.ctx, s.testStudentID, models.DocumentResume, s.testDocID, "mentor-a")
	s.Require().NoError(err)

	rating := 4
	_, err = s.engine.SubmitVerdict(s.ctx, req.ID, models.VerdictRequest{
		Status: models.ReviewVerified,
		Rating: &rating,
	})
	s.Require().NoError(err)

	s.testTime = s.testTime.Add(22 * 24 * time.Hour)

	released, err := s.engine.ExpireStaleClaims(s.ctx)
	s.Require().NoError(err)
	s.Zero(released)

	got, err := s.engine.GetReview(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.ReviewVerified, got.Status)
}
