package submission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

// ErrNoSubmission is returned by stores when no submission exists for a
// lookup; Start treats it as "create one".
var ErrNoSubmission = errors.New("submission not found")

// Store is the document-store collaborator the lifecycle runs against. The
// engine performs no transactional wrapping across calls.
type Store interface {
	GetTest(ctx context.Context, id string) (testdef.Definition, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	FindSubmission(ctx context.Context, testID, userID string) (Submission, error)
	PutSubmission(ctx context.Context, s Submission) error
	ListSubmissionsByTest(ctx context.Context, testID string) ([]Submission, error)
}

// Service drives the submission state machine. Clock and ID generation are
// injectable for tests.
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now, newID: uuid.NewString}
}

// Start is idempotent: it returns the existing submission for
// (testID, userID) if one exists, otherwise creates a fresh one with the
// test's total points and an empty answer set.
func (s *Service) Start(ctx context.Context, testID, userID string) (Submission, error) {
	if existing, err := s.store.FindSubmission(ctx, testID, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNoSubmission) {
		return Submission{}, err
	}
	t, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return Submission{}, err
	}
	sub := Submission{
		ID:          s.newID(),
		TestID:      testID,
		UserID:      userID,
		Answers:     []Answer{},
		Score:       0,
		TotalPoints: t.TotalPoints,
		StartedAt:   s.now(),
	}
	if err := s.store.PutSubmission(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// SaveProgress stores the in-progress answer set without scoring it, so a
// forced submit at the time limit captures what the student had. Submitted
// attempts reject further saves.
func (s *Service) SaveProgress(ctx context.Context, submissionID string, answers []Answer, timeSpentSeconds int) (Submission, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if sub.SubmittedAt != nil {
		return Submission{}, &enginerr.DuplicateSubmissionError{SubmissionID: submissionID}
	}
	sub.Answers = append([]Answer(nil), answers...)
	sub.TimeSpentSeconds = timeSpentSeconds
	if err := s.store.PutSubmission(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// Submit auto-scores objective answers, sums the score and stamps
// SubmittedAt. Nil answers fall back to the saved draft (the auto-submit
// timer's path). It runs exactly once per submission; a second call fails
// with DuplicateSubmissionError.
func (s *Service) Submit(ctx context.Context, submissionID string, answers []Answer, timeSpentSeconds int) (Submission, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if sub.SubmittedAt != nil {
		return Submission{}, &enginerr.DuplicateSubmissionError{SubmissionID: submissionID}
	}
	if answers == nil {
		answers = sub.Answers
	}
	t, err := s.store.GetTest(ctx, sub.TestID)
	if err != nil {
		return Submission{}, err
	}
	marked, score := ScoreAnswers(t.Questions, answers)
	now := s.now()
	sub.Answers = marked
	sub.Score = score
	sub.TimeSpentSeconds = timeSpentSeconds
	sub.SubmittedAt = &now
	if err := s.store.PutSubmission(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// Grade replaces the stored answers with the teacher's marked set (objective
// auto-grades may be corrected too), recomputes the score and stamps the
// grading metadata. Only submitted attempts on tests with at least one
// free-text question are gradable.
func (s *Service) Grade(ctx context.Context, submissionID string, answers []Answer, feedback, graderID string) (Submission, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if sub.SubmittedAt == nil {
		return Submission{}, &enginerr.GradingStateError{SubmissionID: submissionID, Reason: "not submitted yet"}
	}
	t, err := s.store.GetTest(ctx, sub.TestID)
	if err != nil {
		return Submission{}, err
	}
	if !t.HasFreeText() {
		return Submission{}, &enginerr.GradingStateError{SubmissionID: submissionID, Reason: "test has no free-text questions"}
	}
	now := s.now()
	sub.Answers = append([]Answer(nil), answers...)
	sub.Score = SumEarned(sub.Answers)
	sub.Feedback = feedback
	sub.GradedBy = graderID
	sub.GradedAt = &now
	if err := s.store.PutSubmission(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}
