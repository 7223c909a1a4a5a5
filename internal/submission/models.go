// Package submission implements the per-(test, student) attempt lifecycle:
// idempotent start, single-shot submit with objective auto-scoring, and
// manual grading of free-text answers.
package submission

import "time"

// Answer holds a student's response to one question. IsCorrect and
// PointsEarned are set at submit time for objective questions and stay nil
// for free-text until a teacher grades them.
type Answer struct {
	QuestionID   string   `json:"question_id"`
	Answer       string   `json:"answer"`
	IsCorrect    *bool    `json:"is_correct,omitempty"`
	PointsEarned *float64 `json:"points_earned,omitempty"`
}

// Submission is one student's attempt at one test. There is at most one per
// (TestID, UserID) pair.
type Submission struct {
	ID               string     `json:"id"`
	TestID           string     `json:"test_id"`
	UserID           string     `json:"user_id"`
	Answers          []Answer   `json:"answers"`
	Score            float64    `json:"score"`
	TotalPoints      float64    `json:"total_points"`
	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	GradedBy         string     `json:"graded_by,omitempty"`
	GradedAt         *time.Time `json:"graded_at,omitempty"`
	Feedback         string     `json:"feedback,omitempty"`
}

type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateSubmitted  State = "submitted"
	StateGraded     State = "graded"
)

// State derives the lifecycle state. A test with only objective questions is
// fully scored at submit and never enters "graded".
func (s Submission) State() State {
	switch {
	case s.StartedAt.IsZero():
		return StateNotStarted
	case s.SubmittedAt == nil:
		return StateInProgress
	case s.GradedAt != nil:
		return StateGraded
	default:
		return StateSubmitted
	}
}
