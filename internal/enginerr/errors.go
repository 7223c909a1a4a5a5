// Package enginerr defines the typed errors shared by the assessment engine.
// Callers branch on these with errors.As; the HTTP layer maps them to status
// codes.
package enginerr

import "fmt"

// ValidationError reports malformed input: a bad question, mix percentages
// not summing to 100, zero enabled sources, and so on.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientPoolError reports that a generation request asked for more
// questions than the enabled sources can supply. Shortfall is how many
// questions are missing.
type InsufficientPoolError struct {
	Requested int
	Available int
}

func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf("requested %d questions but only %d available", e.Requested, e.Available)
}

func (e *InsufficientPoolError) Shortfall() int { return e.Requested - e.Available }

// DuplicateSubmissionError reports an attempt to submit an already-submitted
// submission.
type DuplicateSubmissionError struct {
	SubmissionID string
}

func (e *DuplicateSubmissionError) Error() string {
	return fmt.Sprintf("submission %s already submitted", e.SubmissionID)
}

// GradingStateError reports a manual-grading action on a submission that is
// not gradable: not yet submitted, or belonging to a test with no free-text
// questions.
type GradingStateError struct {
	SubmissionID string
	Reason       string
}

func (e *GradingStateError) Error() string {
	return fmt.Sprintf("submission %s not gradable: %s", e.SubmissionID, e.Reason)
}

// NotFoundError reports a missing record (test, submission, classroom).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }
