// Package testdef holds named, versioned question sets: tests (timed) and
// assignments (deadlined).
package testdef

import (
	"time"

	"github.com/google/uuid"

	"github.com/kotoba-labs/classroom-engine/internal/bank"
	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
)

type Kind string

const (
	KindTest       Kind = "test"
	KindAssignment Kind = "assignment"
)

// Definition is a question set a classroom can publish to students.
// TotalPoints is always the exact sum of question points; every mutation of
// the question set goes through SetQuestions so it cannot drift.
type Definition struct {
	ID               string          `json:"id"`
	ClassroomID      string          `json:"classroom_id,omitempty"`
	Title            string          `json:"title"`
	Kind             Kind            `json:"kind"`
	Version          int             `json:"version"`
	Questions        []bank.Question `json:"questions"`
	TotalPoints      float64         `json:"total_points"`
	TimeLimitMinutes int             `json:"time_limit_minutes,omitempty"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	IsPublished      bool            `json:"is_published"`
	CreatedAt        int64           `json:"created_at,omitempty"`
}

// Template is a reusable question set not yet attached to a classroom,
// filed by proficiency level.
type Template struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Level     string          `json:"level"`
	Kind      Kind            `json:"kind"`
	Questions []bank.Question `json:"questions"`
}

// New creates an unpublished definition at version 1.
func New(classroomID, title string, kind Kind, questions []bank.Question) Definition {
	d := Definition{
		ID:          uuid.NewString(),
		ClassroomID: classroomID,
		Title:       title,
		Kind:        kind,
		CreatedAt:   time.Now().Unix(),
	}
	d.SetQuestions(questions)
	return d
}

// FromTemplate instantiates a template for a classroom. The questions are
// cloned so later template edits cannot reach into published tests.
func FromTemplate(t Template, classroomID string) Definition {
	return New(classroomID, t.Name, t.Kind, bank.Clone(t.Questions))
}

// SetQuestions replaces the question set, recomputes TotalPoints and bumps
// the version.
func (d *Definition) SetQuestions(qs []bank.Question) {
	d.Questions = bank.Clone(qs)
	d.TotalPoints = bank.TotalPoints(d.Questions)
	if d.Version == 0 {
		d.Version = 1
	} else {
		d.Version++
	}
}

// HasFreeText reports whether the definition needs manual grading.
func (d Definition) HasFreeText() bool { return bank.HasFreeText(d.Questions) }

// QuestionByID looks up a question in the set.
func (d Definition) QuestionByID(id string) (bank.Question, bool) {
	for _, q := range d.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return bank.Question{}, false
}

// Validate checks every question plus the kind-specific timing fields.
func (d Definition) Validate() error {
	if d.Title == "" {
		return enginerr.Validationf("definition %s: title required", d.ID)
	}
	switch d.Kind {
	case KindTest, KindAssignment:
	default:
		return enginerr.Validationf("definition %s: unknown kind %q", d.ID, d.Kind)
	}
	if d.Kind == KindTest && d.TimeLimitMinutes < 0 {
		return enginerr.Validationf("definition %s: negative time limit", d.ID)
	}
	if len(d.Questions) == 0 {
		return enginerr.Validationf("definition %s: at least one question required", d.ID)
	}
	for _, q := range d.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
	}
	if got := bank.TotalPoints(d.Questions); got != d.TotalPoints {
		return enginerr.Validationf("definition %s: total_points %v does not match question sum %v", d.ID, d.TotalPoints, got)
	}
	return nil
}

// StudentView strips correct answers and explanations for delivery to a
// student taking the test.
func (d Definition) StudentView() Definition {
	out := d
	out.Questions = bank.Clone(d.Questions)
	for i := range out.Questions {
		out.Questions[i].CorrectAnswer = ""
		out.Questions[i].Explanation = ""
	}
	return out
}
