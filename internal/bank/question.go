package bank

import (
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
)

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeText           QuestionType = "text"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Canonical true/false answer values.
const (
	AnswerTrue  = "true"
	AnswerFalse = "false"
)

// Question is the canonical question record shared by templates, generated
// tests and submissions.
//
// CorrectAnswer depends on Type: for multiple_choice it is the decimal index
// into Options; for true_false it is "true" or "false"; for text it is an
// optional reference answer used as a grading aid, never auto-graded.
type Question struct {
	ID            string       `json:"id" validate:"required"`
	Type          QuestionType `json:"type" validate:"required,oneof=multiple_choice true_false text"`
	Prompt        string       `json:"prompt" validate:"required"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Points        float64      `json:"points" validate:"gte=0"`
	Difficulty    Difficulty   `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Explanation   string       `json:"explanation,omitempty"`
}

// Objective reports whether the question is auto-gradable by exact match.
func (q Question) Objective() bool {
	return q.Type == TypeMultipleChoice || q.Type == TypeTrueFalse
}

var validate = validator.New()

// Validate checks the struct tags plus the cross-field invariants the tags
// cannot express.
func (q Question) Validate() error {
	if err := validate.Struct(q); err != nil {
		return enginerr.Validationf("question %s: %v", q.ID, err)
	}
	switch q.Type {
	case TypeMultipleChoice:
		if len(q.Options) < 2 {
			return enginerr.Validationf("question %s: multiple_choice needs at least 2 options", q.ID)
		}
		idx, err := strconv.Atoi(q.CorrectAnswer)
		if err != nil || idx < 0 || idx >= len(q.Options) {
			return enginerr.Validationf("question %s: correct_answer %q is not a valid option index", q.ID, q.CorrectAnswer)
		}
	case TypeTrueFalse:
		if q.CorrectAnswer != AnswerTrue && q.CorrectAnswer != AnswerFalse {
			return enginerr.Validationf("question %s: true_false answer must be %q or %q", q.ID, AnswerTrue, AnswerFalse)
		}
	case TypeText:
		// reference answer is optional, nothing to check
	}
	return nil
}

// TotalPoints sums the point values of a question set.
func TotalPoints(qs []Question) float64 {
	var sum float64
	for _, q := range qs {
		sum += q.Points
	}
	return sum
}

// HasFreeText reports whether any question requires manual grading.
func HasFreeText(qs []Question) bool {
	for _, q := range qs {
		if q.Type == TypeText {
			return true
		}
	}
	return false
}
