package bank

import "github.com/google/uuid"

// Namespace for deterministic import IDs. Converting the same external record
// twice yields the same question ID, so repeated imports are idempotent.
var importNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// DefaultPoints is applied when the external record carries no point value.
const DefaultPoints = 10

// Flashcard is the shape of a vocabulary card supplied by the flashcard
// collaborator. Back is the expected answer for Front.
type Flashcard struct {
	ID    string `json:"id"`
	Front string `json:"front"`
	Back  string `json:"back"`
	Hint  string `json:"hint,omitempty"`
}

// BankQuestion is the shape of a record from the external question-bank
// collaborator (JLPT drills use the same shape).
type BankQuestion struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        float64  `json:"points,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// FromFlashcard converts a flashcard into a free-text question: the front is
// the prompt, the back becomes the reference answer for the grader.
func FromFlashcard(c Flashcard, d Difficulty) Question {
	return Question{
		ID:            uuid.NewSHA1(importNamespace, []byte("flashcard:"+c.ID)).String(),
		Type:          TypeText,
		Prompt:        c.Front,
		CorrectAnswer: c.Back,
		Points:        DefaultPoints,
		Difficulty:    d,
		Explanation:   c.Hint,
	}
}

// FromBankQuestion converts an external bank record into a canonical
// question. Records with options become multiple_choice; records whose
// answer is a canonical true/false value become true_false; the rest are
// free-text.
func FromBankQuestion(b BankQuestion, d Difficulty) Question {
	q := Question{
		ID:            uuid.NewSHA1(importNamespace, []byte("bank:"+b.ID)).String(),
		Prompt:        b.Prompt,
		CorrectAnswer: b.CorrectAnswer,
		Points:        b.Points,
		Difficulty:    d,
		Explanation:   b.Explanation,
	}
	if q.Points == 0 {
		q.Points = DefaultPoints
	}
	switch {
	case len(b.Options) > 0:
		q.Type = TypeMultipleChoice
		q.Options = make([]string, len(b.Options))
		copy(q.Options, b.Options)
	case b.CorrectAnswer == AnswerTrue || b.CorrectAnswer == AnswerFalse:
		q.Type = TypeTrueFalse
	default:
		q.Type = TypeText
	}
	return q
}
