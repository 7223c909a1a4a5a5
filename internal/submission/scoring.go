package submission

import "github.com/kotoba-labs/classroom-engine/internal/bank"

// ScoreAnswers marks each answer against its question: objective types get
// IsCorrect and PointsEarned by exact match, free-text answers stay unmarked.
// Returns the marked answers (a new slice) and the score, treating unmarked
// answers as 0.
func ScoreAnswers(questions []bank.Question, answers []Answer) ([]Answer, float64) {
	byID := make(map[string]bank.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]Answer, len(answers))
	var score float64
	for i, a := range answers {
		a.IsCorrect = nil
		a.PointsEarned = nil
		q, ok := byID[a.QuestionID]
		if ok && q.Objective() {
			correct := a.Answer == q.CorrectAnswer
			earned := 0.0
			if correct {
				earned = q.Points
			}
			a.IsCorrect = &correct
			a.PointsEarned = &earned
			score += earned
		}
		out[i] = a
	}
	return out, score
}

// SumEarned totals PointsEarned across answers, treating nil as 0. Used when
// a teacher's grading pass replaces the answer set.
func SumEarned(answers []Answer) float64 {
	var sum float64
	for _, a := range answers {
		if a.PointsEarned != nil {
			sum += *a.PointsEarned
		}
	}
	return sum
}
