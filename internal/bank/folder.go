package bank

// Folder groups reusable questions by proficiency level ("N5".."N1") and the
// kind of test they feed ("test" or "assignment").
type Folder struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Level     string     `json:"level"`
	Kind      string     `json:"kind"`
	Questions []Question `json:"questions"`
}

// FilterByDifficulty returns the subset of questions with the given tag.
func FilterByDifficulty(list []Question, d Difficulty) []Question {
	out := make([]Question, 0, len(list))
	for _, q := range list {
		if q.Difficulty == d {
			out = append(out, q)
		}
	}
	return out
}
