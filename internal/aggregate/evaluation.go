package aggregate

// Evaluation auto-fill: proposes rating defaults from a student's average
// score and attendance rate. The teacher edits and saves; nothing here
// persists.

type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierAverage   Tier = "average"
	TierWeak      Tier = "weak"
)

// Criterion is one row of the classroom's rating sheet.
type Criterion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Evaluation is a saved, period-keyed rating record. Consumed read-only;
// Suggest produces candidate Scores for a new one.
type Evaluation struct {
	ID          string             `json:"id"`
	ClassroomID string             `json:"classroom_id"`
	UserID      string             `json:"user_id"`
	Period      string             `json:"period"`
	Scores      map[string]float64 `json:"scores"`
	Comment     string             `json:"comment,omitempty"`
}

type Suggestion struct {
	Tier            Tier               `json:"tier"`
	CriterionPoints map[string]float64 `json:"criterion_points"`
	Stars           int                `json:"stars"`
}

// Tier point ranges on the 0..10 scale; a criterion's suggested points are
// the midpoint of its tier's range.
var tierMidpoints = map[Tier]float64{
	TierExcellent: 9.5, // [9,10]
	TierGood:      8,   // [7,9)
	TierAverage:   6,   // [5,7)
	TierWeak:      2.5, // [0,5)
}

func tierOf(score10 float64) Tier {
	switch {
	case score10 >= 9:
		return TierExcellent
	case score10 >= 7:
		return TierGood
	case score10 >= 5:
		return TierAverage
	default:
		return TierWeak
	}
}

// Suggest maps the two percentages onto the 0..10 scale (mean of the pair,
// times 0.1), picks the tier, fills every criterion with the tier midpoint
// and buckets the criterion mean into a 1..5 star rating.
func Suggest(grade GradeSummary, att AttendanceSummary, criteria []Criterion) Suggestion {
	score10 := (grade.AveragePercent + att.Rate) / 2 * 0.1
	tier := tierOf(score10)
	pts := tierMidpoints[tier]

	s := Suggestion{Tier: tier, CriterionPoints: make(map[string]float64, len(criteria))}
	var sum float64
	for _, c := range criteria {
		s.CriterionPoints[c.ID] = pts
		sum += pts
	}
	mean := pts
	if len(criteria) > 0 {
		mean = sum / float64(len(criteria))
	}
	s.Stars = starsOf(mean)
	return s
}

func starsOf(mean float64) int {
	switch {
	case mean >= 9:
		return 5
	case mean >= 7:
		return 4
	case mean >= 5:
		return 3
	case mean >= 3:
		return 2
	default:
		return 1
	}
}
