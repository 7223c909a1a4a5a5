// Package aggregate rolls submissions, attendance records and rating
// criteria into per-student summaries for reporting. Nothing here fails:
// absent data yields well-defined zero summaries so reports render for a
// brand-new classroom.
package aggregate

import (
	"sort"

	"github.com/kotoba-labs/classroom-engine/internal/submission"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

type GradeSummary struct {
	TestsCompleted       int     `json:"tests_completed"`
	AssignmentsCompleted int     `json:"assignments_completed"`
	TotalScore           float64 `json:"total_score"`
	TotalPoints          float64 `json:"total_points"`
	AveragePercent       float64 `json:"average_percent"`
}

// Grade summarizes a student's submitted submissions. kinds maps test IDs to
// their kind; submissions whose test is unknown still count toward the score
// totals but toward neither completion counter.
func Grade(subs []submission.Submission, kinds map[string]testdef.Kind) GradeSummary {
	var g GradeSummary
	for _, s := range subs {
		if s.SubmittedAt == nil {
			continue
		}
		switch kinds[s.TestID] {
		case testdef.KindTest:
			g.TestsCompleted++
		case testdef.KindAssignment:
			g.AssignmentsCompleted++
		}
		g.TotalScore += s.Score
		g.TotalPoints += s.TotalPoints
	}
	if g.TotalPoints > 0 {
		g.AveragePercent = g.TotalScore / g.TotalPoints * 100
	}
	return g
}

type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// Record is one date-keyed presence mark for one student.
type Record struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Date      string `json:"date"`
	Status    Status `json:"status"`
}

type AttendanceSummary struct {
	Present       int     `json:"present"`
	Late          int     `json:"late"`
	Absent        int     `json:"absent"`
	Excused       int     `json:"excused"`
	TotalSessions int     `json:"total_sessions"`
	Rate          float64 `json:"rate"`
}

// Attendance counts statuses across a student's records. Late counts toward
// the positive rate; absent and excused do not.
func Attendance(records []Record) AttendanceSummary {
	var a AttendanceSummary
	for _, r := range records {
		switch r.Status {
		case StatusPresent:
			a.Present++
		case StatusLate:
			a.Late++
		case StatusAbsent:
			a.Absent++
		case StatusExcused:
			a.Excused++
		default:
			continue
		}
		a.TotalSessions++
	}
	if a.TotalSessions > 0 {
		a.Rate = float64(a.Present+a.Late) / float64(a.TotalSessions) * 100
	}
	return a
}

// StudentReport is the per-student bundle handed to the reporting
// collaborator untouched.
type StudentReport struct {
	UserID     string            `json:"user_id"`
	Grade      GradeSummary      `json:"grade"`
	Attendance AttendanceSummary `json:"attendance"`
	Evaluation Suggestion        `json:"evaluation"`
}

// ReportInput is everything BuildClassReport needs, fetched by the caller
// from the external store.
type ReportInput struct {
	Submissions []submission.Submission
	TestKinds   map[string]testdef.Kind
	Attendance  []Record
	Criteria    []Criterion
}

// BuildClassReport groups the inputs by student and derives all three
// summaries, sorted by user ID. A student present in either input appears in
// the output.
func BuildClassReport(in ReportInput) []StudentReport {
	subsBy := map[string][]submission.Submission{}
	for _, s := range in.Submissions {
		subsBy[s.UserID] = append(subsBy[s.UserID], s)
	}
	attBy := map[string][]Record{}
	for _, r := range in.Attendance {
		attBy[r.UserID] = append(attBy[r.UserID], r)
	}
	ids := map[string]struct{}{}
	for id := range subsBy {
		ids[id] = struct{}{}
	}
	for id := range attBy {
		ids[id] = struct{}{}
	}
	out := make([]StudentReport, 0, len(ids))
	for id := range ids {
		grade := Grade(subsBy[id], in.TestKinds)
		att := Attendance(attBy[id])
		out = append(out, StudentReport{
			UserID:     id,
			Grade:      grade,
			Attendance: att,
			Evaluation: Suggest(grade, att, in.Criteria),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
