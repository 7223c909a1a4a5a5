package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kotoba-labs/classroom-engine/internal/aggregate"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

// Session is one dated attendance sheet for a classroom.
type Session struct {
	ID          string `json:"id"`
	ClassroomID string `json:"classroom_id"`
	Date        string `json:"date"`
}

func (s *SQLStore) PutSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO attendance_sessions (id, classroom_id, session_date)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET session_date=EXCLUDED.session_date`,
		sess.ID, sess.ClassroomID, sess.Date)
	return err
}

// MarkAttendance upserts one student's status for a session. Concurrent marks
// can leave counts briefly stale; the aggregation engine recounts in full on
// read.
func (s *SQLStore) MarkAttendance(ctx context.Context, sessionID, userID string, status aggregate.Status) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO attendance_records (session_id, user_id, status)
		VALUES ($1,$2,$3)
		ON CONFLICT (session_id, user_id) DO UPDATE SET status=EXCLUDED.status`,
		sessionID, userID, string(status))
	return err
}

func (s *SQLStore) FetchAttendanceRecords(ctx context.Context, classroomID string) ([]aggregate.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.session_id, r.user_id, r.status, a.session_date
		FROM attendance_records r JOIN attendance_sessions a ON a.id = r.session_id
		WHERE a.classroom_id=$1 ORDER BY a.session_date, r.user_id`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []aggregate.Record
	for rows.Next() {
		var r aggregate.Record
		var status string
		if err := rows.Scan(&r.SessionID, &r.UserID, &status, &r.Date); err != nil {
			return nil, err
		}
		r.Status = aggregate.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutEvaluation(ctx context.Context, ev aggregate.Evaluation) error {
	sj, err := json.Marshal(ev.Scores)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO evaluations (id, classroom_id, user_id, period, scores_json, comment)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET scores_json=EXCLUDED.scores_json, comment=EXCLUDED.comment`,
		ev.ID, ev.ClassroomID, ev.UserID, ev.Period, string(sj), nullStr(ev.Comment))
	return err
}

func (s *SQLStore) FetchEvaluations(ctx context.Context, classroomID string) ([]aggregate.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, classroom_id, user_id, period, scores_json, comment
		FROM evaluations WHERE classroom_id=$1 ORDER BY period, user_id`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []aggregate.Evaluation
	for rows.Next() {
		var ev aggregate.Evaluation
		var sj string
		var comment sql.NullString
		if err := rows.Scan(&ev.ID, &ev.ClassroomID, &ev.UserID, &ev.Period, &sj, &comment); err != nil {
			return nil, err
		}
		ev.Comment = comment.String
		if err := json.Unmarshal([]byte(sj), &ev.Scores); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutCriterion(ctx context.Context, classroomID string, c aggregate.Criterion) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO rating_criteria (id, classroom_id, name)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name`,
		c.ID, classroomID, c.Name)
	return err
}

func (s *SQLStore) ListCriteria(ctx context.Context, classroomID string) ([]aggregate.Criterion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM rating_criteria WHERE classroom_id=$1 ORDER BY name`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []aggregate.Criterion
	for rows.Next() {
		var c aggregate.Criterion
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReportInput gathers everything the aggregation engine needs for one
// classroom. Each fetch is an independent read; no transaction spans them.
func (s *SQLStore) ReportInput(ctx context.Context, classroomID string) (aggregate.ReportInput, error) {
	var in aggregate.ReportInput

	tests, err := s.ListTestsByClassroom(ctx, classroomID)
	if err != nil {
		return in, err
	}
	in.TestKinds = make(map[string]testdef.Kind, len(tests))
	for _, t := range tests {
		in.TestKinds[t.ID] = t.Kind
	}
	if in.Submissions, err = s.ListSubmissionsByClassroom(ctx, classroomID); err != nil {
		return in, err
	}
	if in.Attendance, err = s.FetchAttendanceRecords(ctx, classroomID); err != nil {
		return in, err
	}
	if in.Criteria, err = s.ListCriteria(ctx, classroomID); err != nil {
		return in, err
	}
	return in, nil
}
