package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
	"github.com/kotoba-labs/classroom-engine/internal/submission"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

// SQLStore persists engine records in sqlite (offline) or postgres (online).
// It satisfies submission.Store plus the attendance/evaluation read side the
// aggregation engine consumes.
type SQLStore struct {
	db     *sql.DB
	driver Driver
}

func NewSQLStore(db *sql.DB, driver Driver) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutTest(ctx context.Context, d testdef.Definition) error {
	qj, err := json.Marshal(d.Questions)
	if err != nil {
		return err
	}
	var deadline *int64
	if d.Deadline != nil {
		u := d.Deadline.Unix()
		deadline = &u
	}
	created := d.CreatedAt
	if created == 0 {
		created = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tests
		(id, classroom_id, title, kind, version, time_limit_minutes, deadline, is_published, total_points, questions_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
		  title=EXCLUDED.title, kind=EXCLUDED.kind, version=EXCLUDED.version,
		  time_limit_minutes=EXCLUDED.time_limit_minutes, deadline=EXCLUDED.deadline,
		  is_published=EXCLUDED.is_published, total_points=EXCLUDED.total_points,
		  questions_json=EXCLUDED.questions_json`,
		d.ID, d.ClassroomID, d.Title, string(d.Kind), d.Version, d.TimeLimitMinutes,
		deadline, d.IsPublished, d.TotalPoints, string(qj), created)
	return err
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (testdef.Definition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, classroom_id, title, kind, version,
		time_limit_minutes, deadline, is_published, total_points, questions_json, created_at
		FROM tests WHERE id=$1`, id)
	return scanTest(row)
}

func (s *SQLStore) ListTestsByClassroom(ctx context.Context, classroomID string) ([]testdef.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, classroom_id, title, kind, version,
		time_limit_minutes, deadline, is_published, total_points, questions_json, created_at
		FROM tests WHERE classroom_id=$1 ORDER BY created_at DESC`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []testdef.Definition
	for rows.Next() {
		d, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTest(row rowScanner) (testdef.Definition, error) {
	var d testdef.Definition
	var kind, qjson string
	var deadline sql.NullInt64
	if err := row.Scan(&d.ID, &d.ClassroomID, &d.Title, &kind, &d.Version,
		&d.TimeLimitMinutes, &deadline, &d.IsPublished, &d.TotalPoints, &qjson, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return testdef.Definition{}, &enginerr.NotFoundError{Kind: "test", ID: d.ID}
		}
		return testdef.Definition{}, err
	}
	d.Kind = testdef.Kind(kind)
	if deadline.Valid {
		t := time.Unix(deadline.Int64, 0).UTC()
		d.Deadline = &t
	}
	if err := json.Unmarshal([]byte(qjson), &d.Questions); err != nil {
		return testdef.Definition{}, err
	}
	return d, nil
}

func (s *SQLStore) PutSubmission(ctx context.Context, sub submission.Submission) error {
	aj, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	var submittedAt, gradedAt *int64
	if sub.SubmittedAt != nil {
		u := sub.SubmittedAt.Unix()
		submittedAt = &u
	}
	if sub.GradedAt != nil {
		u := sub.GradedAt.Unix()
		gradedAt = &u
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions
		(id, test_id, user_id, answers_json, score, total_points, started_at, submitted_at, time_spent_seconds, graded_by, graded_at, feedback)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
		  answers_json=EXCLUDED.answers_json, score=EXCLUDED.score,
		  submitted_at=EXCLUDED.submitted_at, time_spent_seconds=EXCLUDED.time_spent_seconds,
		  graded_by=EXCLUDED.graded_by, graded_at=EXCLUDED.graded_at, feedback=EXCLUDED.feedback`,
		sub.ID, sub.TestID, sub.UserID, string(aj), sub.Score, sub.TotalPoints,
		sub.StartedAt.Unix(), submittedAt, sub.TimeSpentSeconds,
		nullStr(sub.GradedBy), gradedAt, nullStr(sub.Feedback))
	return err
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, test_id, user_id, answers_json, score, total_points,
		started_at, submitted_at, time_spent_seconds, graded_by, graded_at, feedback
		FROM submissions WHERE id=$1`, id)
	return scanSubmission(row)
}

func (s *SQLStore) FindSubmission(ctx context.Context, testID, userID string) (submission.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, test_id, user_id, answers_json, score, total_points,
		started_at, submitted_at, time_spent_seconds, graded_by, graded_at, feedback
		FROM submissions WHERE test_id=$1 AND user_id=$2`, testID, userID)
	return scanSubmission(row)
}

func (s *SQLStore) ListSubmissionsByTest(ctx context.Context, testID string) ([]submission.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, test_id, user_id, answers_json, score, total_points,
		started_at, submitted_at, time_spent_seconds, graded_by, graded_at, feedback
		FROM submissions WHERE test_id=$1 ORDER BY started_at`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []submission.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ListSubmissionsByClassroom joins through tests so the aggregation engine
// can recount a whole classroom in one read.
func (s *SQLStore) ListSubmissionsByClassroom(ctx context.Context, classroomID string) ([]submission.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.test_id, s.user_id, s.answers_json, s.score, s.total_points,
		s.started_at, s.submitted_at, s.time_spent_seconds, s.graded_by, s.graded_at, s.feedback
		FROM submissions s JOIN tests t ON t.id = s.test_id
		WHERE t.classroom_id=$1 ORDER BY s.started_at`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []submission.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func scanSubmission(row rowScanner) (submission.Submission, error) {
	var sub submission.Submission
	var aj string
	var startedAt int64
	var submittedAt, gradedAt sql.NullInt64
	var gradedBy, feedback sql.NullString
	if err := row.Scan(&sub.ID, &sub.TestID, &sub.UserID, &aj, &sub.Score, &sub.TotalPoints,
		&startedAt, &submittedAt, &sub.TimeSpentSeconds, &gradedBy, &gradedAt, &feedback); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return submission.Submission{}, submission.ErrNoSubmission
		}
		return submission.Submission{}, err
	}
	if err := json.Unmarshal([]byte(aj), &sub.Answers); err != nil {
		return submission.Submission{}, err
	}
	sub.StartedAt = time.Unix(startedAt, 0).UTC()
	if submittedAt.Valid {
		t := time.Unix(submittedAt.Int64, 0).UTC()
		sub.SubmittedAt = &t
	}
	if gradedAt.Valid {
		t := time.Unix(gradedAt.Int64, 0).UTC()
		sub.GradedAt = &t
	}
	sub.GradedBy = gradedBy.String
	sub.Feedback = feedback.String
	return sub, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
