package store

import (
	"context"
	"database/sql"
	"time"
)

// Change-event types appended by the HTTP layer after successful writes.
const (
	EventTestPublished       = "TestPublished"
	EventSubmissionSubmitted = "SubmissionSubmitted"
	EventSubmissionGraded    = "SubmissionGraded"
	EventAttendanceMarked    = "AttendanceMarked"
)

type Event struct {
	Offset      int64
	ClassroomID string
	Type        string
	Key         string
	DataJSON    string
	CreatedAt   int64
}

// EventRepo is the append-only change log the aggregation read model
// subscribes to.
type EventRepo struct {
	db     *sql.DB
	notify func(Event)
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// OnAppend registers a single notification hook, typically the read model's
// Invalidate. Appends still succeed if no hook is set.
func (r *EventRepo) OnAppend(fn func(Event)) { r.notify = fn }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	e.CreatedAt = time.Now().Unix()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (classroom_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.ClassroomID, e.Type, e.Key, e.DataJSON, e.CreatedAt)
	if err != nil {
		return err
	}
	if r.notify != nil {
		r.notify(e)
	}
	return nil
}

// Since returns events after the given offset, oldest first.
func (r *EventRepo) Since(ctx context.Context, offset int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", classroom_id, typ, key, data, created_at
		 FROM event_log WHERE "offset" > $1 ORDER BY "offset" LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.ClassroomID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
