package store

import (
	"context"
	"time"
)

// Report sync status values.
const (
	SyncPending = "pending"
	SyncOK      = "ok"
	SyncFailed  = "failed"
)

func (s *SQLStore) MarkSyncPending(ctx context.Context, classroomID, userID string) error {
	return s.markSync(ctx, classroomID, userID, SyncPending, "", 0)
}

func (s *SQLStore) MarkSyncOK(ctx context.Context, classroomID, userID string) error {
	return s.markSync(ctx, classroomID, userID, SyncOK, "", 0)
}

func (s *SQLStore) MarkSyncFailed(ctx context.Context, classroomID, userID, reason string) error {
	return s.markSync(ctx, classroomID, userID, SyncFailed, reason, 1)
}

func (s *SQLStore) markSync(ctx context.Context, classroomID, userID, status, lastErr string, retryInc int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO report_sync (classroom_id, user_id, status, last_error, retries, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (classroom_id, user_id) DO UPDATE SET
		  status=EXCLUDED.status, last_error=EXCLUDED.last_error,
		  retries=report_sync.retries+$5, updated_at=EXCLUDED.updated_at`,
		classroomID, userID, status, nullStr(lastErr), retryInc, time.Now().Unix())
	return err
}

// ListFailedSyncs returns (classroomID, userID) pairs whose last push failed,
// for retry.
func (s *SQLStore) ListFailedSyncs(ctx context.Context, classroomID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM report_sync WHERE classroom_id=$1 AND status=$2 ORDER BY user_id`,
		classroomID, SyncFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
