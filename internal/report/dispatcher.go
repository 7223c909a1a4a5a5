// Package report hands per-student summary bundles to the external
// reporting collaborator (PDF/email rendering) and tracks per-student sync
// status so failed pushes can be retried.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/kotoba-labs/classroom-engine/internal/aggregate"
)

type Clock func() time.Time

// Store is the persistence the dispatcher needs: report inputs plus the
// sync-status markers.
type Store interface {
	ReportInput(ctx context.Context, classroomID string) (aggregate.ReportInput, error)
	MarkSyncPending(ctx context.Context, classroomID, userID string) error
	MarkSyncOK(ctx context.Context, classroomID, userID string) error
	MarkSyncFailed(ctx context.Context, classroomID, userID, reason string) error
	ListFailedSyncs(ctx context.Context, classroomID string) ([]string, error)
}

// Client is the reporting collaborator. The bundle is delivered untouched;
// rendering is entirely the client's concern.
type Client interface {
	PushStudentReport(ctx context.Context, classroomID string, rep aggregate.StudentReport) error
}

type Dispatcher struct {
	Store  Store
	Client Client
	Now    Clock
}

func New(store Store, client Client, now Clock) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{Store: store, Client: client, Now: now}
}

// SyncClassroom recounts the classroom and pushes every student's bundle.
// Per-student failures are recorded and do not stop the remaining pushes;
// the first failure is returned after the sweep completes.
func (d *Dispatcher) SyncClassroom(ctx context.Context, classroomID string) error {
	in, err := d.Store.ReportInput(ctx, classroomID)
	if err != nil {
		return fmt.Errorf("report input: %w", err)
	}
	reports := aggregate.BuildClassReport(in)

	var firstErr error
	for _, rep := range reports {
		if err := d.push(ctx, classroomID, rep); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SyncStudent pushes a single student's bundle, used for retries after a
// failed classroom sweep.
func (d *Dispatcher) SyncStudent(ctx context.Context, classroomID, userID string) error {
	in, err := d.Store.ReportInput(ctx, classroomID)
	if err != nil {
		return fmt.Errorf("report input: %w", err)
	}
	for _, rep := range aggregate.BuildClassReport(in) {
		if rep.UserID == userID {
			return d.push(ctx, classroomID, rep)
		}
	}
	return fmt.Errorf("no report data for student %s in classroom %s", userID, classroomID)
}

// RetryFailed re-pushes only the students whose last recorded sync failed.
// Like the classroom sweep, per-student failures don't stop the loop and the
// first one is returned at the end.
func (d *Dispatcher) RetryFailed(ctx context.Context, classroomID string) error {
	users, err := d.Store.ListFailedSyncs(ctx, classroomID)
	if err != nil {
		return fmt.Errorf("list failed syncs: %w", err)
	}
	var firstErr error
	for _, userID := range users {
		if err := d.SyncStudent(ctx, classroomID, userID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Dispatcher) push(ctx context.Context, classroomID string, rep aggregate.StudentReport) error {
	_ = d.Store.MarkSyncPending(ctx, classroomID, rep.UserID)
	if err := d.Client.PushStudentReport(ctx, classroomID, rep); err != nil {
		_ = d.Store.MarkSyncFailed(ctx, classroomID, rep.UserID, err.Error())
		return fmt.Errorf("push report for %s: %w", rep.UserID, err)
	}
	return d.Store.MarkSyncOK(ctx, classroomID, rep.UserID)
}
