package report_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotoba-labs/classroom-engine/internal/aggregate"
	"github.com/kotoba-labs/classroom-engine/internal/report"
	"github.com/kotoba-labs/classroom-engine/internal/submission"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

type fakeStore struct {
	input  aggregate.ReportInput
	status map[string]string // userID -> status
	errs   map[string]string // userID -> last error
}

func newFakeStore(in aggregate.ReportInput) *fakeStore {
	return &fakeStore{input: in, status: map[string]string{}, errs: map[string]string{}}
}

func (f *fakeStore) ReportInput(context.Context, string) (aggregate.ReportInput, error) {
	return f.input, nil
}
func (f *fakeStore) MarkSyncPending(_ context.Context, _, userID string) error {
	f.status[userID] = "pending"
	return nil
}
func (f *fakeStore) MarkSyncOK(_ context.Context, _, userID string) error {
	f.status[userID] = "ok"
	return nil
}
func (f *fakeStore) MarkSyncFailed(_ context.Context, _, userID, reason string) error {
	f.status[userID] = "failed"
	f.errs[userID] = reason
	return nil
}
func (f *fakeStore) ListFailedSyncs(context.Context, string) ([]string, error) {
	var out []string
	for userID, st := range f.status {
		if st == "failed" {
			out = append(out, userID)
		}
	}
	return out, nil
}

type fakeClient struct {
	pushed []aggregate.StudentReport
	failFo map[string]error
}

func (c *fakeClient) PushStudentReport(_ context.Context, _ string, rep aggregate.StudentReport) error {
	if err := c.failFo[rep.UserID]; err != nil {
		return err
	}
	c.pushed = append(c.pushed, rep)
	return nil
}

func classInput() aggregate.ReportInput {
	at := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	return aggregate.ReportInput{
		Submissions: []submission.Submission{
			{TestID: "t1", UserID: "alice", Score: 90, TotalPoints: 100, StartedAt: at, SubmittedAt: &at},
			{TestID: "t1", UserID: "bob", Score: 55, TotalPoints: 100, StartedAt: at, SubmittedAt: &at},
		},
		TestKinds: map[string]testdef.Kind{"t1": testdef.KindTest},
		Attendance: []aggregate.Record{
			{SessionID: "d1", UserID: "alice", Status: aggregate.StatusPresent},
			{SessionID: "d1", UserID: "bob", Status: aggregate.StatusLate},
		},
		Criteria: []aggregate.Criterion{{ID: "effort", Name: "Effort"}},
	}
}

func TestSyncClassroomPushesEveryStudent(t *testing.T) {
	store := newFakeStore(classInput())
	client := &fakeClient{}
	d := report.New(store, client, func() time.Time { return time.Unix(0, 0) })

	err := d.SyncClassroom(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, client.pushed, 2)
	assert.Equal(t, "alice", client.pushed[0].UserID)
	assert.Equal(t, "ok", store.status["alice"])
	assert.Equal(t, "ok", store.status["bob"])
	// the bundle carries all three summaries
	assert.Equal(t, 90.0, client.pushed[0].Grade.AveragePercent)
	assert.Equal(t, 100.0, client.pushed[0].Attendance.Rate)
	assert.NotEmpty(t, client.pushed[0].Evaluation.Tier)
}

func TestSyncClassroomRecordsFailureAndContinues(t *testing.T) {
	store := newFakeStore(classInput())
	client := &fakeClient{failFo: map[string]error{"alice": errors.New("renderer down")}}
	d := report.New(store, client, nil)

	err := d.SyncClassroom(context.Background(), "class-1")
	require.Error(t, err)
	assert.Equal(t, "failed", store.status["alice"])
	assert.Equal(t, "renderer down", store.errs["alice"])
	// bob still pushed
	require.Len(t, client.pushed, 1)
	assert.Equal(t, "bob", client.pushed[0].UserID)
	assert.Equal(t, "ok", store.status["bob"])
}

func TestSyncStudentRetry(t *testing.T) {
	store := newFakeStore(classInput())
	client := &fakeClient{}
	d := report.New(store, client, nil)

	require.NoError(t, d.SyncStudent(context.Background(), "class-1", "bob"))
	require.Len(t, client.pushed, 1)
	assert.Equal(t, "bob", client.pushed[0].UserID)

	err := d.SyncStudent(context.Background(), "class-1", "nobody")
	assert.Error(t, err)
}

func TestRetryFailedPushesOnlyFailedStudents(t *testing.T) {
	store := newFakeStore(classInput())
	client := &fakeClient{failFo: map[string]error{"alice": errors.New("renderer down")}}
	d := report.New(store, client, nil)

	require.Error(t, d.SyncClassroom(context.Background(), "class-1"))
	require.Equal(t, "failed", store.status["alice"])
	pushedAfterSweep := len(client.pushed)

	// Renderer recovers; the retry touches alice alone.
	client.failFo = nil
	require.NoError(t, d.RetryFailed(context.Background(), "class-1"))
	require.Len(t, client.pushed, pushedAfterSweep+1)
	assert.Equal(t, "alice", client.pushed[len(client.pushed)-1].UserID)
	assert.Equal(t, "ok", store.status["alice"])

	// Nothing failed anymore: the retry is a no-op.
	require.NoError(t, d.RetryFailed(context.Background(), "class-1"))
	assert.Len(t, client.pushed, pushedAfterSweep+1)
}
