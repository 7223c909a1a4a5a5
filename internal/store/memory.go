package store

import (
	"context"
	"sync"

	"github.com/kotoba-labs/classroom-engine/internal/aggregate"
	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
	"github.com/kotoba-labs/classroom-engine/internal/submission"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

// MemoryStore is the in-memory store used by tests and the offline CLI. Same
// contract as SQLStore.
type MemoryStore struct {
	mu          sync.RWMutex
	tests       map[string]testdef.Definition
	submissions map[string]submission.Submission
	sessions    map[string]Session
	records     map[string]map[string]aggregate.Record // sessionID -> userID
	criteria    map[string][]aggregate.Criterion       // classroomID
	evals       map[string][]aggregate.Evaluation      // classroomID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tests:       map[string]testdef.Definition{},
		submissions: map[string]submission.Submission{},
		sessions:    map[string]Session{},
		records:     map[string]map[string]aggregate.Record{},
		criteria:    map[string][]aggregate.Criterion{},
		evals:       map[string][]aggregate.Evaluation{},
	}
}

func (m *MemoryStore) PutTest(_ context.Context, d testdef.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[d.ID] = d
	return nil
}

func (m *MemoryStore) GetTest(_ context.Context, id string) (testdef.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.tests[id]
	if !ok {
		return testdef.Definition{}, &enginerr.NotFoundError{Kind: "test", ID: id}
	}
	return d, nil
}

func (m *MemoryStore) ListTestsByClassroom(_ context.Context, classroomID string) ([]testdef.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []testdef.Definition
	for _, d := range m.tests {
		if d.ClassroomID == classroomID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryStore) PutSubmission(_ context.Context, s submission.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[s.ID] = s
	return nil
}

func (m *MemoryStore) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNoSubmission
	}
	return s, nil
}

func (m *MemoryStore) FindSubmission(_ context.Context, testID, userID string) (submission.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.submissions {
		if s.TestID == testID && s.UserID == userID {
			return s, nil
		}
	}
	return submission.Submission{}, submission.ErrNoSubmission
}

func (m *MemoryStore) ListSubmissionsByTest(_ context.Context, testID string) ([]submission.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []submission.Submission
	for _, s := range m.submissions {
		if s.TestID == testID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) PutSession(_ context.Context, sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemoryStore) MarkAttendance(_ context.Context, sessionID, userID string, status aggregate.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[sessionID] == nil {
		m.records[sessionID] = map[string]aggregate.Record{}
	}
	sess := m.sessions[sessionID]
	m.records[sessionID][userID] = aggregate.Record{SessionID: sessionID, UserID: userID, Date: sess.Date, Status: status}
	return nil
}

func (m *MemoryStore) FetchAttendanceRecords(_ context.Context, classroomID string) ([]aggregate.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []aggregate.Record
	for sid, byUser := range m.records {
		if m.sessions[sid].ClassroomID != classroomID {
			continue
		}
		for _, r := range byUser {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) PutCriterion(_ context.Context, classroomID string, c aggregate.Criterion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria[classroomID] = append(m.criteria[classroomID], c)
	return nil
}

func (m *MemoryStore) ListCriteria(_ context.Context, classroomID string) ([]aggregate.Criterion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]aggregate.Criterion(nil), m.criteria[classroomID]...), nil
}

func (m *MemoryStore) PutEvaluation(_ context.Context, ev aggregate.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evals[ev.ClassroomID] = append(m.evals[ev.ClassroomID], ev)
	return nil
}

func (m *MemoryStore) FetchEvaluations(_ context.Context, classroomID string) ([]aggregate.Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]aggregate.Evaluation(nil), m.evals[classroomID]...), nil
}

func (m *MemoryStore) ReportInput(ctx context.Context, classroomID string) (aggregate.ReportInput, error) {
	tests, _ := m.ListTestsByClassroom(ctx, classroomID)
	in := aggregate.ReportInput{TestKinds: make(map[string]testdef.Kind, len(tests))}
	for _, t := range tests {
		in.TestKinds[t.ID] = t.Kind
		subs, _ := m.ListSubmissionsByTest(ctx, t.ID)
		in.Submissions = append(in.Submissions, subs...)
	}
	in.Attendance, _ = m.FetchAttendanceRecords(ctx, classroomID)
	in.Criteria, _ = m.ListCriteria(ctx, classroomID)
	return in, nil
}
