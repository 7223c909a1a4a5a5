package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kotoba-labs/classroom-engine/internal/aggregate"
	"github.com/kotoba-labs/classroom-engine/internal/auth"
	"github.com/kotoba-labs/classroom-engine/internal/bank"
	"github.com/kotoba-labs/classroom-engine/internal/sources"
	"github.com/kotoba-labs/classroom-engine/internal/store"
	"github.com/kotoba-labs/classroom-engine/internal/submission"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

type fakeEvents struct {
	mu     sync.Mutex
	events []store.Event
}

func (f *fakeEvents) Append(_ context.Context, e store.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.Offset = int64(len(f.events) + 1)
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) Since(_ context.Context, offset int64, limit int) ([]store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Event
	for _, e := range f.events {
		if e.Offset > offset && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type apiFixture struct {
	handler http.Handler
	store   *store.MemoryStore
	auth    *auth.Service
	events  *fakeEvents
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	mem := store.NewMemoryStore()
	as := auth.NewService("test-secret")
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	tmpl := sources.NewTemplateProvider(func(ctx context.Context, level string) ([]bank.Question, error) {
		qs := make([]bank.Question, 12)
		for i := range qs {
			qs[i] = bank.Question{
				ID:            fmt.Sprintf("tq-%02d", i),
				Type:          bank.TypeTrueFalse,
				Prompt:        fmt.Sprintf("statement %d is true", i),
				CorrectAnswer: bank.AnswerTrue,
				Points:        5,
				Difficulty:    bank.DifficultyMedium,
			}
		}
		return qs, nil
	})

	fe := &fakeEvents{}
	h := New(Deps{
		Store:     mem,
		Subs:      submission.NewService(mem),
		Registry:  sources.NewRegistry(tmpl),
		ReadModel: aggregate.NewReadModel(mem),
		Events:    fe,
		Auth:      as,
		Accounts: []auth.Account{
			{Username: "sensei", PassHash: string(hash), Role: "teacher"},
			{Username: "hana", PassHash: string(hash), Role: "student"},
		},
	})
	return &apiFixture{handler: h, store: mem, auth: as, events: fe}
}

func (f *apiFixture) token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := f.auth.IssueJWT(user, role)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func sampleQuestions() []bank.Question {
	return []bank.Question{
		{ID: "q1", Type: bank.TypeMultipleChoice, Prompt: "pick B", Options: []string{"A", "B"}, CorrectAnswer: "1", Points: 10, Difficulty: bank.DifficultyEasy},
		{ID: "q2", Type: bank.TypeText, Prompt: "translate: neko", CorrectAnswer: "cat", Points: 15, Difficulty: bank.DifficultyMedium},
	}
}

func TestLoginAndAuthGating(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "sensei", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]string](t, rec)
	assert.NotEmpty(t, resp["token"])
	assert.Equal(t, "teacher", resp["role"])

	rec = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "sensei", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// No token at all.
	rec = f.do(t, http.MethodGet, "/classrooms/c1/tests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Students may not create tests.
	rec = f.do(t, http.MethodPost, "/tests", f.token(t, "hana", "student"),
		createTestRequest{ClassroomID: "c1", Title: "x", Kind: testdef.KindTest, Questions: sampleQuestions()})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreatePublishStudentView(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "sensei", "teacher")
	student := f.token(t, "hana", "student")

	rec := f.do(t, http.MethodPost, "/tests", teacher,
		createTestRequest{ClassroomID: "c1", Title: "Unit 3 quiz", Kind: testdef.KindTest, Questions: sampleQuestions()})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[testdef.Definition](t, rec)
	assert.Equal(t, 25.0, created.TotalPoints)
	assert.False(t, created.IsPublished)

	// Unpublished tests are invisible to students.
	rec = f.do(t, http.MethodGet, "/tests/"+created.ID, student, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/tests/"+created.ID+"/publish", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/tests/"+created.ID, student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[testdef.Definition](t, rec)
	for _, q := range view.Questions {
		assert.Empty(t, q.CorrectAnswer)
		assert.Empty(t, q.Explanation)
	}

	// Staff keep the full view.
	rec = f.do(t, http.MethodGet, "/tests/"+created.ID, teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	full := decode[testdef.Definition](t, rec)
	assert.Equal(t, "1", full.Questions[0].CorrectAnswer)

	rec = f.do(t, http.MethodGet, "/classrooms/c1/tests", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]testdef.Definition](t, rec)
	require.Len(t, list, 1)
}

func TestGenerateEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "sensei", "teacher")

	req := generateTestRequest{
		ClassroomID: "c1",
		Title:       "Generated review",
		Kind:        testdef.KindTest,
		Level:       "N5",
		Count:       10,
		TotalPoints: 100,
		Sources:     map[string]float64{"template": 100},
		Difficulty:  bank.DifficultyMedium,
	}
	rec := f.do(t, http.MethodPost, "/tests/generate", teacher, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[testdef.Definition](t, rec)
	require.Len(t, d.Questions, 10)
	var sum float64
	for _, q := range d.Questions {
		sum += q.Points
	}
	assert.Equal(t, 100.0, sum)

	// Pool only holds 12 questions.
	req.Count = 20
	rec = f.do(t, http.MethodPost, "/tests/generate", teacher, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, 8.0, body["shortfall"])
}

func TestSubmitAndGradeFlow(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "sensei", "teacher")
	student := f.token(t, "hana", "student")

	rec := f.do(t, http.MethodPost, "/tests", teacher,
		createTestRequest{ClassroomID: "c1", Title: "quiz", Kind: testdef.KindTest, Questions: sampleQuestions()})
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decode[testdef.Definition](t, rec)
	rec = f.do(t, http.MethodPost, "/tests/"+d.ID+"/publish", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/tests/"+d.ID+"/submissions", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sub := decode[submission.Submission](t, rec)

	// Starting again returns the same attempt.
	rec = f.do(t, http.MethodPost, "/tests/"+d.ID+"/submissions", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[submission.Submission](t, rec)
	assert.Equal(t, sub.ID, again.ID)

	rec = f.do(t, http.MethodPost, "/submissions/"+sub.ID+"/submit", student, submitRequest{
		Answers: []submission.Answer{
			{QuestionID: "q1", Answer: "1"},
			{QuestionID: "q2", Answer: "a cat"},
		},
		TimeSpentSeconds: 300,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	submitted := decode[submission.Submission](t, rec)
	assert.Equal(t, 10.0, submitted.Score) // free-text q2 awaits manual marks

	// Single-shot submit.
	rec = f.do(t, http.MethodPost, "/submissions/"+sub.ID+"/submit", student, submitRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	pts := 15.0
	ok := true
	rec = f.do(t, http.MethodPost, "/submissions/"+sub.ID+"/grade", teacher, gradeRequest{
		Answers: []submission.Answer{
			{QuestionID: "q1", Answer: "1", IsCorrect: &ok, PointsEarned: func() *float64 { v := 10.0; return &v }()},
			{QuestionID: "q2", Answer: "a cat", IsCorrect: &ok, PointsEarned: &pts},
		},
		Feedback: "nice work",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	graded := decode[submission.Submission](t, rec)
	assert.Equal(t, 25.0, graded.Score)
	assert.Equal(t, "sensei", graded.GradedBy)

	// Teachers can list everyone's attempts, students cannot.
	rec = f.do(t, http.MethodGet, "/tests/"+d.ID+"/submissions", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	subs := decode[[]submission.Submission](t, rec)
	assert.Len(t, subs, 1)
	rec = f.do(t, http.MethodGet, "/tests/"+d.ID+"/submissions", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAttendanceAndSummary(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "sensei", "teacher")

	rec := f.do(t, http.MethodPost, "/classrooms/c1/sessions", teacher, createSessionRequest{Date: "2026-04-01"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decode[store.Session](t, rec)

	for user, status := range map[string]aggregate.Status{"hana": aggregate.StatusPresent, "taro": aggregate.StatusLate} {
		rec = f.do(t, http.MethodPost, "/sessions/"+sess.ID+"/records", teacher,
			markAttendanceRequest{ClassroomID: "c1", UserID: user, Status: status})
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/sessions/"+sess.ID+"/records", teacher,
		markAttendanceRequest{ClassroomID: "c1", UserID: "hana", Status: "vanished"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, "/classrooms/c1/summary", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decode[[]aggregate.StudentReport](t, rec)
	require.Len(t, reports, 2)
	// Late still counts toward the attendance rate.
	for _, rep := range reports {
		assert.Equal(t, 100.0, rep.Attendance.Rate)
	}
}

func TestSuggestEvaluationEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "sensei", "teacher")

	rec := f.do(t, http.MethodGet, "/classrooms/c1/evaluations/suggest", teacher, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// A student with no recorded activity gets the floor suggestion, not 404.
	rec = f.do(t, http.MethodGet, "/classrooms/c1/evaluations/suggest?user_id=ghost", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sug := decode[aggregate.Suggestion](t, rec)
	assert.Equal(t, 1, sug.Stars)

	rec = f.do(t, http.MethodPost, "/classrooms/c1/evaluations", teacher, aggregate.Evaluation{
		UserID: "hana", Period: "2026-Q1", Scores: map[string]float64{"effort": 9},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	saved := decode[aggregate.Evaluation](t, rec)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "c1", saved.ClassroomID)
}

func TestSaveProgressEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "sensei", "teacher")
	student := f.token(t, "hana", "student")

	rec := f.do(t, http.MethodPost, "/tests", teacher,
		createTestRequest{ClassroomID: "c1", Title: "quiz", Kind: testdef.KindTest, Questions: sampleQuestions()})
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decode[testdef.Definition](t, rec)
	rec = f.do(t, http.MethodPost, "/tests/"+d.ID+"/publish", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/tests/"+d.ID+"/submissions", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sub := decode[submission.Submission](t, rec)

	rec = f.do(t, http.MethodPut, "/submissions/"+sub.ID+"/answers", student, submitRequest{
		Answers:          []submission.Answer{{QuestionID: "q1", Answer: "1"}},
		TimeSpentSeconds: 60,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode[submission.Submission](t, rec)
	require.Len(t, draft.Answers, 1)
	assert.Nil(t, draft.Answers[0].IsCorrect)

	// Another student's draft is invisible.
	rec = f.do(t, http.MethodPut, "/submissions/"+sub.ID+"/answers", f.token(t, "taro", "student"), submitRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Submitting without a body payload closes on the saved draft.
	rec = f.do(t, http.MethodPost, "/submissions/"+sub.ID+"/submit", student, submitRequest{TimeSpentSeconds: 90})
	require.Equal(t, http.StatusOK, rec.Code)
	closed := decode[submission.Submission](t, rec)
	assert.Equal(t, 10.0, closed.Score)
}

func TestRestartElapsedTimedAttemptForcesSubmit(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "sensei", "teacher")
	student := f.token(t, "hana", "student")

	rec := f.do(t, http.MethodPost, "/tests", teacher, createTestRequest{
		ClassroomID: "c1", Title: "timed quiz", Kind: testdef.KindTest,
		Questions: sampleQuestions(), TimeLimitMinutes: 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decode[testdef.Definition](t, rec)
	rec = f.do(t, http.MethodPost, "/tests/"+d.ID+"/publish", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/tests/"+d.ID+"/submissions", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sub := decode[submission.Submission](t, rec)

	rec = f.do(t, http.MethodPut, "/submissions/"+sub.ID+"/answers", student, submitRequest{
		Answers: []submission.Answer{{QuestionID: "q1", Answer: "1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Simulate the window elapsing with no timer armed (server restart):
	// rewind the recorded start past the limit.
	ctx := context.Background()
	stored, err := f.store.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	stored.StartedAt = time.Now().Add(-31 * time.Minute)
	require.NoError(t, f.store.PutSubmission(ctx, stored))

	// Re-start must not hand out a fresh window; the attempt closes on the
	// saved draft immediately.
	rec = f.do(t, http.MethodPost, "/tests/"+d.ID+"/submissions", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	closed := decode[submission.Submission](t, rec)
	require.NotNil(t, closed.SubmittedAt)
	assert.Equal(t, 10.0, closed.Score)

	rec = f.do(t, http.MethodPost, "/submissions/"+sub.ID+"/submit", student, submitRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTimerSetRemovesFiredEntries(t *testing.T) {
	ts := newTimerSet()
	fired := make(chan struct{})
	ts.start("s1", time.Millisecond, func(context.Context) { close(fired) })
	require.Equal(t, 1, ts.size())
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	deadline := time.Now().Add(time.Second)
	for ts.size() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("fired timer entry still tracked")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEventLogEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "sensei", "teacher")
	admin := f.token(t, "root", "admin")

	rec := f.do(t, http.MethodPost, "/tests", teacher,
		createTestRequest{ClassroomID: "c1", Title: "quiz", Kind: testdef.KindTest, Questions: sampleQuestions()})
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decode[testdef.Definition](t, rec)
	rec = f.do(t, http.MethodPost, "/tests/"+d.ID+"/publish", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Teachers don't hold event:view.
	rec = f.do(t, http.MethodGet, "/events", teacher, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/events", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]store.Event](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, store.EventTestPublished, events[0].Type)
	assert.Equal(t, d.ID, events[0].Key)

	// Consumers resume from the last offset they saw.
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/events?since=%d", events[0].Offset), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rest := decode[[]store.Event](t, rec)
	assert.Empty(t, rest)

	rec = f.do(t, http.MethodGet, "/events?since=abc", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReportSyncUnconfigured(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "sensei", "teacher")

	rec := f.do(t, http.MethodPost, "/classrooms/c1/reports/sync", teacher, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = f.do(t, http.MethodPost, "/classrooms/c1/reports/retry", teacher, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
