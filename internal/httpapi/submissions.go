package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
	"github.com/kotoba-labs/classroom-engine/internal/rbac"
	"github.com/kotoba-labs/classroom-engine/internal/store"
	"github.com/kotoba-labs/classroom-engine/internal/submission"
)

// timerSet tracks one auto-submit timer per in-progress attempt on a timed
// test. Timers die with the process; a restarted server relies on clients
// resubmitting, matching the single-shot submit rule.
type timerSet struct {
	mu sync.Mutex
	m  map[string]*submission.AutoSubmitTimer
}

func newTimerSet() *timerSet {
	return &timerSet{m: make(map[string]*submission.AutoSubmitTimer)}
}

func (ts *timerSet) start(submissionID string, d time.Duration, fire func(ctx context.Context)) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.m[submissionID]; ok {
		return
	}
	ts.m[submissionID] = submission.StartAutoSubmit(context.Background(), d, func(ctx context.Context) {
		fire(ctx)
		ts.remove(submissionID)
	})
}

// remove drops a fired timer's entry without stopping it; Stop from inside
// the fire callback would wait on the firing goroutine itself.
func (ts *timerSet) remove(submissionID string) {
	ts.mu.Lock()
	delete(ts.m, submissionID)
	ts.mu.Unlock()
}

func (ts *timerSet) size() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.m)
}

func (ts *timerSet) cancel(submissionID string) {
	ts.mu.Lock()
	t := ts.m[submissionID]
	delete(ts.m, submissionID)
	ts.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

// StartSubmissionHandler opens (or re-opens) the caller's attempt on a test.
// A second start returns the existing in-progress attempt unchanged. For
// timed tests an auto-submit timer is armed on first start.
func StartSubmissionHandler(st Store, svc *submission.Service, timers *timerSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testID := chi.URLParam(r, "testID")
		userID := rbac.SubjectFromContext(r.Context())
		d, err := st.GetTest(r.Context(), testID)
		if err != nil {
			writeError(w, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) == "student" && !d.IsPublished {
			writeError(w, &enginerr.NotFoundError{Kind: "test", ID: testID})
			return
		}
		sub, err := svc.Start(r.Context(), testID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if d.TimeLimitMinutes > 0 && sub.SubmittedAt == nil {
			// The window counts down from the original start, so a re-start
			// arms only the time still remaining.
			limit := time.Duration(d.TimeLimitMinutes) * time.Minute
			remaining := time.Until(sub.StartedAt.Add(limit))
			if remaining <= 0 {
				// Elapsed with no timer armed (e.g. across a restart): close
				// the attempt on the saved draft right here.
				if forced, err := svc.Submit(r.Context(), sub.ID, nil, d.TimeLimitMinutes*60); err == nil {
					sub = forced
				}
			} else {
				id := sub.ID
				timers.start(id, remaining, func(ctx context.Context) {
					// Force-close on whatever the client managed to push; a
					// race with an explicit submit is a no-op conflict.
					_, _ = svc.Submit(ctx, id, nil, d.TimeLimitMinutes*60)
				})
			}
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

type submitRequest struct {
	Answers          []submission.Answer `json:"answers"`
	TimeSpentSeconds int                 `json:"time_spent_seconds"`
}

// SaveProgressHandler stores draft answers on an in-progress attempt so the
// auto-submit timer has something to capture at the time limit.
func SaveProgressHandler(st Store, svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "submissionID")
		prev, err := st.GetSubmission(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) == "student" && prev.UserID != rbac.SubjectFromContext(r.Context()) {
			writeError(w, &enginerr.NotFoundError{Kind: "submission", ID: id})
			return
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		sub, err := svc.SaveProgress(r.Context(), id, req.Answers, req.TimeSpentSeconds)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

func SubmitHandler(st Store, svc *submission.Service, ev Events, timers *timerSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "submissionID")
		prev, err := st.GetSubmission(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) == "student" && prev.UserID != rbac.SubjectFromContext(r.Context()) {
			writeError(w, &enginerr.NotFoundError{Kind: "submission", ID: id})
			return
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		sub, err := svc.Submit(r.Context(), id, req.Answers, req.TimeSpentSeconds)
		if err != nil {
			writeError(w, err)
			return
		}
		timers.cancel(id)
		if d, terr := st.GetTest(r.Context(), sub.TestID); terr == nil {
			appendEvent(r.Context(), ev, store.Event{
				ClassroomID: d.ClassroomID,
				Type:        store.EventSubmissionSubmitted,
				Key:         sub.ID,
			})
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

func ListSubmissionsHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := st.ListSubmissionsByTest(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

type gradeRequest struct {
	Answers  []submission.Answer `json:"answers"`
	Feedback string              `json:"feedback"`
}

// GradeHandler applies a teacher's manual marks. The posted answer set
// replaces the stored one wholesale and the score is recomputed from it.
func GradeHandler(st Store, svc *submission.Service, ev Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "submissionID")
		var req gradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		graderID := rbac.SubjectFromContext(r.Context())
		sub, err := svc.Grade(r.Context(), id, req.Answers, req.Feedback, graderID)
		if err != nil {
			writeError(w, err)
			return
		}
		if d, terr := st.GetTest(r.Context(), sub.TestID); terr == nil {
			appendEvent(r.Context(), ev, store.Event{
				ClassroomID: d.ClassroomID,
				Type:        store.EventSubmissionGraded,
				Key:         sub.ID,
			})
		}
		writeJSON(w, http.StatusOK, sub)
	}
}
