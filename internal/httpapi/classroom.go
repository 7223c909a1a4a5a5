package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kotoba-labs/classroom-engine/internal/aggregate"
	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
	"github.com/kotoba-labs/classroom-engine/internal/report"
	"github.com/kotoba-labs/classroom-engine/internal/store"
)

type createSessionRequest struct {
	Date string `json:"date"`
}

func CreateSessionHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Date == "" {
			writeError(w, enginerr.Validationf("session date is required"))
			return
		}
		sess := store.Session{
			ID:          uuid.NewString(),
			ClassroomID: chi.URLParam(r, "classroomID"),
			Date:        req.Date,
		}
		if err := st.PutSession(r.Context(), sess); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

type markAttendanceRequest struct {
	ClassroomID string           `json:"classroom_id"`
	UserID      string           `json:"user_id"`
	Status      aggregate.Status `json:"status"`
}

func MarkAttendanceHandler(st Store, ev Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req markAttendanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		switch req.Status {
		case aggregate.StatusPresent, aggregate.StatusLate, aggregate.StatusAbsent, aggregate.StatusExcused:
		default:
			writeError(w, enginerr.Validationf("unknown attendance status %q", req.Status))
			return
		}
		sessionID := chi.URLParam(r, "sessionID")
		if err := st.MarkAttendance(r.Context(), sessionID, req.UserID, req.Status); err != nil {
			writeError(w, err)
			return
		}
		appendEvent(r.Context(), ev, store.Event{
			ClassroomID: req.ClassroomID,
			Type:        store.EventAttendanceMarked,
			Key:         sessionID + "/" + req.UserID,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func SaveEvaluationHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev aggregate.Evaluation
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ev.ClassroomID = chi.URLParam(r, "classroomID")
		if ev.UserID == "" || ev.Period == "" {
			writeError(w, enginerr.Validationf("user_id and period are required"))
			return
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if err := st.PutEvaluation(r.Context(), ev); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ev)
	}
}

// SuggestEvaluationHandler derives a candidate rating for one student from
// their current grade and attendance summaries. The teacher edits and saves
// the result separately; nothing is persisted here.
func SuggestEvaluationHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeError(w, enginerr.Validationf("user_id query parameter is required"))
			return
		}
		in, err := st.ReportInput(r.Context(), chi.URLParam(r, "classroomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		for _, rep := range aggregate.BuildClassReport(in) {
			if rep.UserID == userID {
				writeJSON(w, http.StatusOK, rep.Evaluation)
				return
			}
		}
		// No activity yet still yields a (floor) suggestion rather than a 404.
		writeJSON(w, http.StatusOK, aggregate.Suggest(aggregate.GradeSummary{}, aggregate.AttendanceSummary{}, in.Criteria))
	}
}

func ClassSummaryHandler(rm *aggregate.ReadModel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := rm.Reports(r.Context(), chi.URLParam(r, "classroomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reports)
	}
}

// RetryFailedSyncsHandler re-pushes only the students whose last gradebook
// sync failed.
func RetryFailedSyncsHandler(d *report.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d == nil {
			http.Error(w, "report sync is not configured", http.StatusServiceUnavailable)
			return
		}
		if err := d.RetryFailed(r.Context(), chi.URLParam(r, "classroomID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListEventsHandler exposes the change log from an offset so external
// consumers can catch up after downtime.
func ListEventsHandler(ev Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ev == nil {
			http.Error(w, "event log is not configured", http.StatusServiceUnavailable)
			return
		}
		var since int64
		if s := r.URL.Query().Get("since"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				writeError(w, enginerr.Validationf("bad since offset %q", s))
				return
			}
			since = v
		}
		limit := 100
		if s := r.URL.Query().Get("limit"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v <= 0 {
				writeError(w, enginerr.Validationf("bad limit %q", s))
				return
			}
			limit = v
		}
		events, err := ev.Since(r.Context(), since, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if events == nil {
			events = []store.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

// SyncReportsHandler pushes the classroom's reports to the configured
// external gradebook, or a single student's when user_id is given.
func SyncReportsHandler(d *report.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d == nil {
			http.Error(w, "report sync is not configured", http.StatusServiceUnavailable)
			return
		}
		classroomID := chi.URLParam(r, "classroomID")
		var err error
		if userID := r.URL.Query().Get("user_id"); userID != "" {
			err = d.SyncStudent(r.Context(), classroomID, userID)
		} else {
			err = d.SyncClassroom(r.Context(), classroomID)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
