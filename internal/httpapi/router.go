// Package httpapi is the chi HTTP surface over the grading engine. Handlers
// are thin: decode, call the domain service, map typed errors to statuses.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kotoba-labs/classroom-engine/internal/aggregate"
	"github.com/kotoba-labs/classroom-engine/internal/auth"
	"github.com/kotoba-labs/classroom-engine/internal/rbac"
	"github.com/kotoba-labs/classroom-engine/internal/report"
	"github.com/kotoba-labs/classroom-engine/internal/sources"
	"github.com/kotoba-labs/classroom-engine/internal/store"
	"github.com/kotoba-labs/classroom-engine/internal/submission"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

// Store is the persistence surface the handlers need beyond what the
// submission service already wraps. Both store.SQLStore and store.MemoryStore
// satisfy it.
type Store interface {
	PutTest(ctx context.Context, d testdef.Definition) error
	GetTest(ctx context.Context, id string) (testdef.Definition, error)
	ListTestsByClassroom(ctx context.Context, classroomID string) ([]testdef.Definition, error)
	GetSubmission(ctx context.Context, id string) (submission.Submission, error)
	ListSubmissionsByTest(ctx context.Context, testID string) ([]submission.Submission, error)
	PutSession(ctx context.Context, sess store.Session) error
	MarkAttendance(ctx context.Context, sessionID, userID string, status aggregate.Status) error
	PutEvaluation(ctx context.Context, ev aggregate.Evaluation) error
	ListCriteria(ctx context.Context, classroomID string) ([]aggregate.Criterion, error)
	ReportInput(ctx context.Context, classroomID string) (aggregate.ReportInput, error)
}

// Events is the change log: appends after writes, offset reads for external
// consumers catching up. Nil is allowed for deployments without an event log
// (the in-memory store); appends are then skipped and reads answer 503.
type Events interface {
	Append(ctx context.Context, e store.Event) error
	Since(ctx context.Context, offset int64, limit int) ([]store.Event, error)
}

type Deps struct {
	Store       Store
	Subs        *submission.Service
	Registry    *sources.Registry
	ReadModel   *aggregate.ReadModel
	Events      Events
	Dispatcher  *report.Dispatcher
	Auth        *auth.Service
	Accounts    []auth.Account
	CORSOrigins []string
}

// New assembles the router. Everything except /auth/login sits behind JWT
// auth plus per-route permission checks.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Accounts))

	timers := newTimerSet()

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Auth))

		r.With(rbac.Require("test:create")).Post("/tests", CreateTestHandler(d.Store))
		r.With(rbac.Require("test:create")).Post("/tests/generate", GenerateTestHandler(d.Store, d.Registry))
		r.With(rbac.Require("test:publish")).Post("/tests/{testID}/publish", PublishTestHandler(d.Store, d.Events))
		r.With(rbac.Require("test:view")).Get("/tests/{testID}", GetTestHandler(d.Store))
		r.With(rbac.Require("test:view")).Get("/classrooms/{classroomID}/tests", ListTestsHandler(d.Store))

		r.With(rbac.Require("submission:start")).Post("/tests/{testID}/submissions", StartSubmissionHandler(d.Store, d.Subs, timers))
		r.With(rbac.Require("submission:submit")).Put("/submissions/{submissionID}/answers", SaveProgressHandler(d.Store, d.Subs))
		r.With(rbac.Require("submission:submit")).Post("/submissions/{submissionID}/submit", SubmitHandler(d.Store, d.Subs, d.Events, timers))
		r.With(rbac.Require("submission:view-all")).Get("/tests/{testID}/submissions", ListSubmissionsHandler(d.Store))
		r.With(rbac.Require("submission:grade")).Post("/submissions/{submissionID}/grade", GradeHandler(d.Store, d.Subs, d.Events))

		r.With(rbac.Require("attendance:create")).Post("/classrooms/{classroomID}/sessions", CreateSessionHandler(d.Store))
		r.With(rbac.Require("attendance:mark")).Post("/sessions/{sessionID}/records", MarkAttendanceHandler(d.Store, d.Events))

		r.With(rbac.Require("evaluation:save")).Post("/classrooms/{classroomID}/evaluations", SaveEvaluationHandler(d.Store))
		r.With(rbac.Require("evaluation:save")).Get("/classrooms/{classroomID}/evaluations/suggest", SuggestEvaluationHandler(d.Store))

		r.With(rbac.Require("report:view")).Get("/classrooms/{classroomID}/summary", ClassSummaryHandler(d.ReadModel))
		r.With(rbac.Require("report:sync")).Post("/classrooms/{classroomID}/reports/sync", SyncReportsHandler(d.Dispatcher))
		r.With(rbac.Require("report:sync")).Post("/classrooms/{classroomID}/reports/retry", RetryFailedSyncsHandler(d.Dispatcher))

		r.With(rbac.Require("event:view")).Get("/events", ListEventsHandler(d.Events))
	})

	return r
}

func appendEvent(ctx context.Context, ev Events, e store.Event) {
	if ev == nil {
		return
	}
	// Log writes are best-effort; the read model falls back to a full recount
	// on its next cache miss either way.
	_ = ev.Append(ctx, e)
}
