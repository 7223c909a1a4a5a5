package httpapi

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kotoba-labs/classroom-engine/internal/bank"
	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
	"github.com/kotoba-labs/classroom-engine/internal/rbac"
	"github.com/kotoba-labs/classroom-engine/internal/sampler"
	"github.com/kotoba-labs/classroom-engine/internal/sources"
	"github.com/kotoba-labs/classroom-engine/internal/store"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

type createTestRequest struct {
	ClassroomID      string          `json:"classroom_id"`
	Title            string          `json:"title"`
	Kind             testdef.Kind    `json:"kind"`
	Questions        []bank.Question `json:"questions"`
	TimeLimitMinutes int             `json:"time_limit_minutes"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
}

func CreateTestHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		d := testdef.New(req.ClassroomID, req.Title, req.Kind, req.Questions)
		d.TimeLimitMinutes = req.TimeLimitMinutes
		d.Deadline = req.Deadline
		if err := d.Validate(); err != nil {
			writeError(w, err)
			return
		}
		if err := st.PutTest(r.Context(), d); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	}
}

type generateTestRequest struct {
	ClassroomID      string                 `json:"classroom_id"`
	Title            string                 `json:"title"`
	Kind             testdef.Kind           `json:"kind"`
	Level            string                 `json:"level"`
	Count            int                    `json:"count"`
	TotalPoints      float64                `json:"total_points"`
	Sources          map[string]float64     `json:"sources"`
	Difficulty       bank.Difficulty        `json:"difficulty,omitempty"`
	Mix              *sampler.DifficultyMix `json:"mix,omitempty"`
	TimeLimitMinutes int                    `json:"time_limit_minutes"`
	Deadline         *time.Time             `json:"deadline,omitempty"`
}

// GenerateTestHandler samples a fresh question set from the enabled sources
// and saves the resulting definition unpublished so the teacher can review it.
func GenerateTestHandler(st Store, reg *sources.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateTestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		enabled := make(map[sampler.SourceKind]float64, len(req.Sources))
		for k, pct := range req.Sources {
			enabled[sampler.SourceKind(k)] = pct
		}
		pools, err := reg.Pools(r.Context(), req.Level, enabled)
		if err != nil {
			writeError(w, err)
			return
		}
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		qs, err := sampler.Generate(sampler.Request{
			Count:       req.Count,
			TotalPoints: req.TotalPoints,
			Sources:     pools,
			Difficulty:  req.Difficulty,
			Mix:         req.Mix,
		}, rng)
		if err != nil {
			writeError(w, err)
			return
		}
		d := testdef.New(req.ClassroomID, req.Title, req.Kind, qs)
		d.TimeLimitMinutes = req.TimeLimitMinutes
		d.Deadline = req.Deadline
		if err := d.Validate(); err != nil {
			writeError(w, err)
			return
		}
		if err := st.PutTest(r.Context(), d); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	}
}

func PublishTestHandler(st Store, ev Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		d, err := st.GetTest(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !d.IsPublished {
			d.IsPublished = true
			if err := st.PutTest(r.Context(), d); err != nil {
				writeError(w, err)
				return
			}
			appendEvent(r.Context(), ev, store.Event{
				ClassroomID: d.ClassroomID,
				Type:        store.EventTestPublished,
				Key:         d.ID,
			})
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// GetTestHandler returns the full definition to staff. Students only see
// published tests, with answer keys and explanations stripped.
func GetTestHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := st.GetTest(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) == "student" {
			if !d.IsPublished {
				writeError(w, &enginerr.NotFoundError{Kind: "test", ID: d.ID})
				return
			}
			d = d.StudentView()
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func ListTestsHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := st.ListTestsByClassroom(r.Context(), chi.URLParam(r, "classroomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) == "student" {
			out := make([]testdef.Definition, 0, len(ds))
			for _, d := range ds {
				if d.IsPublished {
					out = append(out, d.StudentView())
				}
			}
			ds = out
		}
		writeJSON(w, http.StatusOK, ds)
	}
}
