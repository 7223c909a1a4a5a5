package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
	"github.com/kotoba-labs/classroom-engine/internal/submission"
)

// writeError maps the engine's typed errors onto HTTP statuses. The
// insufficient-pool case carries the shortfall so the client can warn before
// the teacher retries.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve *enginerr.ValidationError
		pe *enginerr.InsufficientPoolError
		de *enginerr.DuplicateSubmissionError
		ge *enginerr.GradingStateError
		nf *enginerr.NotFoundError
	)
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":     pe.Error(),
			"requested": pe.Requested,
			"available": pe.Available,
			"shortfall": pe.Shortfall(),
		})
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &de):
		http.Error(w, de.Error(), http.StatusConflict)
	case errors.As(err, &ge):
		http.Error(w, ge.Error(), http.StatusConflict)
	case errors.As(err, &nf):
		http.Error(w, nf.Error(), http.StatusNotFound)
	case errors.Is(err, submission.ErrNoSubmission):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
