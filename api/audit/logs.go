// Package audit serves the run audit trail over HTTP.
package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/planner/core/audit"
	"github.com/kilianp07/planner/core/model"
)

// NewLogHandler returns an HTTP handler exposing audit records via GET.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewLogHandler(store audit.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := audit.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		if s := r.URL.Query().Get("organization"); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, "invalid organization", http.StatusBadRequest)
				return
			}
			q.OrganizationID = id
		}
		q.RunID = r.URL.Query().Get("run_id")
		if st := r.URL.Query().Get("status"); st != "" {
			if v, ok := statusFromString(st); ok {
				q.Status = v
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []audit.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func statusFromString(s string) (model.RunStatus, bool) {
	st := model.RunStatus(s)
	switch st {
	case model.RunPending, model.RunRunning, model.RunSuccess, model.RunInfeasible, model.RunTimedOut, model.RunFailure:
		return st, true
	default:
		return "", false
	}
}
