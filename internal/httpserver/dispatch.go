package httpserver

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"mailroute/internal/domain"
)

// DispatchAPI is the dispatcher's manual-trigger surface. A run here goes
// through the same claim path as a timed run, so the two never double-send.
type DispatchAPI struct {
	Run func(ctx context.Context) (domain.BatchSummary, error)
}

func (d *DispatchAPI) Register(r *mux.Router) {
	r.HandleFunc("/v1/dispatch/run", d.handleRun).Methods(http.MethodPost)
}

func (d *DispatchAPI) handleRun(w http.ResponseWriter, r *http.Request) {
	summary, err := d.Run(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
