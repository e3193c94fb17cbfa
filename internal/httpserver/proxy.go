package httpserver

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// RunProxy forwards "test now" from the admin surface to the dispatcher's
// run endpoint, so administrators need only one base URL. The dispatcher
// claim path keeps an overlapping scheduled run safe.
type RunProxy struct {
	DispatcherURL string
	Client        *http.Client
}

func (p *RunProxy) Register(r *mux.Router) {
	r.HandleFunc("/v1/dispatch/run", p.handleRun).Methods(http.MethodPost)
}

func (p *RunProxy) handleRun(w http.ResponseWriter, r *http.Request) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.DispatcherURL+"/v1/dispatch/run", nil)
	if err != nil {
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
