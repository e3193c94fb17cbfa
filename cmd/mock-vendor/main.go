package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
)

// mock-vendor imitates the generic JSON mail API the http transport talks
// to. Outcomes are scripted through MOCK_OUTCOMES so failover and timeout
// paths can be exercised end to end without a real vendor.
type config struct {
	Port        string  `envconfig:"PORT" default:"8090"`
	APIKey      string  `envconfig:"MOCK_API_KEY" default:"mock_key"`
	Username    string  `envconfig:"MOCK_USERNAME" default:""`
	Password    string  `envconfig:"MOCK_PASSWORD" default:""`
	OutcomeMode string  `envconfig:"MOCK_OUTCOME_MODE" default:"fixed"`
	OutcomesRaw string  `envconfig:"MOCK_OUTCOMES" default:"ok"`
	SuccessRate float64 `envconfig:"MOCK_SUCCESS_RATE" default:"0.95"`
	DelayMs     int     `envconfig:"MOCK_DELAY_MS" default:"0"`
	TimeoutMs   int     `envconfig:"MOCK_TIMEOUT_DELAY_MS" default:"12000"`

	Outcomes     []string
	Delay        time.Duration
	TimeoutDelay time.Duration
}

type sendPayload struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	ReplyTo  string `json:"reply_to"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

type sendResponse struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type server struct {
	cfg   config
	idx   uint64
	rng   *rand.Rand
	rngMu sync.Mutex
}

func main() {
	cfg := loadConfig()

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	s := &server{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	router := mux.NewRouter()
	router.HandleFunc("/v1/send", s.handleSend).Methods(http.MethodPost)

	slog.Info("mock vendor listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, loggingMiddleware(router)); err != nil {
		slog.Error("mock vendor server failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig() config {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("mock vendor config load failed", "err", err)
		os.Exit(1)
	}
	cfg.OutcomeMode = strings.ToLower(cfg.OutcomeMode)
	cfg.Outcomes = parseCSV(cfg.OutcomesRaw)
	cfg.Delay = time.Duration(cfg.DelayMs) * time.Millisecond
	cfg.TimeoutDelay = time.Duration(cfg.TimeoutMs) * time.Millisecond
	return cfg
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("mock vendor request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(r) {
		writeJSON(w, http.StatusUnauthorized, sendResponse{Status: "failed", Message: "authentication error"})
		return
	}

	var p sendPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, sendResponse{Status: "failed", Message: "invalid json"})
		return
	}
	if p.From == "" || p.To == "" || p.Body == "" {
		writeJSON(w, http.StatusBadRequest, sendResponse{Status: "failed", Message: "missing required field"})
		return
	}

	if s.cfg.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.cfg.Delay):
		}
	}

	switch s.nextOutcome() {
	case "ok", "success":
		id := atomic.AddUint64(&s.idx, 1)
		writeJSON(w, http.StatusOK, sendResponse{ID: fmt.Sprintf("em_%06d", id), Status: "accepted"})
	case "failed":
		writeJSON(w, http.StatusUnprocessableEntity, sendResponse{Status: "failed", Message: "recipient rejected"})
	case "rate_limit", "429":
		writeJSON(w, http.StatusTooManyRequests, sendResponse{Status: "failed", Message: "rate limited"})
	case "server_error", "500":
		writeJSON(w, http.StatusInternalServerError, sendResponse{Status: "failed", Message: "internal error"})
	case "timeout":
		// Hold the connection past any sane client timeout.
		select {
		case <-r.Context().Done():
		case <-time.After(s.cfg.TimeoutDelay):
			writeJSON(w, http.StatusGatewayTimeout, sendResponse{Status: "failed", Message: "timed out"})
		}
	default:
		writeJSON(w, http.StatusInternalServerError, sendResponse{Status: "failed", Message: "unknown outcome"})
	}
}

func (s *server) checkAuth(r *http.Request) bool {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ") == s.cfg.APIKey
	}
	if s.cfg.Username != "" {
		user, pass, ok := r.BasicAuth()
		return ok && user == s.cfg.Username && pass == s.cfg.Password
	}
	return false
}

func (s *server) nextOutcome() string {
	switch s.cfg.OutcomeMode {
	case "round_robin":
		idx := atomic.AddUint64(&s.idx, 1) - 1
		return s.cfg.Outcomes[int(idx)%len(s.cfg.Outcomes)]
	case "random":
		s.rngMu.Lock()
		i := s.rng.Intn(len(s.cfg.Outcomes))
		s.rngMu.Unlock()
		return s.cfg.Outcomes[i]
	case "weighted":
		s.rngMu.Lock()
		ok := s.rng.Float64() <= s.cfg.SuccessRate
		s.rngMu.Unlock()
		if ok {
			return "ok"
		}
		return "failed"
	default:
		return s.cfg.Outcomes[0]
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{"ok"}
	}
	return out
}
