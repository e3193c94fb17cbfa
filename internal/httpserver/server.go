package httpserver

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	Mux *mux.Router
}

// New builds the router with logging and request metrics applied to every
// route, plus the Prometheus scrape endpoint.
func New(requests *prometheus.CounterVec) *Server {
	r := mux.NewRouter()
	r.Use(Logging, Metrics(requests))
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return &Server{Mux: r}
}
