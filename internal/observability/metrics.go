package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailroute_api_requests_total", Help: "API requests"},
		[]string{"route", "status"},
	)
	Batches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailroute_dispatch_batches_total", Help: "Dispatch batch runs"},
		[]string{"trigger"},
	)
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailroute_deliveries_total", Help: "Transport delivery outcomes"},
		[]string{"kind", "result"},
	)
	SendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "mailroute_send_latency_seconds", Help: "Transport send latency"},
	)
	Routes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailroute_route_resolutions_total", Help: "Routing rule resolutions"},
		[]string{"result"},
	)
	Terminal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailroute_messages_terminal_total", Help: "Messages reaching a terminal status"},
		[]string{"status"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Batches, Deliveries, SendLatency, Routes, Terminal)
}
