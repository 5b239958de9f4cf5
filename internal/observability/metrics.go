package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_exchange", Name: "matches_total", Help: "Total successful rider/driver matches"})
	ArrivalsTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_exchange", Name: "arrivals_total", Help: "Total rides completed"})
	ChatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_exchange", Name: "chat_messages_total", Help: "Total chat messages appended"})
	RequestsPending   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_exchange", Name: "requests_pending", Help: "Ride requests currently awaiting selection"})
	WSConnections     = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "ride_exchange", Name: "ws_connections", Help: "Open websocket connections per channel"},
		[]string{"channel"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_exchange", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_exchange",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
