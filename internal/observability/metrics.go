package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "matches_total", Help: "Total successful driver matches"})
	MatchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "match_failures_total", Help: "Ride requests that found no driver"})
	RidesCompleted     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "rides_completed_total", Help: "Total completed rides"})
	RidesCancelled     = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "rides_cancelled_total", Help: "Total cancelled rides by initiator"},
		[]string{"initiator"},
	)
	RevenueTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "revenue_total", Help: "Total fare revenue settled"})
	DriversAvailable = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_marketplace", Name: "drivers_available", Help: "Drivers currently available for matching"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_marketplace",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
