package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "routeman_build_info",
		Help: "Build information of the route manager",
	},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routeman_http_requests_total",
		Help: "Total number of HTTP requests served",
	},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "routeman_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"method", "path"},
	)

	AuthFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routeman_auth_failures_total",
		Help: "Total number of rejected API requests",
	},
		[]string{"reason"},
	)
)
