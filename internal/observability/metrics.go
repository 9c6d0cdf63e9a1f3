package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_scans_total",
			Help: "Processed gate scans by result",
		},
		[]string{"result"},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gate_scan_seconds",
			Help:    "Duration of scan processing including store writes",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_tickets_issued_total",
			Help: "Tickets created by the issuance service",
		},
	)

	IssuanceConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_issuance_conflicts_total",
			Help: "Issuance inserts that lost the uniqueness race and re-fetched",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gate_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
