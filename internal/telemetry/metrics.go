package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики воркера. Экспортируются на /metrics.
var (
	// Attempts — счётчик попыток доставки по исходу
	// (successful, client_error, server_error, other_status, timed_out, inconsistent).
	Attempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_attempts_total",
		Help: "Delivery attempts by outcome.",
	}, []string{"outcome"})

	// ClaimDuration — длительность claim-транзакции.
	// Долгие захваты указывают на contention или отсутствующий индекс.
	ClaimDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courier_claim_duration_seconds",
		Help:    "Duration of the batch claim transaction.",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30, 60, 80},
	})

	// CycleDuration — длительность одного цикла воркера.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courier_cycle_duration_seconds",
		Help:    "Duration of one worker cycle (claim + process + sweep).",
		Buckets: prometheus.DefBuckets,
	})

	// RequestsByState — текущее количество requests в каждом состоянии.
	// Заполняется монитором очереди.
	RequestsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courier_requests",
		Help: "Number of requests per state.",
	}, []string{"state"})

	// Promoted — счётчик строк, продвинутых sweeper'ом из waiting в ready.
	Promoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_promoted_total",
		Help: "Rows promoted from waiting to ready by the sweeper.",
	})
)
