package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// CleanupEvaluations counts after-claims by outcome: verified, flagged or
	// the rejection kind.
	CleanupEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleanproof",
		Subsystem: "trust",
		Name:      "cleanup_evaluations_total",
		Help:      "Total number of cleanup claims evaluated, labeled by outcome.",
	}, []string{"outcome"})

	// SimilaritySignals counts answers of the similarity collaborator.
	SimilaritySignals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleanproof",
		Subsystem: "trust",
		Name:      "similarity_signals_total",
		Help:      "Total number of similarity comparisons, labeled by signal (pass, fail, unavailable).",
	}, []string{"signal"})

	// DirtyReports counts dirty report submissions by result.
	DirtyReports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleanproof",
		Subsystem: "consensus",
		Name:      "dirty_reports_total",
		Help:      "Total number of dirty reports, labeled by result.",
	}, []string{"result"})

	// ConsensusTransitions counts locations flipped to dirty.
	ConsensusTransitions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cleanproof",
		Subsystem: "consensus",
		Name:      "transitions_total",
		Help:      "Total number of locations transitioned to dirty by consensus.",
	})

	// FanoutEntries counts notification entries handed to the fan-out transport.
	FanoutEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleanproof",
		Subsystem: "notify",
		Name:      "fanout_entries_total",
		Help:      "Total number of notification fan-out entries, labeled by publish result.",
	}, []string{"result"})

	// PointsAwarded sums points appended to the ledger by reason.
	PointsAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleanproof",
		Subsystem: "ledger",
		Name:      "points_awarded_total",
		Help:      "Total points appended to the ledger, labeled by reason.",
	}, []string{"reason"})

	// RequestDurationSeconds is the handler latency per route.
	RequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cleanproof",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, labeled by route and status code.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route", "code"})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			CleanupEvaluations,
			SimilaritySignals,
			DirtyReports,
			ConsensusTransitions,
			FanoutEntries,
			PointsAwarded,
			RequestDurationSeconds,
		)
	})
}
