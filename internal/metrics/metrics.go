// Package metrics provides Prometheus metrics for the matching pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "roommate_matcher"

var (
	// CandidatesEvaluated counts scored candidates by outcome (matched, incompatible, below_threshold, pruned, error).
	CandidatesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "candidates_total",
			Help:      "Total number of candidates evaluated by outcome",
		},
		[]string{"outcome"},
	)

	// PoolDropped counts candidates removed by each pool filter step.
	PoolDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "pool_dropped_total",
			Help:      "Total number of candidates dropped by pool filter step",
		},
		[]string{"step"},
	)

	// RecommendDuration tracks the duration of recommendation requests.
	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "request_duration_seconds",
			Help:      "Duration of ranking requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation", "enhanced"},
	)

	// NotesAnalyses counts notes analyses by status (ok, empty, failed).
	NotesAnalyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notes",
			Name:      "analyses_total",
			Help:      "Total number of notes analyses by status",
		},
		[]string{"status"},
	)

	// NotesDuration tracks the latency of a full, two-direction notes analysis.
	NotesDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notes",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of notes analyses in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
	)
)

// Outcome labels for CandidatesEvaluated.
const (
	OutcomeMatched        = "matched"
	OutcomeIncompatible   = "incompatible"
	OutcomeBelowThreshold = "below_threshold"
	OutcomePruned         = "pruned"
	OutcomeDegraded       = "degraded"
)

// Status labels for NotesAnalyses.
const (
	NotesOK     = "ok"
	NotesEmpty  = "empty"
	NotesFailed = "failed"
)
