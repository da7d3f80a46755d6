package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts processor and vote outcomes. A nil registerer falls back
// to the process-default registry.
type Metrics struct {
	BlocksProcessed *prometheus.CounterVec
	BlocksBySource  *prometheus.CounterVec
	Rollbacks       prometheus.Counter
	VotesProcessed  *prometheus.CounterVec
	UncheckedDrains prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		BlocksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "blockprocessor",
			Name:      "blocks_total",
			Help:      "Blocks processed, by resulting status.",
		}, []string{"status"}),
		BlocksBySource: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "blockprocessor",
			Name:      "sources_total",
			Help:      "Blocks processed, by ingest source.",
		}, []string{"source"}),
		Rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "blockprocessor",
			Name:      "rollbacks_total",
			Help:      "Blocks undone during fork resolution.",
		}),
		VotesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "voteprocessor",
			Name:      "votes_total",
			Help:      "Votes processed, by code.",
		}, []string{"code"}),
		UncheckedDrains: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "blockprocessor",
			Name:      "unchecked_drained_total",
			Help:      "Unchecked blocks re-queued after their dependency landed.",
		}),
	}
}
