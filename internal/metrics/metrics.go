// Package metrics exposes the matching engine measurements to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dpe-match/internal/match"
)

// Metrics implements match.Recorder
type Metrics struct {
	Searches         prometheus.Counter
	CandidatesScored prometheus.Counter
	SearchDuration   prometheus.Histogram

	// Links submitted to a link store by opportunity type
	LinksSavedTotal *prometheus.CounterVec

	// Registry and link store failures by operation
	ErrorsTotal *prometheus.CounterVec
}

var _ match.Recorder = (*Metrics)(nil)

// New creates the engine metrics and registers them with reg. A nil reg
// registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Searches: factory.NewCounter(prometheus.CounterOpts{
			Name: "dpe_match_searches_total",
			Help: "Total diagnostic searches",
		}),
		CandidatesScored: factory.NewCounter(prometheus.CounterOpts{
			Name: "dpe_match_candidates_scored_total",
			Help: "Total candidates scored across searches",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dpe_match_search_duration_seconds",
			Help:    "Duration of candidate retrieval and scoring",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		LinksSavedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dpe_match_links_saved_total",
			Help: "Links submitted for persistence by opportunity type",
		}, []string{"opportunity_type"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dpe_match_errors_total",
			Help: "Repository failures by operation",
		}, []string{"operation"}), // find_candidates, save_links, get_links
	}
}

// ObserveSearch records one completed search
func (m *Metrics) ObserveSearch(d time.Duration, candidates int) {
	if m == nil {
		return
	}
	m.Searches.Inc()
	m.CandidatesScored.Add(float64(candidates))
	m.SearchDuration.Observe(d.Seconds())
}

// LinksSaved records links submitted for an opportunity type
func (m *Metrics) LinksSaved(opportunityType match.OpportunityType, count int) {
	if m != nil {
		m.LinksSavedTotal.WithLabelValues(string(opportunityType)).Add(float64(count))
	}
}

// Failure records a repository failure
func (m *Metrics) Failure(operation string) {
	if m != nil {
		m.ErrorsTotal.WithLabelValues(operation).Inc()
	}
}
