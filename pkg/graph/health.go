package graph

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultGrowthWindow bounds the health surface's growth-rate window.
const DefaultGrowthWindow = 24 * time.Hour

// HealthMetrics exposes the store's maintenance surface as Prometheus
// gauges.
type HealthMetrics struct {
	decisions       prometheus.Gauge
	stances         prometheus.Gauge
	similarities    prometheus.Gauge
	dbSizeBytes     prometheus.Gauge
	orphanStances   prometheus.Gauge
	invalidScores   prometheus.Gauge
	decisionsInWindow prometheus.Gauge
}

// NewHealthMetrics registers the decision-graph health gauges against
// registerer. Callers typically pass a dedicated prometheus.Registry.
func NewHealthMetrics(namespace string, registerer prometheus.Registerer) (*HealthMetrics, error) {
	m := &HealthMetrics{
		decisions:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "decision_graph", Name: "decisions_total", Help: "Number of stored decisions."}),
		stances:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "decision_graph", Name: "stances_total", Help: "Number of stored participant stances."}),
		similarities:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "decision_graph", Name: "similarities_total", Help: "Number of stored similarity edges."}),
		dbSizeBytes:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "decision_graph", Name: "database_size_bytes", Help: "On-disk size of the decision graph database."}),
		orphanStances:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "decision_graph", Name: "orphan_stances", Help: "Stances referencing a missing decision."}),
		invalidScores:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "decision_graph", Name: "invalid_similarity_scores", Help: "Similarity edges outside [0,1]."}),
		decisionsInWindow: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "decision_graph", Name: "decisions_in_growth_window", Help: "Decisions created within the configured growth window."}),
	}

	for _, c := range []prometheus.Collector{
		m.decisions, m.stances, m.similarities, m.dbSizeBytes, m.orphanStances, m.invalidScores, m.decisionsInWindow,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Refresh queries the store's health surface and updates all gauges.
func (m *HealthMetrics) Refresh(ctx context.Context, store Store, growthWindow time.Duration) (HealthReport, error) {
	if growthWindow <= 0 {
		growthWindow = DefaultGrowthWindow
	}
	report, err := store.Health(ctx, growthWindow)
	if err != nil {
		return report, err
	}

	m.decisions.Set(float64(report.DecisionCount))
	m.stances.Set(float64(report.StanceCount))
	m.similarities.Set(float64(report.SimilarityCount))
	m.dbSizeBytes.Set(float64(report.DatabaseSizeBytes))
	m.orphanStances.Set(float64(report.OrphanStanceCount))
	m.invalidScores.Set(float64(report.InvalidScoreCount))
	m.decisionsInWindow.Set(float64(report.DecisionsInWindow))

	return report, nil
}
