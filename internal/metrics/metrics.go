package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
type Metrics struct {
	// Analysis outcomes: "success" or "fallback"
	AnalysisOutcome *prometheus.CounterVec

	// Duration of a full analyzer call including the model round trip
	AnalysisLatency prometheus.Histogram

	// Publish decisions: "published", "rejected", "failed"
	PublishDecision *prometheus.CounterVec

	// Impact points of published listings
	PublishedPoints prometheus.Counter

	// Wizard instances currently connected
	ActiveWizards prometheus.Gauge
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnalysisOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "foodrescue_analysis_total",
			Help: "Total submission analyses by outcome",
		}, []string{"outcome"}),

		AnalysisLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "foodrescue_analysis_duration_seconds",
			Help:    "Duration of submission analysis including the vision model call",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),

		PublishDecision: f.NewCounterVec(prometheus.CounterOpts{
			Name: "foodrescue_publish_decisions_total",
			Help: "Publish attempts by decision",
		}, []string{"decision"}),

		PublishedPoints: f.NewCounter(prometheus.CounterOpts{
			Name: "foodrescue_published_impact_points_total",
			Help: "Sum of impact points over published listings",
		}),

		ActiveWizards: f.NewGauge(prometheus.GaugeOpts{
			Name: "foodrescue_active_wizards",
			Help: "Submission wizards attached to open connections",
		}),
	}
}

// ObserveAnalysis records one analyzer call.
func (m *Metrics) ObserveAnalysis(fallback bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if fallback {
		outcome = "fallback"
	}
	m.AnalysisOutcome.WithLabelValues(outcome).Inc()
	m.AnalysisLatency.Observe(d.Seconds())
}

// IncrementPublish records a publish decision and, when published, its points.
func (m *Metrics) IncrementPublish(decision string, points int) {
	if m == nil {
		return
	}
	m.PublishDecision.WithLabelValues(decision).Inc()
	if decision == "published" && points > 0 {
		m.PublishedPoints.Add(float64(points))
	}
}

// WizardOpened counts a new live wizard
func (m *Metrics) WizardOpened() {
	if m != nil {
		m.ActiveWizards.Inc()
	}
}

// WizardClosed counts a finished wizard
func (m *Metrics) WizardClosed() {
	if m != nil {
		m.ActiveWizards.Dec()
	}
}
