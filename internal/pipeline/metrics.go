package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonathan/resume-tailor/internal/types"
)

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	jobOutcomes   *prometheus.CounterVec
	piiEntities   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "resume_tailor",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages",
				Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage", "outcome"},
		),
		jobOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "resume_tailor",
				Subsystem: "pipeline",
				Name:      "jobs_total",
				Help:      "Total number of finished jobs by outcome",
			},
			[]string{"outcome"},
		),
		piiEntities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "resume_tailor",
				Subsystem: "pipeline",
				Name:      "pii_entities_total",
				Help:      "Total number of PII entities flagged in job descriptions",
			},
			[]string{"type"},
		),
	}
	for _, c := range []prometheus.Collector{m.stageDuration, m.jobOutcomes, m.piiEntities} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeStage(stage types.Stage, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(string(stage), outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) jobFinished(outcome string) {
	if m == nil {
		return
	}
	m.jobOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) piiFound(entities []types.PIIEntity) {
	if m == nil {
		return
	}
	for _, e := range entities {
		m.piiEntities.WithLabelValues(e.Type).Inc()
	}
}
