package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/songzhibin97/xflow/validation"
)

// Validation outcomes used as the result label.
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
)

// Metrics holds the registry's Prometheus collectors.
type Metrics struct {
	ValidationsTotal *prometheus.CounterVec
	ViolationsTotal  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ValidationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xflow_validations_total",
				Help: "Total number of validated documents by result",
			},
			[]string{"result"},
		),
		ViolationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xflow_violations_total",
				Help: "Total number of violations found by kind",
			},
			[]string{"kind"},
		),
	}
}

// observe records one validation report.
func (m *Metrics) observe(report *validation.Report) {
	if report.Valid() {
		m.ValidationsTotal.WithLabelValues(ResultValid).Inc()
		return
	}
	m.ValidationsTotal.WithLabelValues(ResultInvalid).Inc()
	for _, v := range report.Violations {
		m.ViolationsTotal.WithLabelValues(string(v.Kind)).Inc()
	}
}
