// Package metrics exposes Prometheus instrumentation for hotload passes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dbsmedya/hotload/internal/report"
)

const passSubsystem = "pass"

// Pass outcomes used as the "outcome" label.
const (
	OutcomeMigrated = "migrated"
	OutcomeNoAction = "no_action"
	OutcomeErrors   = "errors"
	OutcomeRejected = "rejected"
)

// Metrics holds the collectors updated after every pass.
type Metrics struct {
	// PassesTotal counts passes by outcome.
	// Labels: outcome (migrated, no_action, errors, rejected)
	PassesTotal *prometheus.CounterVec

	// PassDurationSeconds measures the wall time of a pass.
	PassDurationSeconds prometheus.Histogram

	// InstancesTotal counts migrated instances.
	InstancesTotal prometheus.Counter

	// DiagnosticsTotal counts report entries.
	// Labels: kind (info, warning, error)
	DiagnosticsTotal *prometheus.CounterVec

	// UpgraderApplicationsTotal counts upgrader applications.
	// Labels: upgrader
	UpgraderApplicationsTotal *prometheus.CounterVec

	// PrecomputedTypesTotal counts types resolved by the parallel precompute.
	PrecomputedTypesTotal prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg
// registers with the default registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		PassesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: passSubsystem,
				Name:      "total",
				Help:      "Total number of hotload passes by outcome",
			},
			[]string{"outcome"},
		),
		PassDurationSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: passSubsystem,
				Name:      "duration_seconds",
				Help:      "Wall time of a hotload pass in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		InstancesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: passSubsystem,
				Name:      "instances_total",
				Help:      "Total number of instances migrated",
			},
		),
		DiagnosticsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: passSubsystem,
				Name:      "diagnostics_total",
				Help:      "Total number of report entries by kind",
			},
			[]string{"kind"},
		),
		UpgraderApplicationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: passSubsystem,
				Name:      "upgrader_applications_total",
				Help:      "Total number of member migrations by upgrader",
			},
			[]string{"upgrader"},
		),
		PrecomputedTypesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: passSubsystem,
				Name:      "precomputed_types_total",
				Help:      "Total number of type mappings resolved before traversal",
			},
		),
	}
}

// ObservePass records a finished pass.
func (m *Metrics) ObservePass(res *report.Result) {
	if m == nil || res == nil {
		return
	}

	m.PassesTotal.WithLabelValues(Outcome(res)).Inc()
	m.PassDurationSeconds.Observe(res.ProcessingTimeMs / 1000)
	m.InstancesTotal.Add(float64(res.InstancesProcessed))

	for _, e := range res.Entries {
		m.DiagnosticsTotal.WithLabelValues(e.Kind.String()).Inc()
	}
	if res.ProcessorTimings != nil {
		for el := res.ProcessorTimings.Front(); el != nil; el = el.Next() {
			m.UpgraderApplicationsTotal.WithLabelValues(el.Key).Add(float64(el.Value.Instances))
		}
	}
}

// ObserveRejected records a pass refused because another was running.
func (m *Metrics) ObserveRejected() {
	if m == nil {
		return
	}
	m.PassesTotal.WithLabelValues(OutcomeRejected).Inc()
}

// ObservePrecompute records the number of types resolved before traversal.
func (m *Metrics) ObservePrecompute(types int) {
	if m == nil {
		return
	}
	m.PrecomputedTypesTotal.Add(float64(types))
}

// Outcome classifies a pass result.
func Outcome(res *report.Result) string {
	switch {
	case res.HasErrors():
		return OutcomeErrors
	case res.NoAction:
		return OutcomeNoAction
	default:
		return OutcomeMigrated
	}
}
