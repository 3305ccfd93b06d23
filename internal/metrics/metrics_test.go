package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/hotload/internal/report"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return New("hotload", prometheus.NewRegistry())
}

func TestObservePass(t *testing.T) {
	m := newTestMetrics(t)

	c := report.NewCollector()
	c.MarkReached()
	c.Instance("Game::Game.Player", "root", time.Millisecond)
	c.Instance("Game::Game.Player", "root", time.Millisecond)
	c.Processor("copy", "root", time.Millisecond)
	c.Processor("copy", "root", time.Millisecond)
	c.Processor("delegate", "root", time.Millisecond)
	c.Warn("Game::Game.Player", "root.legacy", "member removed; System.Int32 value dropped")
	c.Info("Game::Game.Player", "root.unused", "member removed")
	res := c.Result("pass-1", 250*time.Millisecond)

	m.ObservePass(res)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues(OutcomeMigrated)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstancesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiagnosticsTotal.WithLabelValues("warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiagnosticsTotal.WithLabelValues("info")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpgraderApplicationsTotal.WithLabelValues("copy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpgraderApplicationsTotal.WithLabelValues("delegate")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PassDurationSeconds))
}

func TestObserveNoActionAndRejected(t *testing.T) {
	m := newTestMetrics(t)

	m.ObservePass(report.NoActionResult("pass-2"))
	m.ObserveRejected()
	m.ObserveRejected()
	m.ObservePrecompute(12)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues(OutcomeNoAction)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.PrecomputedTypesTotal))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name  string
		build func(c *report.Collector)
		want  string
	}{
		{"no action", func(*report.Collector) {}, OutcomeNoAction},
		{"migrated", func(c *report.Collector) { c.MarkReached() }, OutcomeMigrated},
		{"errors win", func(c *report.Collector) {
			c.MarkReached()
			c.Error("Game::Game.World", "Game::Game.World.Boss", "declared type cannot be resolved")
		}, OutcomeErrors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := report.NewCollector()
			tt.build(c)
			assert.Equal(t, tt.want, Outcome(c.Result("p", 0)))
		})
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObservePass(report.NoActionResult("p"))
		m.ObserveRejected()
		m.ObservePrecompute(3)
	})
}

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("hotload", reg)
	m.ObserveRejected()

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "hotload_pass_total")

	assert.Panics(t, func() { New("hotload", reg) }, "duplicate registration")
}
