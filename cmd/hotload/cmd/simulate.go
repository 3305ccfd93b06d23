package cmd

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/hotload/internal/logger"
	"github.com/dbsmedya/hotload/internal/metrics"
	"github.com/dbsmedya/hotload/internal/report"
)

var simulateSession string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a hotload pass over a session's manifests",
	Long: `Simulate loads the before and after images of a session together with
its live heap, configures the replacement, watch and upgrader registries, and
runs one hotload pass.

The report shows:
  - Pass status and the number of migrated instances
  - Diagnostics (info, warning, error) with their object paths
  - Per-type and per-upgrader timings (report.show_timings)
  - Pass metrics (metrics.enabled)

Example:
  hotload simulate --config hotload.yaml --session player_refactor`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&simulateSession, "session", "s", "",
		"Session name from configuration file (required)")
	simulateCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	minKind, err := report.ParseKind(cfg.Report.MinKind)
	if err != nil {
		return fmt.Errorf("invalid report.min_kind: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	s, err := loadSession(cfg, simulateSession)
	if err != nil {
		return err
	}

	h, err := s.engine(log)
	if err != nil {
		return fmt.Errorf("failed to configure session %s: %w", s.name, err)
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		h.SetMetrics(metrics.New(cfg.Metrics.Namespace, reg))
	}

	res, err := h.UpdateReferences()
	if err != nil {
		return fmt.Errorf("hotload pass failed: %w", err)
	}

	report.NewRenderer(outputWriter, report.RenderOptions{
		Color:       cfg.Report.Color,
		ShowTimings: cfg.Report.ShowTimings,
		MaxEntries:  cfg.Report.MaxEntries,
		MinKind:     minKind,
	}).Render(res)

	if reg != nil {
		if err := printMetrics(reg); err != nil {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
	}

	if res.HasErrors() {
		return fmt.Errorf("hotload pass reported %d error(s)", res.Count(report.Error))
	}
	return nil
}

// printMetrics prints every gathered sample as a table.
func printMetrics(g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	var rows [][]string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}

			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprintf("%g", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				value = fmt.Sprintf("%g", m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				value = fmt.Sprintf("%d samples, sum %.6f", m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			}
			rows = append(rows, []string{mf.GetName(), strings.Join(labels, ","), value})
		}
	}

	fmt.Fprintln(outputWriter)
	printSection("Metrics")
	report.WriteTable(outputWriter, []string{"Metric", "Labels", "Value"}, rows)
	return nil
}
