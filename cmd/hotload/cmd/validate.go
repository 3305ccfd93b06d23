package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/hotload/internal/graph"
	"github.com/dbsmedya/hotload/internal/logger"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and session manifests",
	Long: `Validate checks the configuration file and loads every session to
ensure a pass can run.

Checks performed:
  - Configuration syntax and required fields
  - Image and heap manifests load and resolve
  - Replaced and replacement assemblies exist
  - Watched assemblies exist in the before image
  - Upgrader attributes are well formed
  - Inheritance and nesting cycles in the replaced assemblies

Example:
  hotload validate --config hotload.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	log.Info("Starting validation checks...")

	fmt.Fprintf(outputWriter, "\n=== Configuration Validation ===\n")
	fmt.Fprintf(outputWriter, "Config file: %s\n", GetConfigFile())
	fmt.Fprintf(outputWriter, "Sessions found: %d\n\n", len(cfg.Sessions))

	hasErrors := false
	for _, name := range cfg.ListSessions() {
		fmt.Fprintf(outputWriter, "--- Session: %s ---\n", name)

		s, err := loadSession(cfg, name)
		if err != nil {
			fmt.Fprintf(outputWriter, "❌ Manifest load failed: %v\n\n", err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(outputWriter, "Replacements: %d\n", len(s.conf.Replace))
		fmt.Fprintf(outputWriter, "Heap objects: %d\n", len(s.live.Objects))

		h, err := s.engine(log)
		if err != nil {
			fmt.Fprintf(outputWriter, "❌ Registry setup failed: %v\n\n", err)
			hasErrors = true
			continue
		}

		for _, w := range s.conf.Watch {
			if _, err := registry.Resolve(s.before, w.Assembly); err != nil {
				fmt.Fprintf(outputWriter, "⚠️  Watched assembly %s is not loaded; it will be skipped\n", w.Assembly)
			}
		}

		var olds []*meta.Assembly
		for _, r := range h.Replacements() {
			olds = append(olds, r.Old)
		}
		if _, err := graph.BuildFromAssemblies(olds...); err != nil {
			var cycle *graph.CycleError
			if errors.As(err, &cycle) {
				fmt.Fprintf(outputWriter, "❌ Cycle detected: %d types in cycle\n\n", len(cycle.Info.UnprocessedNodes))
			} else {
				fmt.Fprintf(outputWriter, "❌ Type graph build failed: %v\n\n", err)
			}
			hasErrors = true
			continue
		}

		fmt.Fprintf(outputWriter, "✅ All checks passed\n\n")
	}

	if hasErrors {
		return fmt.Errorf("validation failed for one or more sessions")
	}

	fmt.Fprintln(outputWriter, "=== Validation Complete ===")
	fmt.Fprintln(outputWriter, "✅ All sessions validated successfully")
	return nil
}
