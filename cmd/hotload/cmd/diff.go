package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/hotload/internal/graph"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/registry"
	"github.com/dbsmedya/hotload/internal/report"
	"github.com/dbsmedya/hotload/internal/typemap"
)

var diffSession string

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show how the types of a session map across the reload",
	Long: `Diff resolves every type of the replaced assemblies against its
replacement and shows how live instances of it would migrate.

The diff shows:
  - Resolution order (base and declaring types first)
  - Mapping outcome per type (mapped, removed) with the reason
  - Migration strategy (in place when layouts match, copy otherwise)
  - Types added by the replacement

Example:
  hotload diff --config hotload.yaml --session player_refactor`,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVarP(&diffSession, "session", "s", "",
		"Session name from configuration file (required)")
	diffCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(diffCmd)
}

// typeDiff summarizes the mapping of one replacement.
type typeDiff struct {
	Rows    [][]string
	Added   []string
	Mapped  int
	InPlace int
	Removed int
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := loadSession(cfg, diffSession)
	if err != nil {
		return err
	}

	reps := registry.NewReplacements()
	for _, r := range s.conf.Replace {
		oldAsm, err := registry.Resolve(s.before, r.Old)
		if err != nil {
			return fmt.Errorf("replaced assembly: %w", err)
		}
		newAsm, err := registry.Resolve(s.after, r.New)
		if err != nil {
			return fmt.Errorf("replacement assembly: %w", err)
		}
		if err := reps.Add(oldAsm, newAsm); err != nil {
			return err
		}
	}

	printHeader("Type Mapping: %s", s.name)

	effective := reps.Effective()
	if len(effective) == 0 {
		fmt.Fprintln(outputWriter)
		fmt.Fprintln(outputWriter, "  No effective replacements: every assembly is replaced by itself.")
		return nil
	}

	mapper := typemap.NewMapper(effective)
	layout := typemap.NewComparator(mapper)
	for _, r := range effective {
		d, err := diffReplacement(mapper, layout, r)
		if err != nil {
			return err
		}

		fmt.Fprintln(outputWriter)
		printSection(fmt.Sprintf("%s -> %s", r.Old.Name, r.New.Name))
		report.WriteTable(outputWriter,
			[]string{"Level", "Type", "Outcome", "Replacement", "Migration", "Note"}, d.Rows)

		if len(d.Added) > 0 {
			fmt.Fprintln(outputWriter)
			printSection("Added Types")
			for _, name := range d.Added {
				fmt.Fprintf(outputWriter, "  + %s\n", name)
			}
		}

		fmt.Fprintln(outputWriter)
		fmt.Fprintf(outputWriter, "  Mapped: %d (%d in place)  Removed: %d  Added: %d\n",
			d.Mapped, d.InPlace, d.Removed, len(d.Added))
	}
	return nil
}

// diffReplacement maps the types of one replacement in resolution order.
func diffReplacement(mapper *typemap.Mapper, layout *typemap.Comparator, r registry.Replacement) (*typeDiff, error) {
	g, err := graph.BuildFromAssemblies(r.Old)
	if err != nil {
		return nil, fmt.Errorf("failed to order types of %s: %w", r.Old.Name, err)
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, fmt.Errorf("failed to order types of %s: %w", r.Old.Name, err)
	}

	d := &typeDiff{}
	targets := make(map[*meta.Type]bool)
	for i, level := range levels {
		for _, name := range level {
			node := g.GetNode(name)
			if node == nil || node.Type == nil {
				continue
			}
			t := node.Type
			res := mapper.Map(t)

			replacement, migration, note := "-", "-", res.Reason
			switch res.Outcome {
			case typemap.Mapped:
				d.Mapped++
				targets[res.Type] = true
				replacement = res.Type.FullName()
				switch {
				case t.IsGenericDefinition():
					migration = "per instantiation"
				case layout.AreLayoutEquivalent(t, res.Type):
					migration = "in place"
					d.InPlace++
				default:
					migration = "copy"
				}
				switch {
				case len(res.Candidates) > 1:
					note = fmt.Sprintf("%d candidates, first declared chosen", len(res.Candidates))
				case len(res.Overloads) > 1:
					note = fmt.Sprintf("%d overloads of %s", len(res.Overloads), t.Scope)
				}
			case typemap.Removed:
				d.Removed++
				migration = "dead"
			}
			if t.Synthesized != meta.NotSynthesized && note == "" {
				note = fmt.Sprintf("%s of %s", t.Synthesized, t.Scope)
			}

			d.Rows = append(d.Rows, []string{
				strconv.Itoa(i),
				t.FullName(),
				res.Outcome.String(),
				replacement,
				migration,
				note,
			})
		}
	}

	for _, t := range r.New.Types() {
		if !targets[t] {
			d.Added = append(d.Added, t.FullName())
		}
	}
	return d, nil
}

// printHeader prints a formatted header
func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", runewidth.StringWidth(title)+2))
}
