package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

// RenderOptions control how a Result is printed.
type RenderOptions struct {
	Color       bool
	ShowTimings bool
	MaxEntries  int  // 0 means unlimited
	MinKind     Kind // entries below this kind are omitted
}

// ParseKind converts a kind name as written in configuration.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "":
		return Info, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	}
	return Info, fmt.Errorf("unknown diagnostic kind %q", s)
}

// Renderer prints pass reports for terminals.
type Renderer struct {
	w    io.Writer
	opts RenderOptions
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, opts RenderOptions) *Renderer {
	return &Renderer{w: w, opts: opts}
}

func (r *Renderer) paint(c color.Color, s string) string {
	if !r.opts.Color {
		return s
	}
	return c.Sprint(s)
}

func (r *Renderer) kindLabel(k Kind) string {
	label := strings.ToUpper(k.String())
	padded := runewidth.FillRight(label, 7)
	switch k {
	case Error:
		return r.paint(color.Red, padded)
	case Warning:
		return r.paint(color.Yellow, padded)
	}
	return r.paint(color.Cyan, padded)
}

// Status summarizes a result in a word.
func Status(res *Result) string {
	switch {
	case res.HasErrors():
		return "errors"
	case res.NoAction:
		return "no action"
	}
	return "migrated"
}

// Render prints the summary, the diagnostics and, when enabled, the timing
// tables.
func (r *Renderer) Render(res *Result) {
	r.header("Hotload pass %s", res.PassID)

	status := Status(res)
	switch status {
	case "errors":
		status = r.paint(color.Red, status)
	case "migrated":
		status = r.paint(color.Green, status)
	}
	fmt.Fprintf(r.w, "  Status:     %s\n", status)
	fmt.Fprintf(r.w, "  Instances:  %d\n", res.InstancesProcessed)
	fmt.Fprintf(r.w, "  Time:       %.3f ms\n", res.ProcessingTimeMs)
	fmt.Fprintf(r.w, "  Entries:    %d info, %d warning, %d error\n",
		res.Count(Info), res.Count(Warning), res.Count(Error))

	entries := r.visible(res.Entries)
	if len(entries) > 0 {
		fmt.Fprintln(r.w)
		r.section("Diagnostics")
		shown := entries
		if r.opts.MaxEntries > 0 && len(shown) > r.opts.MaxEntries {
			shown = shown[:r.opts.MaxEntries]
		}
		for _, e := range shown {
			r.entry(e)
		}
		if hidden := len(entries) - len(shown); hidden > 0 {
			fmt.Fprintf(r.w, "  ... %d more\n", hidden)
		}
	}

	if r.opts.ShowTimings {
		r.timings("Type Timings", "Type", res.TypeTimings)
		r.timings("Upgrader Timings", "Upgrader", res.ProcessorTimings)
	}
}

func (r *Renderer) visible(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Kind >= r.opts.MinKind {
			out = append(out, e)
		}
	}
	return out
}

func (r *Renderer) entry(e Entry) {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(r.kindLabel(e.Kind))
	b.WriteString(" ")
	if e.Path != "" {
		b.WriteString(r.paint(color.Bold, e.Path))
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Type != "" {
		b.WriteString(" [")
		b.WriteString(e.Type)
		b.WriteString("]")
	}
	fmt.Fprintln(r.w, b.String())
}

func (r *Renderer) timings(title, column string, stats *orderedmap.OrderedMap[string, *TimingStat]) {
	if stats == nil || stats.Len() == 0 {
		return
	}
	fmt.Fprintln(r.w)
	r.section(title)

	rows := make([][]string, 0, stats.Len())
	for el := stats.Front(); el != nil; el = el.Next() {
		rows = append(rows, []string{
			el.Key,
			fmt.Sprintf("%d", el.Value.Instances),
			fmt.Sprintf("%.3f", el.Value.Milliseconds),
		})
	}
	WriteTable(r.w, []string{column, "Instances", "ms"}, rows)
}

// header prints a boxed title.
func (r *Renderer) header(format string, args ...any) {
	title := fmt.Sprintf(format, args...)
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(r.w, strings.Repeat("=", width))
	fmt.Fprintf(r.w, "  %s\n", r.paint(color.Bold, title))
	fmt.Fprintln(r.w, strings.Repeat("=", width))
}

// section prints a section title.
func (r *Renderer) section(title string) {
	fmt.Fprintf(r.w, "[%s]\n", title)
	fmt.Fprintln(r.w, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

// WriteTable prints rows under headers with columns aligned on display
// width, so wide runes in type names do not break the layout.
func WriteTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if cw := runewidth.StringWidth(row[i]); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	line := func(cells []string) {
		var b strings.Builder
		b.WriteString(" ")
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" ")
			if i == len(widths)-1 {
				b.WriteString(cell)
			} else {
				b.WriteString(runewidth.FillRight(cell, widths[i]))
				b.WriteString(" ")
			}
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	line(headers)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	line(sep)
	for _, row := range rows {
		line(row)
	}
}
