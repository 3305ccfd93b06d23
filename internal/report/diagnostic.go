// Package report collects the diagnostics and timing statistics of a hotload
// pass into a Result.
package report

import (
	"fmt"
	"strings"
)

// Kind is the severity of a diagnostic entry.
type Kind int

const (
	// Info is a benign, expected difference.
	Info Kind = iota
	// Warning means a value was replaced by a default or a stub.
	Warning
	// Error means part of the migrated graph is broken.
	Error
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one diagnostic. Path is the breadcrumb from the root through
// member names and array indices to the affected instance.
type Entry struct {
	Kind    Kind
	Path    string
	Message string
	Type    string // qualified name of the type the entry is flagged against
}

// String returns a formatted diagnostic line.
func (e Entry) String() string {
	var prefix []string
	if e.Type != "" {
		prefix = append(prefix, "["+e.Type+"]")
	}
	if e.Path != "" {
		prefix = append(prefix, e.Path)
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if len(prefix) > 0 {
		return strings.Join(prefix, " ") + ": " + msg
	}
	return msg
}

// Member appends a member name to a breadcrumb.
func Member(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// Index appends an array index label such as "[3]" to a breadcrumb.
func Index(path, label string) string {
	return path + label
}

// InvocationEntry appends a delegate invocation-list position to a breadcrumb.
func InvocationEntry(path string, i int) string {
	return fmt.Sprintf("%s#%d", path, i)
}
