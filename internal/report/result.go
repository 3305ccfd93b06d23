package report

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"
)

// TimingStat attributes instances and time to a type or upgrader, broken
// down by the root that led to them.
type TimingStat struct {
	Instances    int
	Milliseconds float64
	Roots        *orderedmap.OrderedMap[string, *TimingStat]
}

// NewTimingStat creates an empty stat.
func NewTimingStat() *TimingStat {
	return &TimingStat{Roots: orderedmap.NewOrderedMap[string, *TimingStat]()}
}

// Add records one instance taking d, attributed to root when non-empty.
func (s *TimingStat) Add(root string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	s.Instances++
	s.Milliseconds += ms
	if root == "" {
		return
	}
	r, ok := s.Roots.Get(root)
	if !ok {
		r = NewTimingStat()
		s.Roots.Set(root, r)
	}
	r.Instances++
	r.Milliseconds += ms
}

// Result is the report of one hotload pass.
type Result struct {
	PassID             string
	NoAction           bool
	InstancesProcessed int
	ProcessingTimeMs   float64
	Entries            []Entry
	TypeTimings        *orderedmap.OrderedMap[string, *TimingStat]
	ProcessorTimings   *orderedmap.OrderedMap[string, *TimingStat]
}

// HasErrors reports whether any entry has Kind Error.
func (r *Result) HasErrors() bool {
	return r.Count(Error) > 0
}

// Count returns the number of entries of the given kind.
func (r *Result) Count(kind Kind) int {
	n := 0
	for _, e := range r.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Filter returns the entries of the given kind.
func (r *Result) Filter(kind Kind) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Collector accumulates entries and timings during a pass. It is safe for
// concurrent use.
type Collector struct {
	mu         sync.Mutex
	entries    []Entry
	types      *orderedmap.OrderedMap[string, *TimingStat]
	processors *orderedmap.OrderedMap[string, *TimingStat]
	instances  int
	reached    bool
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		types:      orderedmap.NewOrderedMap[string, *TimingStat](),
		processors: orderedmap.NewOrderedMap[string, *TimingStat](),
	}
}

// Add records a diagnostic.
func (c *Collector) Add(kind Kind, typ, path, message string) {
	c.mu.Lock()
	c.entries = append(c.entries, Entry{Kind: kind, Type: typ, Path: path, Message: message})
	c.mu.Unlock()
}

// Info records an Info entry.
func (c *Collector) Info(typ, path, message string) { c.Add(Info, typ, path, message) }

// Warn records a Warning entry.
func (c *Collector) Warn(typ, path, message string) { c.Add(Warning, typ, path, message) }

// Error records an Error entry.
func (c *Collector) Error(typ, path, message string) { c.Add(Error, typ, path, message) }

// Instance records one processed instance of typ reached from root.
func (c *Collector) Instance(typ, root string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances++
	stat(c.types, typ).Add(root, d)
}

// Processor records one upgrader application.
func (c *Collector) Processor(name, root string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stat(c.processors, name).Add(root, d)
}

// MarkReached records that an instance of a replaced assembly was reached.
func (c *Collector) MarkReached() {
	c.mu.Lock()
	c.reached = true
	c.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (c *Collector) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Result builds the pass report.
func (c *Collector) Result(passID string, elapsed time.Duration) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Result{
		PassID:             passID,
		NoAction:           !c.reached,
		InstancesProcessed: c.instances,
		ProcessingTimeMs:   float64(elapsed) / float64(time.Millisecond),
		Entries:            append([]Entry(nil), c.entries...),
		TypeTimings:        c.types,
		ProcessorTimings:   c.processors,
	}
}

// NoActionResult is the report of a pass that had nothing to replace.
func NoActionResult(passID string) *Result {
	return &Result{
		PassID:           passID,
		NoAction:         true,
		TypeTimings:      orderedmap.NewOrderedMap[string, *TimingStat](),
		ProcessorTimings: orderedmap.NewOrderedMap[string, *TimingStat](),
	}
}

func stat(m *orderedmap.OrderedMap[string, *TimingStat], key string) *TimingStat {
	s, ok := m.Get(key)
	if !ok {
		s = NewTimingStat()
		m.Set(key, s)
	}
	return s
}
