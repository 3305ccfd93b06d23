package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycleDetected is matched by every *CycleError.
var ErrCycleDetected = errors.New("cycle detected in type dependency graph")

// CycleInfo lists the types Kahn's algorithm could not place.
type CycleInfo struct {
	TotalNodes        int
	ProcessedNodes    int
	UnprocessedNodes  []string // on a cycle or depending on one, insertion order
	CycleParticipants []string // the subset that lies on a cycle
	CyclePath         []string // one cycle, first node repeated at the end
}

// CycleError reports a graph that cannot be levelled.
type CycleError struct {
	Info *CycleInfo
}

func (e *CycleError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle detected in type dependency graph: %d of %d types could not be processed",
		len(e.Info.UnprocessedNodes), e.Info.TotalNodes)
	if len(e.Info.CyclePath) > 0 {
		b.WriteString("\nCycle path: " + strings.Join(e.Info.CyclePath, " -> "))
	}
	if len(e.Info.CycleParticipants) > 0 {
		b.WriteString("\nTypes in cycle: " + strings.Join(e.Info.CycleParticipants, ", "))
	}
	if blocked := e.blocked(); len(blocked) > 0 {
		b.WriteString("\nTypes blocked by cycle: " + strings.Join(blocked, ", "))
	}
	return b.String()
}

func (e *CycleError) blocked() []string {
	onCycle := make(map[string]bool, len(e.Info.CycleParticipants))
	for _, p := range e.Info.CycleParticipants {
		onCycle[p] = true
	}
	var out []string
	for _, u := range e.Info.UnprocessedNodes {
		if !onCycle[u] {
			out = append(out, u)
		}
	}
	return out
}

// Is reports whether target is ErrCycleDetected.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// InDegrees returns the number of prerequisites of every node.
func (g *Graph) InDegrees() map[string]int {
	in := make(map[string]int, len(g.Nodes))
	for name := range g.Nodes {
		in[name] = len(g.Parents[name])
	}
	return in
}

// Levels partitions the graph with Kahn's algorithm. Level 0 holds the types
// without prerequisites; every later level holds the types whose
// prerequisites all sit in earlier levels. Types of one level are
// independent of each other, so a level can be processed in parallel. Each
// level keeps insertion order.
func (g *Graph) Levels() ([][]string, error) {
	in := g.InDegrees()
	placed := make(map[string]bool, len(g.Nodes))

	var levels [][]string
	current := g.ready(in, placed)
	for len(current) > 0 {
		levels = append(levels, current)
		for _, name := range current {
			placed[name] = true
		}
		for _, name := range current {
			for _, child := range g.Children[name] {
				in[child]--
			}
		}
		current = g.ready(in, placed)
	}

	if len(placed) != len(g.Nodes) {
		return nil, &CycleError{Info: g.cycleInfo(placed)}
	}
	return levels, nil
}

// ready returns the unplaced nodes without pending prerequisites.
func (g *Graph) ready(in map[string]int, placed map[string]bool) []string {
	var out []string
	for _, name := range g.order {
		if !placed[name] && in[name] == 0 {
			out = append(out, name)
		}
	}
	return out
}

// Validate returns a *CycleError when the graph cannot be levelled.
func (g *Graph) Validate() error {
	_, err := g.Levels()
	return err
}

func (g *Graph) cycleInfo(placed map[string]bool) *CycleInfo {
	info := &CycleInfo{TotalNodes: len(g.Nodes), ProcessedNodes: len(placed)}
	left := make(map[string]bool)
	for _, name := range g.order {
		if !placed[name] {
			info.UnprocessedNodes = append(info.UnprocessedNodes, name)
			left[name] = true
		}
	}
	for _, name := range info.UnprocessedNodes {
		if path := g.cycleThrough(name, left); path != nil {
			info.CycleParticipants = append(info.CycleParticipants, name)
			if info.CyclePath == nil {
				info.CyclePath = path
			}
		}
	}
	return info
}

// cycleThrough returns a path from start back to start using only nodes of
// within, or nil when start is not on a cycle.
func (g *Graph) cycleThrough(start string, within map[string]bool) []string {
	seen := map[string]bool{start: true}
	path := []string{start}

	var walk func(node string) bool
	walk = func(node string) bool {
		for _, child := range g.Children[node] {
			if !within[child] {
				continue
			}
			if child == start {
				path = append(path, start)
				return true
			}
			if seen[child] {
				continue
			}
			seen[child] = true
			path = append(path, child)
			if walk(child) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}

	if walk(start) {
		return path
	}
	return nil
}
