package graph

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func chain(names ...string) *Graph {
	g := NewGraph()
	for _, n := range names {
		g.AddNode(n, nil)
	}
	for i := 1; i < len(names); i++ {
		g.AddEdge(names[i-1], names[i])
	}
	return g
}

func TestInDegrees(t *testing.T) {
	g := NewGraph()
	g.AddEdge("Base", "Player")
	g.AddEdge("Base", "Enemy")
	g.AddEdge("Enemy", "Boss")
	g.AddEdge("Player", "Boss")

	want := map[string]int{"Base": 0, "Player": 1, "Enemy": 1, "Boss": 2}
	if got := g.InDegrees(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected in-degrees %v, got %v", want, got)
	}
}

func TestLevels_InsertionOrder(t *testing.T) {
	g := NewGraph()
	for _, n := range []string{"C", "A", "B"} {
		g.AddNode(n, nil)
	}
	g.AddEdge("C", "B")

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(levels[0], []string{"C", "A"}) {
		t.Errorf("Expected first level [C A], got %v", levels[0])
	}
}

func flatten(levels [][]string) []string {
	var out []string
	for _, level := range levels {
		out = append(out, level...)
	}
	return out
}

func TestLevels_Chain(t *testing.T) {
	g := chain("Object", "Entity", "Actor", "Player")

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []string{"Object", "Entity", "Actor", "Player"}
	if got := flatten(levels); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestLevels_PrerequisitesFirst(t *testing.T) {
	g := NewGraph()
	g.AddEdge("Outer", "Outer+Inner")
	g.AddEdge("Base", "Outer")
	g.AddEdge("Base", "Other")
	g.AddEdge("Outer+Inner", "Outer+Inner+Deep")

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	level := make(map[string]int)
	for i, names := range levels {
		for _, n := range names {
			level[n] = i
		}
	}
	for _, e := range g.AllEdges() {
		if level[e.From] >= level[e.To] {
			t.Errorf("Expected %s on a level before %s in %v", e.From, e.To, levels)
		}
	}
	if len(level) != g.NodeCount() {
		t.Errorf("Expected %d nodes, got %d", g.NodeCount(), len(level))
	}
}

func TestLevels(t *testing.T) {
	g := NewGraph()
	g.AddNode("Standalone", nil)
	g.AddEdge("Base", "Player")
	g.AddEdge("Base", "Enemy")
	g.AddEdge("Enemy", "Boss")
	g.AddEdge("Player", "Player+State")

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := [][]string{
		{"Standalone", "Base"},
		{"Player", "Enemy"},
		{"Boss", "Player+State"},
	}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Expected levels %v, got %v", want, levels)
	}
}

func TestLevels_EmptyGraph(t *testing.T) {
	levels, err := NewGraph().Levels()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(levels) != 0 {
		t.Errorf("Expected no levels, got %v", levels)
	}
}

func TestLevels_Cycle(t *testing.T) {
	g := chain("A", "B", "C")
	g.AddEdge("C", "A")
	g.AddEdge("C", "D")

	_, err := g.Levels()
	if err == nil {
		t.Fatal("Expected cycle error")
	}
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("Expected error to match ErrCycleDetected, got %v", err)
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected *CycleError, got %T", err)
	}
	info := cycleErr.Info
	if info.TotalNodes != 4 || info.ProcessedNodes != 0 {
		t.Errorf("Unexpected counts: total=%d processed=%d", info.TotalNodes, info.ProcessedNodes)
	}
	if !reflect.DeepEqual(info.CycleParticipants, []string{"A", "B", "C"}) {
		t.Errorf("Expected participants [A B C], got %v", info.CycleParticipants)
	}
	if !reflect.DeepEqual(info.CyclePath, []string{"A", "B", "C", "A"}) {
		t.Errorf("Expected cycle path [A B C A], got %v", info.CyclePath)
	}

	msg := err.Error()
	for _, want := range []string{"4 of 4 types", "Cycle path: A -> B -> C -> A", "Types blocked by cycle: D"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected message to contain %q, got:\n%s", want, msg)
		}
	}
}

func TestSelfCycle(t *testing.T) {
	g := NewGraph()
	g.AddEdge("Root", "Self")
	g.AddEdge("Self", "Self")

	var cycleErr *CycleError
	if !errors.As(g.Validate(), &cycleErr) {
		t.Fatal("Expected self-cycle to be detected")
	}
	info := cycleErr.Info
	if info.ProcessedNodes != 1 {
		t.Errorf("Expected Root to be processed, got %d processed", info.ProcessedNodes)
	}
	if !reflect.DeepEqual(info.CyclePath, []string{"Self", "Self"}) {
		t.Errorf("Expected [Self Self], got %v", info.CyclePath)
	}
}

func TestValidate(t *testing.T) {
	if err := chain("A", "B").Validate(); err != nil {
		t.Errorf("Expected acyclic graph to validate, got %v", err)
	}
	if err := chain("A").Validate(); err != nil {
		t.Errorf("Expected single node to validate, got %v", err)
	}

	g := chain("A", "B")
	g.AddEdge("B", "A")
	if err := g.Validate(); err == nil {
		t.Error("Expected cycle to fail validation")
	}
	var cycleErr *CycleError
	if !errors.As(g.Validate(), &cycleErr) {
		t.Error("Expected a *CycleError")
	}
}
