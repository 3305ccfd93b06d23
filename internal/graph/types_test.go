package graph

import (
	"reflect"
	"testing"

	"github.com/dbsmedya/hotload/internal/meta"
)

func TestNewGraph(t *testing.T) {
	g := NewGraph()
	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Errorf("Expected empty graph, got %d nodes and %d edges", g.NodeCount(), g.EdgeCount())
	}
}

func TestAddNode(t *testing.T) {
	g := NewGraph()
	g.AddNode("A", nil)
	g.AddNode("B", &Node{Name: "ignored"})
	g.AddNode("A", &Node{})

	if g.NodeCount() != 2 {
		t.Errorf("Expected 2 nodes, got %d", g.NodeCount())
	}
	if got := g.GetNode("B").Name; got != "B" {
		t.Errorf("Expected node name to be overwritten with key, got %q", got)
	}
	if !reflect.DeepEqual(g.AllNodes(), []string{"A", "B"}) {
		t.Errorf("Expected re-added node to keep its position, got %v", g.AllNodes())
	}
	if g.GetNode("missing") != nil {
		t.Error("Expected nil for missing node")
	}
}

func TestAddEdge(t *testing.T) {
	g := NewGraph()
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")
	g.AddEdge("A", "C")

	if g.EdgeCount() != 2 {
		t.Errorf("Expected duplicate edge to be ignored, got %d edges", g.EdgeCount())
	}
	if !g.HasNode("B") || !g.HasNode("C") {
		t.Error("Expected AddEdge to create missing nodes")
	}
	if !reflect.DeepEqual(g.Children["A"], []string{"B", "C"}) {
		t.Errorf("Unexpected children %v", g.Children["A"])
	}
	if !reflect.DeepEqual(g.Parents["C"], []string{"A"}) {
		t.Errorf("Unexpected parents %v", g.Parents["C"])
	}
	want := []Edge{{From: "A", To: "B"}, {From: "A", To: "C"}}
	if !reflect.DeepEqual(g.AllEdges(), want) {
		t.Errorf("Expected %v, got %v", want, g.AllEdges())
	}
}

func TestAddTypeUpgradesPlaceholder(t *testing.T) {
	asm := meta.NewAssembly("Game")
	player := asm.Define("Game", "Player", meta.KindClass)

	g := NewGraph()
	g.AddEdge("Game::Game.Player", "Game::Game.Boss")
	if g.GetNode("Game::Game.Player").Type != nil {
		t.Fatal("Expected placeholder node without descriptor")
	}

	if name := g.AddType(player); name != "Game::Game.Player" {
		t.Errorf("Expected qualified name, got %q", name)
	}
	if g.GetNode("Game::Game.Player").Type != player {
		t.Error("Expected AddType to attach the descriptor")
	}
	if !reflect.DeepEqual(g.AllNodes(), []string{"Game::Game.Player", "Game::Game.Boss"}) {
		t.Errorf("Expected placeholder to keep its position, got %v", g.AllNodes())
	}
}
