// Package graph orders type definitions so that a type is precomputed only
// after its base and declaring types.
package graph

import "github.com/dbsmedya/hotload/internal/meta"

// Node is one type definition. Type is nil for nodes added by name only.
type Node struct {
	Name string // "Asm::Ns.Type"
	Type *meta.Type
}

// Edge runs from a prerequisite to the type depending on it.
type Edge struct {
	From string
	To   string
}

// Graph holds the dependencies between type definitions.
type Graph struct {
	Nodes    map[string]*Node
	Children map[string][]string // prerequisite -> dependents
	Parents  map[string][]string // dependent -> prerequisites
	order    []string
	edges    map[Edge]bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:    make(map[string]*Node),
		Children: make(map[string][]string),
		Parents:  make(map[string][]string),
		edges:    make(map[Edge]bool),
	}
}

// AddNode adds or replaces a node. A replaced node keeps its position.
func (g *Graph) AddNode(name string, node *Node) {
	if node == nil {
		node = &Node{}
	}
	node.Name = name
	if _, ok := g.Nodes[name]; !ok {
		g.order = append(g.order, name)
	}
	g.Nodes[name] = node
}

// AddType adds t under its qualified name and returns that name. A node
// created by name only is upgraded to carry the descriptor.
func (g *Graph) AddType(t *meta.Type) string {
	name := t.QualifiedName()
	if n, ok := g.Nodes[name]; !ok || n.Type == nil {
		g.AddNode(name, &Node{Type: t})
	}
	return name
}

// AddEdge records that child depends on parent. Missing nodes are created
// and duplicate edges ignored.
func (g *Graph) AddEdge(parent, child string) {
	e := Edge{From: parent, To: child}
	if g.edges[e] {
		return
	}
	g.edges[e] = true
	for _, name := range []string{parent, child} {
		if _, ok := g.Nodes[name]; !ok {
			g.AddNode(name, nil)
		}
	}
	g.Children[parent] = append(g.Children[parent], child)
	g.Parents[child] = append(g.Parents[child], parent)
}

// GetNode returns the named node, or nil.
func (g *Graph) GetNode(name string) *Node {
	return g.Nodes[name]
}

// HasNode reports whether the graph contains the named node.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.Nodes[name]
	return ok
}

// HasEdge reports whether child depends directly on parent.
func (g *Graph) HasEdge(parent, child string) bool {
	return g.edges[Edge{From: parent, To: child}]
}

func (g *Graph) NodeCount() int { return len(g.Nodes) }

func (g *Graph) EdgeCount() int { return len(g.edges) }

// AllNodes returns the node names in insertion order.
func (g *Graph) AllNodes() []string {
	return append([]string(nil), g.order...)
}

// AllEdges returns every edge grouped by prerequisite in insertion order.
func (g *Graph) AllEdges() []Edge {
	var out []Edge
	for _, parent := range g.order {
		for _, child := range g.Children[parent] {
			out = append(out, Edge{From: parent, To: child})
		}
	}
	return out
}
