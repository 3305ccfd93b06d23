package graph

import (
	"fmt"

	"github.com/dbsmedya/hotload/internal/meta"
)

// Builder constructs a type dependency graph from assemblies.
type Builder struct {
	assemblies []*meta.Assembly
}

// NewBuilder creates a new graph builder for the given assemblies.
func NewBuilder(assemblies ...*meta.Assembly) *Builder {
	return &Builder{assemblies: assemblies}
}

// Build constructs the dependency graph. Every type definition of the
// assemblies becomes a node; edges run from a base definition to its
// derived types and from a declaring type to its nested types. Types of
// other assemblies are left out since they are resolved on demand.
func (b *Builder) Build() (*Graph, error) {
	if len(b.assemblies) == 0 {
		return nil, fmt.Errorf("no assemblies to build from")
	}

	g := NewGraph()
	included := make(map[*meta.Assembly]bool, len(b.assemblies))
	for i, asm := range b.assemblies {
		if asm == nil {
			return nil, fmt.Errorf("assembly %d is nil", i)
		}
		included[asm] = true
	}

	for _, asm := range b.assemblies {
		for _, t := range asm.Types() {
			g.AddType(t)
		}
	}

	for _, asm := range b.assemblies {
		for _, t := range asm.Types() {
			name := t.QualifiedName()

			if t.DeclaringType != nil && included[t.DeclaringType.OwningAssembly()] {
				g.AddEdge(g.AddType(t.DeclaringType), name)
			}

			if t.Base != nil {
				b.addBaseEdge(g, included, t.Base, name)
			}
		}
	}

	// Validate graph structure (fail fast on cycles)
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}

	return g, nil
}

// addBaseEdge links the definition of base to the derived type. Generic
// arguments of the base are not linked: two types may close a base over each
// other, and the mapper memoizes arguments on its own.
func (b *Builder) addBaseEdge(g *Graph, included map[*meta.Assembly]bool, base *meta.Type, derived string) {
	if base.Kind == meta.KindArray || base.Kind == meta.KindGenericParam {
		return
	}
	def := base.Definition()
	if !included[def.OwningAssembly()] {
		return
	}
	if from := g.AddType(def); from != derived {
		g.AddEdge(from, derived)
	}
}

// BuildFromAssemblies is a convenience function that builds a graph directly
// from assemblies.
func BuildFromAssemblies(assemblies ...*meta.Assembly) (*Graph, error) {
	return NewBuilder(assemblies...).Build()
}
