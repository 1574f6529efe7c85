// Package graph holds the dependency-graph view handed to the source resolver.
//
// Version selection happens upstream; by the time a graph reaches this package every node already
// carries its chosen version and the names of its direct dependencies.
package graph

import "sort"

// Node is a resolved package in the dependency graph.
type Node struct {
	Name         string
	Version      string
	Dependencies []string
}

// DependencyGraph is the resolved graph: top-level nodes first, in declaration order.
type DependencyGraph struct {
	Nodes []Node
}

// Names returns every node name followed by every dependency name, de-duplicated and sorted.
func (g DependencyGraph) Names() []string {
	seen := make(map[string]struct{})
	for _, n := range g.Nodes {
		seen[n.Name] = struct{}{}
		for _, dep := range n.Dependencies {
			seen[dep] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Parent is one "child was introduced by parent" edge.
type Parent struct {
	Child  string
	Parent string
}

// Collision records a child introduced by more than one parent.
// Winner is the parent kept in the provenance table; Shadowed are the later ones.
type Collision struct {
	Child    string
	Winner   string
	Shadowed []string
}

// Provenance maps each sub-dependency to the top-level node that introduced it.
type Provenance struct {
	Parents    map[string]string
	Collisions []Collision
}

// Parent returns the introducing parent of child.
func (p Provenance) Parent(child string) (string, bool) {
	parent, ok := p.Parents[child]
	return parent, ok
}

// Edges flattens the graph into parent edges in declaration order.
func (g DependencyGraph) Edges() []Parent {
	out := make([]Parent, 0)
	for _, n := range g.Nodes {
		for _, dep := range n.Dependencies {
			out = append(out, Parent{Child: dep, Parent: n.Name})
		}
	}
	return out
}

// BuildProvenance builds the provenance table from edges.
//
// The first edge for a child wins. Later parents are kept as collisions (sorted by child)
// so callers can surface them instead of silently losing them.
func BuildProvenance(edges []Parent) Provenance {
	p := Provenance{Parents: make(map[string]string, len(edges))}
	shadowed := make(map[string][]string)
	for _, e := range edges {
		winner, ok := p.Parents[e.Child]
		if !ok {
			p.Parents[e.Child] = e.Parent
			continue
		}
		if winner == e.Parent || contains(shadowed[e.Child], e.Parent) {
			continue
		}
		shadowed[e.Child] = append(shadowed[e.Child], e.Parent)
	}

	children := make([]string, 0, len(shadowed))
	for child := range shadowed {
		children = append(children, child)
	}
	sort.Strings(children)
	for _, child := range children {
		p.Collisions = append(p.Collisions, Collision{
			Child:    child,
			Winner:   p.Parents[child],
			Shadowed: shadowed[child],
		})
	}
	return p
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
