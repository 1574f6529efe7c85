package resolver

import (
	"sort"

	"github.com/anvil-platform/sourcemap/internal/graph"
)

// Requirement is a user-declared top-level dependency.
//
// SubDependencyNames are attached by the dependency-graph resolver before source resolution runs.
type Requirement struct {
	Name                string
	Version             string
	Source              *Repository
	PreferredIndexAlias string
	SubDependencyNames  []string
}

// Mode controls how source ambiguity is handled.
type Mode string

const (
	// ModeStrict makes ambiguity fatal.
	ModeStrict Mode = "strict"
	// ModeRelaxed downgrades ambiguity to a warning; the first binding wins.
	ModeRelaxed Mode = "relaxed"
)

// Input is the resolver's view of a project.
type Input struct {
	Set          *RepositorySet
	Requirements []Requirement
	Mode         Mode
}

// Graph returns the requirements as a dependency graph, in declaration order.
func (in Input) Graph() graph.DependencyGraph {
	return dependencyGraph(in.Requirements)
}

func dependencyGraph(reqs []Requirement) graph.DependencyGraph {
	g := graph.DependencyGraph{Nodes: make([]graph.Node, 0, len(reqs))}
	for _, req := range reqs {
		g.Nodes = append(g.Nodes, graph.Node{
			Name:         req.Name,
			Version:      req.Version,
			Dependencies: req.SubDependencyNames,
		})
	}
	return g
}

// Result is the output of a resolution run.
type Result struct {
	// Assignments maps every direct and indirect package name to its repository.
	Assignments map[string]*Repository
	// Conflicts lists every ambiguity seen, in detection order.
	Conflicts []Conflict
	// Indirect lists names bound during the explicit-repository scan, sorted.
	Indirect []string
	// Leftover lists names unmet by explicit repositories and handed to the default, sorted.
	Leftover []string
	// Provenance is the sub-dependency → parent table used for inheritance.
	Provenance graph.Provenance
	// Repositories is the set the run registered demand on. DefaultResolver sets it to its private clone.
	Repositories *RepositorySet
}

// Names returns the assigned package names, sorted.
func (r Result) Names() []string {
	out := make([]string, 0, len(r.Assignments))
	for name := range r.Assignments {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RepositoryFor returns the name of the repository bound to pkg, or "".
func (r Result) RepositoryFor(pkg string) string {
	if repo, ok := r.Assignments[pkg]; ok && repo != nil {
		return repo.Name()
	}
	return ""
}
