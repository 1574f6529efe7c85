package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-logr/logr"

	"github.com/anvil-platform/sourcemap/internal/graph"
)

// SourceMap decides, for every package of a project, which repository it must be fetched from.
//
// A SourceMap registers demand on the repositories of its set while it runs. Give concurrent runs
// their own set (see RepositorySet.Clone); DefaultResolver does that for you.
type SourceMap struct {
	set          *RepositorySet
	requirements []Requirement
	mode         Mode
	logger       logr.Logger

	direct map[string]*Repository
}

// Option configures a SourceMap.
type Option func(*SourceMap)

// WithMode selects strict or relaxed ambiguity handling. The zero value means strict.
func WithMode(mode Mode) Option {
	return func(m *SourceMap) {
		if mode != "" {
			m.mode = mode
		}
	}
}

// WithLogger sets the logger used for relaxed-mode ambiguity warnings.
func WithLogger(logger logr.Logger) Option {
	return func(m *SourceMap) {
		m.logger = logger
	}
}

// New returns a SourceMap over set and requirements.
func New(set *RepositorySet, requirements []Requirement, opts ...Option) *SourceMap {
	m := &SourceMap{
		set:          set,
		requirements: requirements,
		mode:         ModeStrict,
		logger:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DirectRequirements maps each requirement to its explicit source, or the default repository.
//
// The first call registers every requirement name on its chosen repository; the mapping is
// memoised and a fresh copy is returned on every call.
func (m *SourceMap) DirectRequirements() map[string]*Repository {
	if m.direct == nil {
		m.direct = make(map[string]*Repository, len(m.requirements))
		for _, req := range m.requirements {
			source := m.sourceFor(req)
			source.AddDependencyNames(req.Name)
			m.direct[req.Name] = source
		}
	}
	out := make(map[string]*Repository, len(m.direct))
	for k, v := range m.direct {
		out[k] = v
	}
	return out
}

// PinnedNames returns the directly required names whose repository is not excluding, sorted.
// A nil excluding returns every direct name.
func (m *SourceMap) PinnedNames(excluding *Repository) []string {
	out := make([]string, 0, len(m.requirements))
	for name, source := range m.DirectRequirements() {
		if excluding != nil && source == excluding {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ResolveAll computes the complete package → repository mapping.
//
// In strict mode the first ambiguous package aborts the run with a *SourceAmbiguityError.
// A preferred index alias without a matching index repository fails with a *ConfigurationError
// before anything is bound.
func (m *SourceMap) ResolveAll(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := m.validate(); err != nil {
		return Result{}, err
	}

	// 1) Direct pins, plus the demand each pinned package puts on its source.
	assignments := m.DirectRequirements()
	for _, req := range m.requirements {
		m.sourceFor(req).AddDependencyNames(req.SubDependencyNames...)
	}

	// 2) Who introduced each sub-dependency.
	byName := make(map[string]Requirement, len(m.requirements))
	for _, req := range m.requirements {
		byName[req.Name] = req
	}
	provenance := graph.BuildProvenance(dependencyGraph(m.requirements).Edges())
	for _, c := range provenance.Collisions {
		m.logger.V(1).Info("sub-dependency introduced by several requirements; first declaration wins",
			"package", c.Child, "parent", c.Winner, "shadowed", c.Shadowed)
	}

	// 3) Scan explicit repositories in configuration order.
	pinned := make(map[string]struct{})
	for _, name := range m.PinnedNames(nil) {
		pinned[name] = struct{}{}
	}
	var (
		conflicts []Conflict
		indirect  []string
		unmet     []string
	)
	for _, repo := range m.set.ExplicitNonDefault() {
		for _, name := range repo.ContainedNames() {
			if _, ok := pinned[name]; ok {
				continue
			}
			previous, bound := assignments[name]
			if !bound {
				target, err := m.indirectSource(name, repo, provenance, byName, assignments)
				if err != nil {
					return Result{}, err
				}
				assignments[name] = target
				target.AddDependencyNames(name)
				indirect = append(indirect, name)
				continue
			}
			if previous == repo {
				continue
			}

			conflict := newConflict(name, m.mode == ModeStrict, previous, repo)
			conflicts = append(conflicts, conflict)
			if conflict.Fatal {
				return Result{}, &SourceAmbiguityError{Conflict: conflict}
			}
			m.logger.Info(conflict.Warning(), "package", name, "kept", previous.Name(), "ignored", repo.Name())
		}
		unmet = append(unmet, repo.UnmetDependencyNames()...)
	}

	// 4) Whatever the explicit repositories could not supply falls back to the default.
	leftoverSet := make(map[string]struct{})
	for _, name := range unmet {
		if _, ok := assignments[name]; !ok {
			leftoverSet[name] = struct{}{}
		}
	}
	leftover := sortedKeys(leftoverSet)
	def := m.set.Default()
	for _, name := range leftover {
		assignments[name] = def
	}
	def.AddDependencyNames(leftover...)

	sort.Strings(indirect)
	return Result{
		Assignments:  assignments,
		Conflicts:    conflicts,
		Indirect:     indirect,
		Leftover:     leftover,
		Provenance:   provenance,
		Repositories: m.set,
	}, nil
}

// indirectSource picks the repository for a package first met while scanning repo.
func (m *SourceMap) indirectSource(
	name string,
	repo *Repository,
	provenance graph.Provenance,
	requirements map[string]Requirement,
	assignments map[string]*Repository,
) (*Repository, error) {
	parentName, ok := provenance.Parent(name)
	if !ok {
		return repo, nil
	}
	parent := requirements[parentName]
	if parent.PreferredIndexAlias != "" {
		index, ok := m.set.IndexRepository(parent.PreferredIndexAlias)
		if !ok {
			return nil, &ConfigurationError{Requirement: parent.Name, Alias: parent.PreferredIndexAlias}
		}
		return index, nil
	}
	if source, ok := assignments[parentName]; ok {
		return source, nil
	}
	return repo, nil
}

func (m *SourceMap) sourceFor(req Requirement) *Repository {
	if req.Source != nil {
		return req.Source
	}
	return m.set.Default()
}

func (m *SourceMap) validate() error {
	if m.set == nil {
		return fmt.Errorf("%w: repository set is required", ErrConfiguration)
	}
	return m.set.Validate(m.requirements)
}
