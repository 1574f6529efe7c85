package resolver

import (
	"fmt"
	"sort"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// RepositorySet is the configured collection of repositories for one project.
//
// The explicit repositories keep configuration order; that order is the tie-break when two
// repositories claim the same indirect package.
type RepositorySet struct {
	defaultRepo *Repository
	explicit    []*Repository
	index       map[string]*Repository
	byName      map[string]*Repository
}

// NewRepositorySet validates and assembles a repository set.
//
// index maps an alias to its repository; an index repository may also appear in explicit.
func NewRepositorySet(def *Repository, explicit []*Repository, index map[string]*Repository) (*RepositorySet, error) {
	var errs []error
	if def == nil {
		errs = append(errs, fmt.Errorf("default repository is required"))
	}

	byName := make(map[string]*Repository)
	register := func(r *Repository) {
		if r == nil {
			errs = append(errs, fmt.Errorf("nil repository in set"))
			return
		}
		if prev, ok := byName[r.Name()]; ok && prev != r {
			errs = append(errs, fmt.Errorf("duplicate repository name %q", r.Name()))
			return
		}
		byName[r.Name()] = r
	}
	if def != nil {
		register(def)
	}
	for _, r := range explicit {
		if r != nil && r == def {
			errs = append(errs, fmt.Errorf("default repository %q cannot also be an explicit non-default repository", r.Name()))
			continue
		}
		register(r)
	}
	table := make(map[string]*Repository, len(index))
	for _, alias := range sortedAliases(index) {
		if alias == "" {
			errs = append(errs, fmt.Errorf("index repository alias must not be empty"))
			continue
		}
		register(index[alias])
		table[alias] = index[alias]
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return nil, err
	}

	return &RepositorySet{
		defaultRepo: def,
		explicit:    append([]*Repository(nil), explicit...),
		index:       table,
		byName:      byName,
	}, nil
}

// Default returns the repository used when no explicit choice applies.
func (s *RepositorySet) Default() *Repository {
	return s.defaultRepo
}

// ExplicitNonDefault returns the explicit repositories in configuration order.
func (s *RepositorySet) ExplicitNonDefault() []*Repository {
	return append([]*Repository(nil), s.explicit...)
}

// IndexRepository returns the index repository registered under alias.
func (s *RepositorySet) IndexRepository(alias string) (*Repository, bool) {
	r, ok := s.index[alias]
	return r, ok
}

// IndexAliases returns the configured index aliases, sorted.
func (s *RepositorySet) IndexAliases() []string {
	return sortedAliases(s.index)
}

// Repositories returns every member once: default, explicit in order, then index-only by alias.
func (s *RepositorySet) Repositories() []*Repository {
	seen := make(map[*Repository]struct{})
	out := make([]*Repository, 0, 1+len(s.explicit)+len(s.index))
	add := func(r *Repository) {
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	add(s.defaultRepo)
	for _, r := range s.explicit {
		add(r)
	}
	for _, alias := range s.IndexAliases() {
		add(s.index[alias])
	}
	return out
}

// Lookup returns the member named name.
func (s *RepositorySet) Lookup(name string) (*Repository, bool) {
	r, ok := s.byName[name]
	return r, ok
}

// Has reports whether r is a member of the set.
func (s *RepositorySet) Has(r *Repository) bool {
	if r == nil {
		return false
	}
	m, ok := s.byName[r.Name()]
	return ok && m == r
}

// Validate checks requirements against the set: names are present and unique, every explicit
// source is a member and every preferred index alias is configured.
//
// An unknown alias is reported as a *ConfigurationError. Requirements are checked in declaration
// order and the first problem is returned.
func (s *RepositorySet) Validate(reqs []Requirement) error {
	seen := make(map[string]struct{}, len(reqs))
	for _, req := range reqs {
		if req.Name == "" {
			return fmt.Errorf("%w: requirement without a name", ErrConfiguration)
		}
		if _, dup := seen[req.Name]; dup {
			return fmt.Errorf("%w: requirement %q declared more than once", ErrConfiguration, req.Name)
		}
		seen[req.Name] = struct{}{}
		if req.Source != nil && !s.Has(req.Source) {
			return fmt.Errorf("%w: requirement %q pins %s, which is not part of the repository set", ErrConfiguration, req.Name, req.Source)
		}
		if req.PreferredIndexAlias != "" {
			if _, ok := s.IndexRepository(req.PreferredIndexAlias); !ok {
				return &ConfigurationError{Requirement: req.Name, Alias: req.PreferredIndexAlias}
			}
		}
	}
	return nil
}

// Clone deep-copies the set so a resolution run can register demand without touching the original.
// It also returns the old → new repository mapping so callers can translate their requirements.
func (s *RepositorySet) Clone() (*RepositorySet, map[*Repository]*Repository) {
	mapping := make(map[*Repository]*Repository)
	for _, r := range s.Repositories() {
		mapping[r] = r.Clone()
	}
	out := &RepositorySet{
		defaultRepo: mapping[s.defaultRepo],
		explicit:    make([]*Repository, 0, len(s.explicit)),
		index:       make(map[string]*Repository, len(s.index)),
		byName:      make(map[string]*Repository, len(s.byName)),
	}
	for _, r := range s.explicit {
		out.explicit = append(out.explicit, mapping[r])
	}
	for alias, r := range s.index {
		out.index[alias] = mapping[r]
	}
	for name, r := range s.byName {
		out.byName[name] = mapping[r]
	}
	return out, mapping
}

func sortedAliases(m map[string]*Repository) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
