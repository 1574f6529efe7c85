package resolver

import (
	"fmt"
	"sort"
	"sync"
)

// Repository is a named source of packages.
//
// The set of contained names is fixed at construction (typically read from the repository's
// remote index). The requested names grow while a resolution runs and never shrink.
type Repository struct {
	name      string
	contained map[string]struct{}

	mu        sync.Mutex
	requested map[string]struct{}
}

// NewRepository returns a repository able to supply the given package names.
func NewRepository(name string, contained ...string) *Repository {
	r := &Repository{
		name:      name,
		contained: make(map[string]struct{}, len(contained)),
		requested: make(map[string]struct{}),
	}
	for _, n := range contained {
		r.contained[n] = struct{}{}
	}
	return r
}

func (r *Repository) Name() string {
	return r.name
}

func (r *Repository) String() string {
	return fmt.Sprintf("repository %s", r.name)
}

// Contains reports whether the repository's index lists name.
func (r *Repository) Contains(name string) bool {
	_, ok := r.contained[name]
	return ok
}

// ContainedNames returns the package names the repository can supply, sorted.
func (r *Repository) ContainedNames() []string {
	return sortedKeys(r.contained)
}

// AddDependencyNames records that names were asked of this repository.
func (r *Repository) AddDependencyNames(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.requested[n] = struct{}{}
	}
}

// RequestedNames returns every name asked of this repository so far, sorted.
func (r *Repository) RequestedNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.requested)
}

// UnmetDependencyNames returns the requested names this repository cannot supply itself, sorted.
// Whatever is still unbound among them after the explicit scan is handed to the default repository.
func (r *Repository) UnmetDependencyNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0)
	for n := range r.requested {
		if _, ok := r.contained[n]; !ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns a repository with the same index and a private copy of the requested names.
func (r *Repository) Clone() *Repository {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := &Repository{
		name:      r.name,
		contained: r.contained,
		requested: make(map[string]struct{}, len(r.requested)),
	}
	for n := range r.requested {
		out.requested[n] = struct{}{}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
