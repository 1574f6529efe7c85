// Package manifest loads the repository and requirement configuration of a project and turns it
// into resolver input.
//
// The same Document shape is read from YAML/JSON files by the CLI, decoded from gRPC requests and
// assembled from DependencyManifest/PackageRepository objects by the controller.
package manifest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"

	sourcemapv1alpha1 "github.com/anvil-platform/sourcemap/api/v1alpha1"
	"github.com/anvil-platform/sourcemap/internal/resolver"
	"github.com/anvil-platform/sourcemap/internal/semver"
)

// RepositoryConfig is a named PackageRepository spec.
type RepositoryConfig struct {
	Name                                    string `json:"name"`
	sourcemapv1alpha1.PackageRepositorySpec `json:",inline"`
}

// IndexAlias returns the alias the repository answers to as an index.
func (r RepositoryConfig) IndexAlias() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// PackageNames returns the names listed in the repository index, in index order.
func (r RepositoryConfig) PackageNames() []string {
	out := make([]string, 0, len(r.Packages))
	for _, p := range r.Packages {
		out = append(out, p.Name)
	}
	return out
}

// Versions returns the versions the index lists for pkg.
func (r RepositoryConfig) Versions(pkg string) []string {
	for _, p := range r.Packages {
		if p.Name == pkg {
			return p.Versions
		}
	}
	return nil
}

// Document is a complete source-resolution configuration.
type Document struct {
	Strict       bool                                `json:"strict,omitempty"`
	Repositories []RepositoryConfig                  `json:"repositories"`
	Requirements []sourcemapv1alpha1.RequirementSpec `json:"requirements"`
}

// Load reads a Document from a YAML or JSON file.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a Document. Unknown fields are rejected.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Repository returns the repository configuration named name.
func (d Document) Repository(name string) (RepositoryConfig, bool) {
	for _, r := range d.Repositories {
		if r.Name == name {
			return r, true
		}
	}
	return RepositoryConfig{}, false
}

// Mode returns the resolver mode the document asks for.
func (d Document) Mode() resolver.Mode {
	if d.Strict {
		return resolver.ModeStrict
	}
	return resolver.ModeRelaxed
}

// Validate reports every structural problem in the document at once.
//
// Unknown preferred index aliases are left to the resolver, which reports them as a
// resolver.ConfigurationError.
func (d Document) Validate() error {
	var errs []error

	if len(d.Repositories) == 0 {
		errs = append(errs, fmt.Errorf("at least one repository is required"))
	}
	names := make(map[string]struct{}, len(d.Repositories))
	aliases := make(map[string]string)
	defaults := make([]string, 0, 1)
	for i, r := range d.Repositories {
		if strings.TrimSpace(r.Name) == "" {
			errs = append(errs, fmt.Errorf("repositories[%d]: name is required", i))
			continue
		}
		if _, dup := names[r.Name]; dup {
			errs = append(errs, fmt.Errorf("repository %q is declared more than once", r.Name))
		}
		names[r.Name] = struct{}{}

		switch r.Role {
		case sourcemapv1alpha1.RepositoryRoleDefault:
			defaults = append(defaults, r.Name)
		case sourcemapv1alpha1.RepositoryRoleExplicit:
		case sourcemapv1alpha1.RepositoryRoleIndex:
			alias := r.IndexAlias()
			if other, dup := aliases[alias]; dup {
				errs = append(errs, fmt.Errorf("index alias %q is used by both %q and %q", alias, other, r.Name))
			}
			aliases[alias] = r.Name
		default:
			errs = append(errs, fmt.Errorf("repository %q: unknown role %q", r.Name, r.Role))
		}

		for _, p := range r.Packages {
			if strings.TrimSpace(p.Name) == "" {
				errs = append(errs, fmt.Errorf("repository %q: package without a name", r.Name))
				continue
			}
			for _, v := range p.Versions {
				if _, err := semver.ParseVersion(v); err != nil {
					errs = append(errs, fmt.Errorf("repository %q package %q: %w", r.Name, p.Name, err))
				}
			}
		}
	}
	switch len(defaults) {
	case 0:
		if len(d.Repositories) > 0 {
			errs = append(errs, fmt.Errorf("exactly one repository must have role %q, found none", sourcemapv1alpha1.RepositoryRoleDefault))
		}
	case 1:
	default:
		errs = append(errs, fmt.Errorf("exactly one repository must have role %q, found %s", sourcemapv1alpha1.RepositoryRoleDefault, strings.Join(defaults, ", ")))
	}

	requirements := make(map[string]struct{}, len(d.Requirements))
	for i, req := range d.Requirements {
		if strings.TrimSpace(req.Name) == "" {
			errs = append(errs, fmt.Errorf("requirements[%d]: name is required", i))
			continue
		}
		if _, dup := requirements[req.Name]; dup {
			errs = append(errs, fmt.Errorf("requirement %q is declared more than once", req.Name))
		}
		requirements[req.Name] = struct{}{}
		if req.Source != "" {
			if _, ok := names[req.Source]; !ok {
				errs = append(errs, fmt.Errorf("requirement %q: unknown source repository %q", req.Name, req.Source))
			}
		}
		if req.Version != "" {
			if _, err := semver.ParseRequirement(req.Version); err != nil {
				errs = append(errs, fmt.Errorf("requirement %q: %w", req.Name, err))
			}
		}
	}

	return utilerrors.NewAggregate(errs)
}

// Build validates the document and assembles resolver input.
//
// Explicit non-default repositories are those with role explicit plus any repository a requirement
// pins to, ordered by spec.order and then by declaration order.
func (d Document) Build() (resolver.Input, error) {
	if err := d.Validate(); err != nil {
		return resolver.Input{}, err
	}

	repos := make(map[string]*resolver.Repository, len(d.Repositories))
	var def *resolver.Repository
	index := make(map[string]*resolver.Repository)
	for _, cfg := range d.Repositories {
		repo := resolver.NewRepository(cfg.Name, cfg.PackageNames()...)
		repos[cfg.Name] = repo
		switch cfg.Role {
		case sourcemapv1alpha1.RepositoryRoleDefault:
			def = repo
		case sourcemapv1alpha1.RepositoryRoleIndex:
			index[cfg.IndexAlias()] = repo
		}
	}

	pinned := make(map[string]struct{})
	for _, req := range d.Requirements {
		if req.Source != "" {
			pinned[req.Source] = struct{}{}
		}
	}
	type ranked struct {
		cfg   RepositoryConfig
		index int
	}
	candidates := make([]ranked, 0, len(d.Repositories))
	for i, cfg := range d.Repositories {
		if cfg.Role == sourcemapv1alpha1.RepositoryRoleDefault {
			continue
		}
		_, isPinned := pinned[cfg.Name]
		if cfg.Role == sourcemapv1alpha1.RepositoryRoleExplicit || isPinned {
			candidates = append(candidates, ranked{cfg: cfg, index: i})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].cfg.Order != candidates[j].cfg.Order {
			return candidates[i].cfg.Order < candidates[j].cfg.Order
		}
		return candidates[i].index < candidates[j].index
	})
	explicit := make([]*resolver.Repository, 0, len(candidates))
	for _, c := range candidates {
		explicit = append(explicit, repos[c.cfg.Name])
	}

	set, err := resolver.NewRepositorySet(def, explicit, index)
	if err != nil {
		return resolver.Input{}, err
	}

	requirements := make([]resolver.Requirement, 0, len(d.Requirements))
	for _, req := range d.Requirements {
		r := resolver.Requirement{
			Name:                req.Name,
			Version:             req.Version,
			PreferredIndexAlias: req.PreferredIndex,
			SubDependencyNames:  append([]string(nil), req.Dependencies...),
		}
		if req.Source != "" {
			r.Source = repos[req.Source]
		}
		requirements = append(requirements, r)
	}

	return resolver.Input{Set: set, Requirements: requirements, Mode: d.Mode()}, nil
}

// FromCluster assembles a Document from a DependencyManifest and the PackageRepositories it
// references. repos must be in the manifest's repository order.
func FromCluster(m *sourcemapv1alpha1.DependencyManifest, repos []sourcemapv1alpha1.PackageRepository) Document {
	doc := Document{
		Strict:       m.Spec.Strict,
		Repositories: make([]RepositoryConfig, 0, len(repos)),
		Requirements: make([]sourcemapv1alpha1.RequirementSpec, 0, len(m.Spec.Requirements)),
	}
	for i := range repos {
		var spec sourcemapv1alpha1.PackageRepositorySpec
		repos[i].Spec.DeepCopyInto(&spec)
		doc.Repositories = append(doc.Repositories, RepositoryConfig{Name: repos[i].Name, PackageRepositorySpec: spec})
	}
	for i := range m.Spec.Requirements {
		var req sourcemapv1alpha1.RequirementSpec
		m.Spec.Requirements[i].DeepCopyInto(&req)
		doc.Requirements = append(doc.Requirements, req)
	}
	return doc
}

// Hash fingerprints the document so unchanged inputs can skip resolution.
func (d Document) Hash() (string, error) {
	h, err := hashstructure.Hash(d, nil)
	if err != nil {
		return "", fmt.Errorf("manifest: hash document: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}
