// Package report renders a resolution result into the output contract shared by the CLI, the gRPC
// service, the controller status and the NATS stream.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"

	sourcemapv1alpha1 "github.com/anvil-platform/sourcemap/api/v1alpha1"
	"github.com/anvil-platform/sourcemap/internal/manifest"
	"github.com/anvil-platform/sourcemap/internal/resolver"
	"github.com/anvil-platform/sourcemap/internal/semver"
)

// Assignment is one package bound to a repository.
type Assignment struct {
	Package    string `json:"package"`
	Repository string `json:"repository"`
	Direct     bool   `json:"direct,omitempty"`
	// Version is the requested version for direct packages, with a constraint narrowed to the
	// highest listed match, and the newest listed version otherwise.
	Version string `json:"version,omitempty"`
	// VersionAvailable is false when the bound repository's index has nothing matching the request.
	VersionAvailable bool `json:"versionAvailable"`
}

// Conflict is a package offered by several relevant repositories.
type Conflict struct {
	Package      string   `json:"package"`
	Repositories []string `json:"repositories"`
	Fatal        bool     `json:"fatal,omitempty"`
	Message      string   `json:"message"`
}

// RepositoryUsage is the demand a run put on one repository.
type RepositoryUsage struct {
	Name      string                           `json:"name"`
	Role      sourcemapv1alpha1.RepositoryRole `json:"role,omitempty"`
	Requested []string                         `json:"requested,omitempty"`
	Unmet     []string                         `json:"unmet,omitempty"`
}

// ProvenanceCollision is a sub-dependency introduced by more than one requirement.
type ProvenanceCollision struct {
	Package  string   `json:"package"`
	Parent   string   `json:"parent"`
	Shadowed []string `json:"shadowed"`
}

// Report is the rendered outcome of one resolution.
type Report struct {
	Mode        resolver.Mode `json:"mode"`
	Assignments []Assignment  `json:"assignments"`
	Conflicts   []Conflict    `json:"conflicts,omitempty"`
	// Unresolved are sub-dependencies that no repository of the set offers.
	Unresolved []string `json:"unresolved,omitempty"`
	// Implicit are sub-dependencies left unbound that the default repository offers.
	Implicit             []string              `json:"implicit,omitempty"`
	Repositories         []RepositoryUsage     `json:"repositories"`
	ProvenanceCollisions []ProvenanceCollision `json:"provenanceCollisions,omitempty"`
}

// Build renders result, using doc for repository roles and index versions and in for the
// requirements the run was given.
func Build(doc manifest.Document, in resolver.Input, result resolver.Result) Report {
	mode := in.Mode
	if mode == "" {
		mode = resolver.ModeStrict
	}
	r := Report{Mode: mode}

	requirements := make(map[string]resolver.Requirement, len(in.Requirements))
	for _, req := range in.Requirements {
		requirements[req.Name] = req
	}

	for _, name := range result.Names() {
		repoName := result.RepositoryFor(name)
		cfg, _ := doc.Repository(repoName)
		repo := result.Assignments[name]
		listed := parseVersions(cfg.Versions(name))
		a := Assignment{Package: name, Repository: repoName}
		if req, ok := requirements[name]; ok {
			a.Direct = true
			a.Version, a.VersionAvailable = selectVersion(repo, name, req.Version, listed)
		} else {
			a.Version = newest(listed)
			a.VersionAvailable = repo != nil && repo.Contains(name)
		}
		r.Assignments = append(r.Assignments, a)
	}

	for _, c := range result.Conflicts {
		msg := c.Warning()
		if c.Fatal {
			msg = (&resolver.SourceAmbiguityError{Conflict: c}).Error()
		}
		r.Conflicts = append(r.Conflicts, Conflict{
			Package:      c.Name,
			Repositories: append([]string(nil), c.Repositories...),
			Fatal:        c.Fatal,
			Message:      msg,
		})
	}

	set := result.Repositories
	if set == nil {
		set = in.Set
	}
	for _, name := range in.Graph().Names() {
		if _, ok := result.Assignments[name]; ok {
			continue
		}
		if set != nil && set.Default().Contains(name) {
			r.Implicit = append(r.Implicit, name)
			continue
		}
		r.Unresolved = append(r.Unresolved, name)
	}

	if set != nil {
		for _, repo := range set.Repositories() {
			cfg, _ := doc.Repository(repo.Name())
			r.Repositories = append(r.Repositories, RepositoryUsage{
				Name:      repo.Name(),
				Role:      cfg.Role,
				Requested: repo.RequestedNames(),
				Unmet:     repo.UnmetDependencyNames(),
			})
		}
	}

	for _, c := range result.Provenance.Collisions {
		r.ProvenanceCollisions = append(r.ProvenanceCollisions, ProvenanceCollision{
			Package:  c.Child,
			Parent:   c.Winner,
			Shadowed: append([]string(nil), c.Shadowed...),
		})
	}
	return r
}

func parseVersions(raw []string) []semver.Version {
	out := make([]semver.Version, 0, len(raw))
	for _, v := range raw {
		parsed, err := semver.ParseVersion(v)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	return out
}

func newest(versions []semver.Version) string {
	if len(versions) == 0 {
		return ""
	}
	sorted := append([]semver.Version(nil), versions...)
	semver.SortDescending(sorted)
	return sorted[0].String()
}

// selectVersion resolves a direct requirement's version against the bound repository's index.
// A constraint becomes the highest listed version satisfying it; an exact version is kept as written.
func selectVersion(repo *resolver.Repository, pkg, requested string, listed []semver.Version) (string, bool) {
	if repo == nil || !repo.Contains(pkg) {
		return requested, false
	}
	if requested == "" || len(listed) == 0 {
		return requested, true
	}
	want, err := semver.ParseRequirement(requested)
	if err != nil {
		return requested, false
	}
	got, ok := want.Select(listed)
	if !ok {
		return requested, false
	}
	if want.IsExact() {
		return requested, true
	}
	return got.String(), true
}

// Repository returns the repository bound to pkg, or "".
func (r Report) Repository(pkg string) string {
	for _, a := range r.Assignments {
		if a.Package == pkg {
			return a.Repository
		}
	}
	return ""
}

// Summary is a one-line description of the report.
func (r Report) Summary() string {
	repos := make(map[string]struct{})
	for _, a := range r.Assignments {
		repos[a.Repository] = struct{}{}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s from %d %s",
		len(r.Assignments), plural(len(r.Assignments), "package", "packages"),
		len(repos), plural(len(repos), "repository", "repositories"))
	if n := len(r.Conflicts); n > 0 {
		fmt.Fprintf(&sb, ", %d %s (%s)", n, plural(n, "conflict", "conflicts"), r.Mode)
	}
	if n := len(r.Unresolved); n > 0 {
		fmt.Fprintf(&sb, ", %d unresolved", n)
	}
	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Status converts the report into DependencyManifest status fields.
func (r Report) Status() ([]sourcemapv1alpha1.SourceAssignment, []sourcemapv1alpha1.SourceConflict) {
	assignments := make([]sourcemapv1alpha1.SourceAssignment, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		assignments = append(assignments, sourcemapv1alpha1.SourceAssignment{
			Package:    a.Package,
			Repository: a.Repository,
			Direct:     a.Direct,
			Version:    a.Version,
		})
	}
	var conflicts []sourcemapv1alpha1.SourceConflict
	for _, c := range r.Conflicts {
		conflicts = append(conflicts, sourcemapv1alpha1.SourceConflict{
			Package:      c.Package,
			Repositories: append([]string(nil), c.Repositories...),
			Fatal:        c.Fatal,
		})
	}
	return assignments, conflicts
}

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Encode writes the report to w in format.
func (r Report) Encode(w io.Writer, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON, "":
		data, err = json.MarshalIndent(r, "", "  ")
		data = append(data, '\n')
	case FormatYAML:
		data, err = yaml.Marshal(r)
	default:
		return fmt.Errorf("report: unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("report: encode %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}
