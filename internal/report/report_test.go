package report

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	sourcemapv1alpha1 "github.com/anvil-platform/sourcemap/api/v1alpha1"
	"github.com/anvil-platform/sourcemap/internal/manifest"
	"github.com/anvil-platform/sourcemap/internal/resolver"
)

func resolveShop(t *testing.T) Report {
	t.Helper()
	doc, err := manifest.Load(filepath.Join("..", "manifest", "testdata", "shop.yaml"))
	require.NoError(t, err)
	in, err := doc.Build()
	require.NoError(t, err)
	result, err := resolver.NewDefault().Resolve(context.Background(), in)
	require.NoError(t, err)
	return Build(doc, in, result)
}

func TestBuild_ShopFixture(t *testing.T) {
	r := resolveShop(t)

	assert.Equal(t, resolver.ModeRelaxed, r.Mode)
	assert.Equal(t, []Assignment{
		{Package: "acme-auth", Repository: "acme", Direct: true, Version: "1.4.0", VersionAvailable: true},
		{Package: "acme-client", Repository: "acme", Version: "0.9.2", VersionAvailable: true},
		{Package: "contrib-metrics", Repository: "contrib", Direct: true, Version: "0.3.0", VersionAvailable: true},
		{Package: "faraday", Repository: "vetted", Version: "2.9.0", VersionAvailable: true},
		{Package: "json", Repository: "rubygems", Version: "2.7.1", VersionAvailable: true},
		{Package: "jwt", Repository: "acme", Version: "2.7.0", VersionAvailable: true},
		{Package: "rack", Repository: "rubygems", Direct: true, Version: "3.0.9", VersionAvailable: true},
	}, r.Assignments)

	require.Len(t, r.Conflicts, 1)
	assert.Equal(t, "jwt", r.Conflicts[0].Package)
	assert.Equal(t, []string{"acme", "contrib"}, r.Conflicts[0].Repositories)
	assert.False(t, r.Conflicts[0].Fatal)
	assert.Contains(t, r.Conflicts[0].Message, "Warning: The package \"jwt\" was found in multiple relevant sources.")

	assert.Empty(t, r.Unresolved)
	assert.Empty(t, r.Implicit)
	assert.Equal(t, []RepositoryUsage{
		{Name: "rubygems", Role: sourcemapv1alpha1.RepositoryRoleDefault, Requested: []string{"json", "rack"}, Unmet: []string{}},
		{Name: "acme", Role: sourcemapv1alpha1.RepositoryRoleExplicit, Requested: []string{"acme-auth", "acme-client", "json", "jwt"}, Unmet: []string{"json"}},
		{Name: "contrib", Role: sourcemapv1alpha1.RepositoryRoleExplicit, Requested: []string{"contrib-metrics", "faraday"}, Unmet: []string{}},
		{Name: "vetted", Role: sourcemapv1alpha1.RepositoryRoleIndex, Requested: []string{"faraday"}, Unmet: []string{}},
	}, r.Repositories)

	assert.Equal(t, "7 packages from 4 repositories, 1 conflict (relaxed)", r.Summary())
	assert.Equal(t, "vetted", r.Repository("faraday"))
	assert.Equal(t, "", r.Repository("nope"))
}

func TestBuild_UnresolvedAndImplicit(t *testing.T) {
	def := resolver.NewRepository("rubygems", "rack", "rack-test")
	set, err := resolver.NewRepositorySet(def, nil, nil)
	require.NoError(t, err)
	in := resolver.Input{
		Set:          set,
		Requirements: []resolver.Requirement{{Name: "rack", Version: "9.9.9", SubDependencyNames: []string{"rack-test", "ghost", "rack-test"}}},
	}
	result, err := resolver.NewDefault().Resolve(context.Background(), in)
	require.NoError(t, err)

	doc := manifest.Document{Repositories: []manifest.RepositoryConfig{{
		Name: "rubygems",
		PackageRepositorySpec: sourcemapv1alpha1.PackageRepositorySpec{
			Role:     sourcemapv1alpha1.RepositoryRoleDefault,
			Packages: []sourcemapv1alpha1.PackageEntry{{Name: "rack", Versions: []string{"3.0.9"}}},
		},
	}}}
	r := Build(doc, in, result)

	assert.Equal(t, resolver.ModeStrict, r.Mode)
	assert.Equal(t, []string{"ghost"}, r.Unresolved)
	assert.Equal(t, []string{"rack-test"}, r.Implicit)
	require.Len(t, r.Assignments, 1)
	assert.False(t, r.Assignments[0].VersionAvailable)
	assert.Equal(t, "1 package from 1 repository, 1 unresolved", r.Summary())
}

func TestBuild_VersionConstraints(t *testing.T) {
	def := resolver.NewRepository("rubygems", "rack", "puma", "json")
	set, err := resolver.NewRepositorySet(def, nil, nil)
	require.NoError(t, err)
	in := resolver.Input{
		Set: set,
		Requirements: []resolver.Requirement{
			{Name: "rack", Version: "~3.0"},
			{Name: "puma", Version: ">= 7"},
			{Name: "json", Version: "v2.7.1"},
		},
	}
	result, err := resolver.NewDefault().Resolve(context.Background(), in)
	require.NoError(t, err)

	doc := manifest.Document{Repositories: []manifest.RepositoryConfig{{
		Name: "rubygems",
		PackageRepositorySpec: sourcemapv1alpha1.PackageRepositorySpec{
			Role: sourcemapv1alpha1.RepositoryRoleDefault,
			Packages: []sourcemapv1alpha1.PackageEntry{
				{Name: "rack", Versions: []string{"2.2.8", "3.0.9", "3.0.1"}},
				{Name: "puma", Versions: []string{"6.4.2"}},
				{Name: "json", Versions: []string{"2.7.1"}},
			},
		},
	}}}
	r := Build(doc, in, result)

	assert.Equal(t, []Assignment{
		{Package: "json", Repository: "rubygems", Direct: true, Version: "v2.7.1", VersionAvailable: true},
		{Package: "puma", Repository: "rubygems", Direct: true, Version: ">= 7", VersionAvailable: false},
		{Package: "rack", Repository: "rubygems", Direct: true, Version: "3.0.9", VersionAvailable: true},
	}, r.Assignments)
}

func TestBuild_ProvenanceCollisions(t *testing.T) {
	def := resolver.NewRepository("rubygems")
	set, err := resolver.NewRepositorySet(def, nil, nil)
	require.NoError(t, err)
	in := resolver.Input{
		Set: set,
		Requirements: []resolver.Requirement{
			{Name: "a", SubDependencyNames: []string{"shared"}},
			{Name: "b", SubDependencyNames: []string{"shared"}},
		},
	}
	result, err := resolver.NewDefault().Resolve(context.Background(), in)
	require.NoError(t, err)

	r := Build(manifest.Document{}, in, result)
	assert.Equal(t, []ProvenanceCollision{{Package: "shared", Parent: "a", Shadowed: []string{"b"}}}, r.ProvenanceCollisions)
}

func TestReport_Status(t *testing.T) {
	assignments, conflicts := resolveShop(t).Status()

	require.Len(t, assignments, 7)
	assert.Equal(t, sourcemapv1alpha1.SourceAssignment{Package: "acme-auth", Repository: "acme", Direct: true, Version: "1.4.0"}, assignments[0])
	assert.Equal(t, []sourcemapv1alpha1.SourceConflict{{Package: "jwt", Repositories: []string{"acme", "contrib"}}}, conflicts)
}

func TestReport_Encode(t *testing.T) {
	r := resolveShop(t)

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf, FormatJSON))
	var fromJSON Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, r.Assignments, fromJSON.Assignments)

	buf.Reset()
	require.NoError(t, r.Encode(&buf, FormatYAML))
	var fromYAML Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, r.Conflicts, fromYAML.Conflicts)

	assert.Error(t, r.Encode(&buf, "toml"))
}
