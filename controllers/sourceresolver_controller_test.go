package controllers

import (
	"context"
	"strings"
	"sync"
	"testing"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/anvil-platform/sourcemap/api/v1alpha1"
	"github.com/anvil-platform/sourcemap/internal/resolver"
)

const testNamespace = "shop"

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subjects)
}

func newTestScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := v1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("AddToScheme: %v", err)
	}
	return scheme
}

func packageRepository(name string, role v1alpha1.RepositoryRole, order int32, alias string, packages ...string) *v1alpha1.PackageRepository {
	entries := make([]v1alpha1.PackageEntry, 0, len(packages))
	for _, p := range packages {
		entries = append(entries, v1alpha1.PackageEntry{Name: p})
	}
	return &v1alpha1.PackageRepository{
		TypeMeta:   metav1.TypeMeta{APIVersion: v1alpha1.GroupVersion.String(), Kind: "PackageRepository"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
		Spec:       v1alpha1.PackageRepositorySpec{Role: role, Order: order, Alias: alias, Packages: entries},
	}
}

func shopRepositories() []client.Object {
	return []client.Object{
		packageRepository("rubygems", v1alpha1.RepositoryRoleDefault, 0, "", "rack", "json"),
		packageRepository("acme", v1alpha1.RepositoryRoleExplicit, 1, "", "acme-auth", "acme-client", "jwt"),
		packageRepository("contrib", v1alpha1.RepositoryRoleExplicit, 2, "", "contrib-metrics", "jwt", "faraday"),
		packageRepository("vetted", v1alpha1.RepositoryRoleIndex, 0, "vetted-mirror", "faraday"),
	}
}

func shopManifest(strict bool) *v1alpha1.DependencyManifest {
	return &v1alpha1.DependencyManifest{
		TypeMeta:   metav1.TypeMeta{APIVersion: v1alpha1.GroupVersion.String(), Kind: "DependencyManifest"},
		ObjectMeta: metav1.ObjectMeta{Name: "storefront", Namespace: testNamespace, Generation: 1},
		Spec: v1alpha1.DependencyManifestSpec{
			Repositories: []v1alpha1.ObjectRef{{Name: "rubygems"}, {Name: "acme"}, {Name: "contrib"}, {Name: "vetted"}},
			Requirements: []v1alpha1.RequirementSpec{
				{Name: "acme-auth", Source: "acme", Dependencies: []string{"jwt", "json"}},
				{Name: "contrib-metrics", Source: "contrib", PreferredIndex: "vetted-mirror", Dependencies: []string{"faraday"}},
				{Name: "rack"},
			},
			Strict: strict,
		},
	}
}

func newReconciler(t *testing.T, objs ...client.Object) (*SourceResolverReconciler, client.Client, *record.FakeRecorder, *recordingPublisher) {
	t.Helper()
	scheme := newTestScheme(t)
	cl := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objs...).
		WithStatusSubresource(&v1alpha1.DependencyManifest{}, &v1alpha1.PackageRepository{}).
		WithIndex(&v1alpha1.DependencyManifest{}, indexManifestRepositories, manifestRepositoryNames).
		Build()
	recorder := record.NewFakeRecorder(32)
	pub := &recordingPublisher{}
	r := &SourceResolverReconciler{
		Client:    cl,
		Scheme:    scheme,
		Resolver:  resolver.NewDefault(),
		Recorder:  recorder,
		Publisher: pub,
	}
	return r, cl, recorder, pub
}

func reconcileManifest(t *testing.T, r *SourceResolverReconciler) {
	t.Helper()
	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: testNamespace, Name: "storefront"}}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
}

func getManifest(t *testing.T, cl client.Client) v1alpha1.DependencyManifest {
	t.Helper()
	var m v1alpha1.DependencyManifest
	if err := cl.Get(context.Background(), types.NamespacedName{Namespace: testNamespace, Name: "storefront"}, &m); err != nil {
		t.Fatalf("get manifest: %v", err)
	}
	return m
}

func drainEvents(recorder *record.FakeRecorder) []string {
	var out []string
	for {
		select {
		case e := <-recorder.Events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func hasEvent(events []string, prefix string) bool {
	for _, e := range events {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

func TestSourceResolverReconcile_ResolvesManifest(t *testing.T) {
	objs := append(shopRepositories(), shopManifest(false))
	r, cl, recorder, pub := newReconciler(t, objs...)

	reconcileManifest(t, r)

	m := getManifest(t, cl)
	if m.Status.Phase != v1alpha1.PhaseResolved {
		t.Fatalf("expected phase %q, got %q (%s)", v1alpha1.PhaseResolved, m.Status.Phase, m.Status.Message)
	}
	if m.Status.InputHash == "" || m.Status.ObservedGeneration != 1 || m.Status.LastResolvedTime == nil {
		t.Fatalf("expected hash, generation and time to be recorded: %+v", m.Status)
	}

	want := map[string]string{
		"acme-auth":       "acme",
		"acme-client":     "acme",
		"contrib-metrics": "contrib",
		"faraday":         "vetted",
		"json":            "rubygems",
		"jwt":             "acme",
		"rack":            "rubygems",
	}
	if len(m.Status.Assignments) != len(want) {
		t.Fatalf("expected %d assignments, got %+v", len(want), m.Status.Assignments)
	}
	for _, a := range m.Status.Assignments {
		if want[a.Package] != a.Repository {
			t.Fatalf("package %s: expected %s, got %s", a.Package, want[a.Package], a.Repository)
		}
	}

	if len(m.Status.Conflicts) != 1 || m.Status.Conflicts[0].Package != "jwt" || m.Status.Conflicts[0].Fatal {
		t.Fatalf("expected one relaxed jwt conflict, got %+v", m.Status.Conflicts)
	}
	cond := meta.FindStatusCondition(m.Status.Conditions, ManifestConditionSourcesResolved)
	if cond == nil || cond.Status != metav1.ConditionTrue || cond.Reason != "ResolvedWithWarnings" {
		t.Fatalf("unexpected SourcesResolved condition: %+v", cond)
	}

	var acme v1alpha1.PackageRepository
	if err := cl.Get(context.Background(), types.NamespacedName{Namespace: testNamespace, Name: "acme"}, &acme); err != nil {
		t.Fatalf("get repository: %v", err)
	}
	if acme.Status.Phase != v1alpha1.PhaseReady {
		t.Fatalf("expected repository phase Ready, got %q", acme.Status.Phase)
	}
	if strings.Join(acme.Status.UnmetPackages, ",") != "json" {
		t.Fatalf("expected json to be unmet by acme, got %v", acme.Status.UnmetPackages)
	}

	events := drainEvents(recorder)
	if !hasEvent(events, "Warning SourceAmbiguity") {
		t.Fatalf("expected a SourceAmbiguity warning, got %v", events)
	}
	if !hasEvent(events, "Normal SourcesResolved") {
		t.Fatalf("expected a SourcesResolved event, got %v", events)
	}
	if pub.count() != 1 || pub.subjects[0] != "sourcemap.reports.shop.storefront" {
		t.Fatalf("expected one published report, got %v", pub.subjects)
	}
}

func TestSourceResolverReconcile_WithoutPublisher(t *testing.T) {
	objs := append(shopRepositories(), shopManifest(false))
	r, cl, recorder, _ := newReconciler(t, objs...)
	r.Publisher = nil

	reconcileManifest(t, r)

	if m := getManifest(t, cl); m.Status.Phase != v1alpha1.PhaseResolved {
		t.Fatalf("expected phase %q, got %q (%s)", v1alpha1.PhaseResolved, m.Status.Phase, m.Status.Message)
	}
	if events := drainEvents(recorder); hasEvent(events, "Warning PublishFailed") {
		t.Fatalf("expected no publish attempt, got %v", events)
	}
}

func TestSourceResolverReconcile_SkipsUnchangedInputs(t *testing.T) {
	objs := append(shopRepositories(), shopManifest(false))
	r, cl, _, pub := newReconciler(t, objs...)

	reconcileManifest(t, r)
	first := getManifest(t, cl)
	reconcileManifest(t, r)
	second := getManifest(t, cl)

	if pub.count() != 1 {
		t.Fatalf("expected the second reconcile to skip, got %d publishes", pub.count())
	}
	if !first.Status.LastResolvedTime.Equal(second.Status.LastResolvedTime) {
		t.Fatalf("expected status to be untouched by the skipped reconcile")
	}

	// A repository spec change alters the input hash.
	var contrib v1alpha1.PackageRepository
	if err := cl.Get(context.Background(), types.NamespacedName{Namespace: testNamespace, Name: "contrib"}, &contrib); err != nil {
		t.Fatalf("get repository: %v", err)
	}
	contrib.Spec.Packages = contrib.Spec.Packages[:1]
	if err := cl.Update(context.Background(), &contrib); err != nil {
		t.Fatalf("update repository: %v", err)
	}
	reconcileManifest(t, r)

	m := getManifest(t, cl)
	if pub.count() != 2 {
		t.Fatalf("expected a new resolution after the repository changed, got %d publishes", pub.count())
	}
	if len(m.Status.Conflicts) != 0 {
		t.Fatalf("expected the jwt conflict to disappear, got %+v", m.Status.Conflicts)
	}
}

func TestSourceResolverReconcile_StrictAmbiguity(t *testing.T) {
	objs := append(shopRepositories(), shopManifest(true))
	r, cl, recorder, pub := newReconciler(t, objs...)

	reconcileManifest(t, r)

	m := getManifest(t, cl)
	if m.Status.Phase != v1alpha1.PhaseAmbiguous {
		t.Fatalf("expected phase %q, got %q", v1alpha1.PhaseAmbiguous, m.Status.Phase)
	}
	if len(m.Status.Conflicts) != 1 || !m.Status.Conflicts[0].Fatal {
		t.Fatalf("expected one fatal conflict, got %+v", m.Status.Conflicts)
	}
	if len(m.Status.Assignments) != 0 {
		t.Fatalf("expected no assignments, got %+v", m.Status.Assignments)
	}
	cond := meta.FindStatusCondition(m.Status.Conditions, ManifestConditionSourcesResolved)
	if cond == nil || cond.Status != metav1.ConditionFalse || cond.Reason != "SourceAmbiguity" {
		t.Fatalf("unexpected SourcesResolved condition: %+v", cond)
	}
	if !hasEvent(drainEvents(recorder), "Warning SourceAmbiguity") {
		t.Fatalf("expected a SourceAmbiguity warning")
	}
	if pub.count() != 1 {
		t.Fatalf("expected the ambiguity to be published")
	}
}

func TestSourceResolverReconcile_MissingRepository(t *testing.T) {
	objs := append(shopRepositories()[:2], shopManifest(false))
	r, cl, recorder, pub := newReconciler(t, objs...)

	reconcileManifest(t, r)

	m := getManifest(t, cl)
	if m.Status.Phase != v1alpha1.PhaseError {
		t.Fatalf("expected phase %q, got %q", v1alpha1.PhaseError, m.Status.Phase)
	}
	if !strings.Contains(m.Status.Message, "contrib, vetted") {
		t.Fatalf("expected missing repositories in message, got %q", m.Status.Message)
	}
	cond := meta.FindStatusCondition(m.Status.Conditions, ManifestConditionRepositoriesLoaded)
	if cond == nil || cond.Status != metav1.ConditionFalse {
		t.Fatalf("unexpected RepositoriesLoaded condition: %+v", cond)
	}
	if !hasEvent(drainEvents(recorder), "Warning RepositoryNotFound") {
		t.Fatalf("expected a RepositoryNotFound warning")
	}
	if pub.count() != 0 {
		t.Fatalf("expected nothing to be published")
	}
}

func TestSourceResolverReconcile_UnknownPreferredIndex(t *testing.T) {
	m := shopManifest(false)
	m.Spec.Requirements[1].PreferredIndex = "nowhere"
	objs := append(shopRepositories(), m)
	r, cl, recorder, _ := newReconciler(t, objs...)

	reconcileManifest(t, r)

	got := getManifest(t, cl)
	if got.Status.Phase != v1alpha1.PhaseError {
		t.Fatalf("expected phase %q, got %q", v1alpha1.PhaseError, got.Status.Phase)
	}
	cond := meta.FindStatusCondition(got.Status.Conditions, ManifestConditionSourcesResolved)
	if cond == nil || cond.Reason != "ConfigurationError" {
		t.Fatalf("unexpected SourcesResolved condition: %+v", cond)
	}
	if !hasEvent(drainEvents(recorder), "Warning ConfigurationError") {
		t.Fatalf("expected a ConfigurationError warning")
	}
}

func TestSourceResolverReconcile_InvalidConfiguration(t *testing.T) {
	m := shopManifest(false)
	m.Spec.Repositories = []v1alpha1.ObjectRef{{Name: "acme"}}
	objs := append(shopRepositories(), m)
	r, cl, _, _ := newReconciler(t, objs...)

	reconcileManifest(t, r)

	got := getManifest(t, cl)
	if got.Status.Phase != v1alpha1.PhaseError || !strings.HasPrefix(got.Status.Message, "InvalidConfiguration") {
		t.Fatalf("expected an invalid configuration error, got %q: %q", got.Status.Phase, got.Status.Message)
	}
}

func TestSourceResolverReconcile_NotFoundIsIgnored(t *testing.T) {
	r, _, _, _ := newReconciler(t)
	reconcileManifest(t, r)
}

func TestManifestsForRepository(t *testing.T) {
	other := shopManifest(false)
	other.Name = "unrelated"
	other.Spec.Repositories = []v1alpha1.ObjectRef{{Name: "rubygems"}}
	objs := append(shopRepositories(), shopManifest(false), other)
	_, cl, _, _ := newReconciler(t, objs...)

	reqs := manifestsForRepository(context.Background(), cl, packageRepository("acme", v1alpha1.RepositoryRoleExplicit, 1, ""))
	if len(reqs) != 1 || reqs[0].Name != "storefront" {
		t.Fatalf("expected only storefront to be enqueued, got %v", reqs)
	}

	reqs = manifestsForRepository(context.Background(), cl, packageRepository("rubygems", v1alpha1.RepositoryRoleDefault, 0, ""))
	if len(reqs) != 2 {
		t.Fatalf("expected both manifests to be enqueued, got %v", reqs)
	}

	if reqs := manifestsForRepository(context.Background(), cl, shopManifest(false)); reqs != nil {
		t.Fatalf("expected non-repository objects to be ignored, got %v", reqs)
	}
}

func TestBoundedList(t *testing.T) {
	if got := boundedList([]string{"a", "b"}, 4); got != "a, b" {
		t.Fatalf("unexpected list: %q", got)
	}
	if got := boundedList([]string{"a", "b", "c"}, 2); got != "a, b and 1 more" {
		t.Fatalf("unexpected list: %q", got)
	}
}
