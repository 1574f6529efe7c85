package controllers

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	sourcemapv1alpha1 "github.com/anvil-platform/sourcemap/api/v1alpha1"
	"github.com/anvil-platform/sourcemap/internal/manifest"
	"github.com/anvil-platform/sourcemap/internal/publish"
	"github.com/anvil-platform/sourcemap/internal/report"
	"github.com/anvil-platform/sourcemap/internal/resolver"
)

const (
	sourceResolverName = "SourceResolver"

	// indexManifestRepositories indexes DependencyManifests by the PackageRepositories they reference.
	indexManifestRepositories = ".spec.repositories[*].name"
)

// SourceResolverReconciler resolves DependencyManifests into package → repository assignments.
//
// RBAC:
// +kubebuilder:rbac:groups=sourcemap.anvil.dev,resources=dependencymanifests,verbs=get;list;watch
// +kubebuilder:rbac:groups=sourcemap.anvil.dev,resources=dependencymanifests/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=sourcemap.anvil.dev,resources=packagerepositories,verbs=get;list;watch
// +kubebuilder:rbac:groups=sourcemap.anvil.dev,resources=packagerepositories/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch;update
type SourceResolverReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Resolver resolver.Resolver
	Recorder record.EventRecorder
	// Publisher receives a report after every resolution. Optional.
	Publisher publish.Publisher
}

func (r *SourceResolverReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	sourcemapControllerReconcileTotal.WithLabelValues(sourceResolverName).Inc()

	logger := log.FromContext(ctx).WithValues(
		"controller", sourceResolverName,
		"namespace", req.Namespace,
		"manifest", req.Name,
	)

	// 1) Load DependencyManifest
	var m sourcemapv1alpha1.DependencyManifest
	if err := r.Get(ctx, req.NamespacedName, &m); err != nil {
		if client.IgnoreNotFound(err) == nil {
			return ctrl.Result{}, nil
		}
		sourcemapControllerReconcileErrorTotal.WithLabelValues(sourceResolverName).Inc()
		return ctrl.Result{}, err
	}

	if r.Resolver == nil {
		r.Resolver = resolver.NewDefault()
	}

	// 2) Load referenced PackageRepositories in configuration order
	repos := make([]sourcemapv1alpha1.PackageRepository, 0, len(m.Spec.Repositories))
	missing := make([]string, 0)
	for _, ref := range m.Spec.Repositories {
		var repo sourcemapv1alpha1.PackageRepository
		if err := r.Get(ctx, types.NamespacedName{Namespace: req.Namespace, Name: ref.Name}, &repo); err != nil {
			if apierrors.IsNotFound(err) {
				missing = append(missing, ref.Name)
				continue
			}
			logger.Error(err, "failed to load packagerepository", "packageRepository", ref.Name)
			sourcemapControllerReconcileErrorTotal.WithLabelValues(sourceResolverName).Inc()
			return ctrl.Result{}, err
		}
		repos = append(repos, repo)
	}
	if len(missing) > 0 {
		msg := fmt.Sprintf("PackageRepository not found: %s", boundedList(missing, 4))
		if perr := r.patchManifestStatus(ctx, &m, "", sourcemapv1alpha1.PhaseError, msg, nil,
			metav1.Condition{
				Type:    ManifestConditionRepositoriesLoaded,
				Status:  metav1.ConditionFalse,
				Reason:  "RepositoryNotFound",
				Message: msg,
			},
			sourcesNotResolved("RepositoriesNotReady", "Cannot resolve sources until every repository is loaded"),
		); perr != nil {
			logger.Error(perr, "failed to patch manifest status")
		}
		logger.Info("referenced repositories missing; marking manifest error", "missingRepositories", missing)
		r.recordEventf(&m, corev1.EventTypeWarning, "RepositoryNotFound", "%s", msg)
		return ctrl.Result{}, nil
	}

	// 3) Skip when nothing changed since the last resolution
	doc := manifest.FromCluster(&m, repos)
	inputHash, err := doc.Hash()
	if err != nil {
		sourcemapControllerReconcileErrorTotal.WithLabelValues(sourceResolverName).Inc()
		return ctrl.Result{}, err
	}
	if m.Status.Phase != "" && m.Status.InputHash == inputHash && m.Status.ObservedGeneration == m.Generation {
		sourceResolverSkippedTotal.Inc()
		logger.V(1).Info("inputs unchanged; skipping resolution", "inputHash", inputHash)
		return ctrl.Result{}, nil
	}

	// 4) Build resolver input
	in, err := doc.Build()
	if err != nil {
		msg := fmt.Sprintf("InvalidConfiguration: %v", err)
		if perr := r.patchManifestStatus(ctx, &m, inputHash, sourcemapv1alpha1.PhaseError, msg, nil,
			repositoriesLoaded(),
			sourcesNotResolved("InvalidConfiguration", msg),
		); perr != nil {
			logger.Error(perr, "failed to patch manifest status")
		}
		logger.Info("invalid source configuration; marking manifest error")
		r.recordEventf(&m, corev1.EventTypeWarning, "InvalidConfiguration", "%s", msg)
		return ctrl.Result{}, nil
	}

	// 5) Resolve sources
	result, err := r.Resolver.Resolve(ctx, in)
	if err != nil {
		var ambiguity *resolver.SourceAmbiguityError
		switch {
		case errors.As(err, &ambiguity):
			sourceResolverConflictsTotal.WithLabelValues(string(resolver.ModeStrict)).Inc()
			rep := report.Report{
				Mode: resolver.ModeStrict,
				Conflicts: []report.Conflict{{
					Package:      ambiguity.Conflict.Name,
					Repositories: ambiguity.Conflict.Repositories,
					Fatal:        true,
					Message:      ambiguity.Error(),
				}},
			}
			msg := fmt.Sprintf("SourceAmbiguity: package %q is offered by %s", ambiguity.Conflict.Name, boundedList(ambiguity.Conflict.Repositories, 4))
			if perr := r.patchManifestStatus(ctx, &m, inputHash, sourcemapv1alpha1.PhaseAmbiguous, msg, &rep,
				repositoriesLoaded(),
				sourcesNotResolved("SourceAmbiguity", ambiguity.Error()),
			); perr != nil {
				logger.Error(perr, "failed to patch manifest status")
			}
			logger.Info("source ambiguity in strict mode; marking manifest ambiguous", "package", ambiguity.Conflict.Name)
			r.recordEventf(&m, corev1.EventTypeWarning, "SourceAmbiguity", "%s", ambiguity.Error())
			r.publishReport(ctx, &m, sourcemapv1alpha1.PhaseAmbiguous, rep)
			return ctrl.Result{}, nil
		case errors.Is(err, resolver.ErrConfiguration):
			msg := fmt.Sprintf("ConfigurationError: %v", err)
			if perr := r.patchManifestStatus(ctx, &m, inputHash, sourcemapv1alpha1.PhaseError, msg, nil,
				repositoriesLoaded(),
				sourcesNotResolved("ConfigurationError", msg),
			); perr != nil {
				logger.Error(perr, "failed to patch manifest status")
			}
			logger.Info("resolver rejected configuration; marking manifest error")
			r.recordEventf(&m, corev1.EventTypeWarning, "ConfigurationError", "%s", msg)
			return ctrl.Result{}, nil
		default:
			logger.Error(err, "failed to resolve sources")
			r.recordEventf(&m, corev1.EventTypeWarning, "ResolveFailed", "Failed to resolve sources: %v", err)
			sourcemapControllerReconcileErrorTotal.WithLabelValues(sourceResolverName).Inc()
			return ctrl.Result{}, err
		}
	}

	rep := report.Build(doc, in, result)
	sourceResolverAssignments.Set(float64(len(rep.Assignments)))
	sourceResolverUnresolved.Set(float64(len(rep.Unresolved)))
	if n := len(rep.Conflicts); n > 0 {
		sourceResolverConflictsTotal.WithLabelValues(string(rep.Mode)).Add(float64(n))
	}
	logger.Info(
		"resolved sources",
		"repositoryCount", len(repos),
		"assignmentCount", len(rep.Assignments),
		"indirectCount", len(result.Indirect),
		"leftoverCount", len(result.Leftover),
		"conflictCount", len(rep.Conflicts),
	)

	// 6) Surface per-repository demand
	byName := make(map[string]*sourcemapv1alpha1.PackageRepository, len(repos))
	for i := range repos {
		byName[repos[i].Name] = &repos[i]
	}
	for _, usage := range rep.Repositories {
		repo, ok := byName[usage.Name]
		if !ok {
			continue
		}
		if err := r.patchRepositoryStatus(ctx, repo, m.Name, usage); err != nil {
			logger.Error(err, "failed to patch packagerepository status", "packageRepository", repo.Name)
			sourcemapControllerReconcileErrorTotal.WithLabelValues(sourceResolverName).Inc()
			return ctrl.Result{}, err
		}
	}

	// 7) Surface the assignment in DependencyManifest.status
	for _, c := range rep.Conflicts {
		r.recordEventf(&m, corev1.EventTypeWarning, "SourceAmbiguity", "%s", c.Message)
	}
	reason := "Resolved"
	if len(rep.Conflicts) > 0 {
		reason = "ResolvedWithWarnings"
	}
	prevPhase := m.Status.Phase
	message := rep.Summary()
	if perr := r.patchManifestStatus(ctx, &m, inputHash, sourcemapv1alpha1.PhaseResolved, message, &rep,
		repositoriesLoaded(),
		metav1.Condition{
			Type:    ManifestConditionSourcesResolved,
			Status:  metav1.ConditionTrue,
			Reason:  reason,
			Message: message,
		},
	); perr != nil {
		logger.Error(perr, "failed to patch manifest status")
		sourcemapControllerReconcileErrorTotal.WithLabelValues(sourceResolverName).Inc()
		return ctrl.Result{}, perr
	}
	logger.Info("manifest resolved", "phase", sourcemapv1alpha1.PhaseResolved)
	if prevPhase != sourcemapv1alpha1.PhaseResolved {
		r.recordEventf(&m, corev1.EventTypeNormal, "SourcesResolved", "%s", message)
	}

	// 8) Stream the report
	r.publishReport(ctx, &m, sourcemapv1alpha1.PhaseResolved, rep)

	return ctrl.Result{}, nil
}

func (r *SourceResolverReconciler) recordEventf(obj client.Object, eventType, reason, messageFmt string, args ...any) {
	if r.Recorder == nil || obj == nil {
		return
	}
	r.Recorder.Eventf(obj, eventType, reason, messageFmt, args...)
}

func (r *SourceResolverReconciler) publishReport(ctx context.Context, m *sourcemapv1alpha1.DependencyManifest, phase string, rep report.Report) {
	if r.Publisher == nil {
		return
	}
	env := publish.NewEnvelope(m.Namespace, m.Name, m.Generation, phase, rep)
	if err := publish.PublishReport(ctx, r.Publisher, env); err != nil {
		log.FromContext(ctx).Error(err, "failed to publish report", "subject", publish.Subject(m.Namespace, m.Name))
		sourceResolverReportsPublishedTotal.WithLabelValues("error").Inc()
		r.recordEventf(m, corev1.EventTypeWarning, "PublishFailed", "Failed to publish report: %v", err)
		return
	}
	sourceResolverReportsPublishedTotal.WithLabelValues("ok").Inc()
}

func (r *SourceResolverReconciler) patchManifestStatus(
	ctx context.Context,
	m *sourcemapv1alpha1.DependencyManifest,
	inputHash, phase, message string,
	rep *report.Report,
	conds ...metav1.Condition,
) error {
	before := m.DeepCopy()
	m.Status.ObservedGeneration = m.Generation
	m.Status.Phase = phase
	m.Status.Message = message
	m.Status.InputHash = inputHash
	m.Status.Assignments = nil
	m.Status.Conflicts = nil
	m.Status.Unresolved = nil
	if rep != nil {
		m.Status.Assignments, m.Status.Conflicts = rep.Status()
		m.Status.Unresolved = append([]string(nil), rep.Unresolved...)
		now := metav1.Now()
		m.Status.LastResolvedTime = &now
	}
	for _, c := range conds {
		setManifestCondition(m, c)
	}
	return r.Status().Patch(ctx, m, client.MergeFrom(before))
}

func (r *SourceResolverReconciler) patchRepositoryStatus(
	ctx context.Context,
	repo *sourcemapv1alpha1.PackageRepository,
	manifestName string,
	usage report.RepositoryUsage,
) error {
	before := repo.DeepCopy()
	repo.Status.ObservedGeneration = repo.Generation
	repo.Status.Phase = sourcemapv1alpha1.PhaseReady
	repo.Status.Message = fmt.Sprintf("Last used by DependencyManifest %q", manifestName)
	repo.Status.RequestedPackages = usage.Requested
	repo.Status.UnmetPackages = usage.Unmet
	setRepositoryCondition(repo, metav1.Condition{
		Type:    RepositoryConditionReady,
		Status:  metav1.ConditionTrue,
		Reason:  "Indexed",
		Message: fmt.Sprintf("%d packages indexed", len(repo.Spec.Packages)),
	})
	return r.Status().Patch(ctx, repo, client.MergeFrom(before))
}

func (r *SourceResolverReconciler) SetupWithManager(mgr ctrl.Manager) error {
	if err := mgr.GetFieldIndexer().IndexField(context.Background(), &sourcemapv1alpha1.DependencyManifest{}, indexManifestRepositories, manifestRepositoryNames); err != nil {
		return err
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&sourcemapv1alpha1.DependencyManifest{}).
		// Repository status is written by this controller; only spec changes matter.
		Watches(
			&sourcemapv1alpha1.PackageRepository{},
			enqueueManifestsForRepository(mgr.GetClient()),
			builder.WithPredicates(predicate.GenerationChangedPredicate{}),
		).
		Complete(r)
}

func manifestRepositoryNames(obj client.Object) []string {
	m, ok := obj.(*sourcemapv1alpha1.DependencyManifest)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m.Spec.Repositories))
	for _, ref := range m.Spec.Repositories {
		if ref.Name != "" {
			out = append(out, ref.Name)
		}
	}
	return out
}

// enqueueManifestsForRepository returns an event handler that enqueues DependencyManifests referencing a PackageRepository.
func enqueueManifestsForRepository(c client.Client) handler.EventHandler {
	return handler.EnqueueRequestsFromMapFunc(func(ctx context.Context, obj client.Object) []reconcile.Request {
		return manifestsForRepository(ctx, c, obj)
	})
}

func manifestsForRepository(ctx context.Context, c client.Client, obj client.Object) []reconcile.Request {
	repo, ok := obj.(*sourcemapv1alpha1.PackageRepository)
	if !ok {
		return nil
	}

	var manifests sourcemapv1alpha1.DependencyManifestList
	if err := c.List(ctx, &manifests,
		client.InNamespace(repo.Namespace),
		client.MatchingFields{indexManifestRepositories: repo.Name},
	); err != nil {
		log.FromContext(ctx).Error(err, "failed to list manifests for repository", "packageRepository", repo.Name)
		return nil
	}

	out := make([]reconcile.Request, 0, len(manifests.Items))
	for i := range manifests.Items {
		m := &manifests.Items[i]
		out = append(out, reconcile.Request{NamespacedName: types.NamespacedName{Namespace: m.Namespace, Name: m.Name}})
	}
	return out
}
