package controllers

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	sourcemapv1alpha1 "github.com/anvil-platform/sourcemap/api/v1alpha1"
)

const (
	ManifestConditionRepositoriesLoaded = "RepositoriesLoaded"
	ManifestConditionSourcesResolved    = "SourcesResolved"

	RepositoryConditionReady = "Ready"
)

func setManifestCondition(m *sourcemapv1alpha1.DependencyManifest, condition metav1.Condition) {
	if m == nil {
		return
	}
	condition.ObservedGeneration = m.Generation
	meta.SetStatusCondition(&m.Status.Conditions, condition)
}

func setRepositoryCondition(repo *sourcemapv1alpha1.PackageRepository, condition metav1.Condition) {
	if repo == nil {
		return
	}
	condition.ObservedGeneration = repo.Generation
	meta.SetStatusCondition(&repo.Status.Conditions, condition)
}

func repositoriesLoaded() metav1.Condition {
	return metav1.Condition{
		Type:    ManifestConditionRepositoriesLoaded,
		Status:  metav1.ConditionTrue,
		Reason:  "RepositoriesLoaded",
		Message: "All referenced repositories loaded",
	}
}

func sourcesNotResolved(reason, message string) metav1.Condition {
	return metav1.Condition{
		Type:    ManifestConditionSourcesResolved,
		Status:  metav1.ConditionFalse,
		Reason:  reason,
		Message: message,
	}
}

// boundedList joins names, keeping at most max of them.
func boundedList(names []string, max int) string {
	if len(names) <= max {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:max], ", "), len(names)-max)
}
