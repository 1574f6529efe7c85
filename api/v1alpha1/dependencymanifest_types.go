package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DependencyManifest is a project's resolved dependency set together with the repositories it may use.
// The controller writes the package → repository assignment into its status.
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,shortName=depman
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Strict",type=boolean,JSONPath=`.spec.strict`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`
type DependencyManifest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DependencyManifestSpec   `json:"spec"`
	Status DependencyManifestStatus `json:"status,omitempty"`
}

type DependencyManifestSpec struct {
	// Repositories lists PackageRepositories in configuration order.
	Repositories []ObjectRef       `json:"repositories"`
	Requirements []RequirementSpec `json:"requirements"`
	// Strict makes source ambiguity fatal instead of a warning.
	Strict bool `json:"strict,omitempty"`
}

// RequirementSpec is a top-level dependency after version selection.
type RequirementSpec struct {
	Name string `json:"name"`
	// Version is the selected version ("3.0.9") or a constraint ("~3.0") narrowed against the
	// bound repository's index.
	Version string `json:"version,omitempty"`
	// Source pins the requirement to a repository by name.
	Source string `json:"source,omitempty"`
	// PreferredIndex is the alias of the index repository sub-dependencies should come from.
	PreferredIndex string   `json:"preferredIndex,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
}

type DependencyManifestStatus struct {
	ObservedGeneration int64              `json:"observedGeneration,omitempty"`
	Phase              string             `json:"phase,omitempty"`
	Message            string             `json:"message,omitempty"`
	InputHash          string             `json:"inputHash,omitempty"`
	Assignments        []SourceAssignment `json:"assignments,omitempty"`
	Conflicts          []SourceConflict   `json:"conflicts,omitempty"`
	Unresolved         []string           `json:"unresolved,omitempty"`
	LastResolvedTime   *metav1.Time       `json:"lastResolvedTime,omitempty"`
	Conditions         []metav1.Condition `json:"conditions,omitempty"`
}

// SourceAssignment binds a package to the repository it must be fetched from.
type SourceAssignment struct {
	Package    string `json:"package"`
	Repository string `json:"repository"`
	Direct     bool   `json:"direct,omitempty"`
	Version    string `json:"version,omitempty"`
}

// SourceConflict is a package offered by several repositories.
type SourceConflict struct {
	Package      string   `json:"package"`
	Repositories []string `json:"repositories"`
	Fatal        bool     `json:"fatal,omitempty"`
}

// +kubebuilder:object:root=true
type DependencyManifestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []DependencyManifest `json:"items"`
}

func init() {
	SchemeBuilder.Register(&DependencyManifest{}, &DependencyManifestList{})
}
