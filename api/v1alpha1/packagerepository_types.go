package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PackageRepository describes a source of packages and the index of package names it can supply.
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,shortName=pkgrepo
// +kubebuilder:printcolumn:name="Role",type=string,JSONPath=`.spec.role`
// +kubebuilder:printcolumn:name="URL",type=string,JSONPath=`.spec.url`
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`
type PackageRepository struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   PackageRepositorySpec   `json:"spec"`
	Status PackageRepositoryStatus `json:"status,omitempty"`
}

type PackageRepositorySpec struct {
	// +kubebuilder:validation:Enum=default;explicit;index
	Role RepositoryRole `json:"role"`
	// Alias addresses an index repository from a requirement's preferredIndex.
	// Defaults to the repository name.
	Alias string `json:"alias,omitempty"`
	URL   string `json:"url,omitempty"`
	// Order ranks explicit repositories; lower values are scanned first.
	Order    int32          `json:"order,omitempty"`
	Packages []PackageEntry `json:"packages,omitempty"`
}

// PackageEntry is one package of a repository index.
type PackageEntry struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions,omitempty"`
}

type PackageRepositoryStatus struct {
	ObservedGeneration int64  `json:"observedGeneration,omitempty"`
	Phase              string `json:"phase,omitempty"`
	Message            string `json:"message,omitempty"`
	// RequestedPackages are the names asked of this repository by the last resolution that used it.
	RequestedPackages []string `json:"requestedPackages,omitempty"`
	// UnmetPackages are requested names this repository cannot supply.
	UnmetPackages []string           `json:"unmetPackages,omitempty"`
	Conditions    []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
type PackageRepositoryList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []PackageRepository `json:"items"`
}

func init() {
	SchemeBuilder.Register(&PackageRepository{}, &PackageRepositoryList{})
}
