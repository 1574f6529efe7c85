package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyConditions(in []metav1.Condition) []metav1.Condition {
	if in == nil {
		return nil
	}
	out := make([]metav1.Condition, len(in))
	for i := range in {
		in[i].DeepCopyInto(&out[i])
	}
	return out
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *PackageEntry) DeepCopyInto(out *PackageEntry) {
	*out = *in
	out.Versions = copyStrings(in.Versions)
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *PackageRepositorySpec) DeepCopyInto(out *PackageRepositorySpec) {
	*out = *in
	if in.Packages != nil {
		out.Packages = make([]PackageEntry, len(in.Packages))
		for i := range in.Packages {
			in.Packages[i].DeepCopyInto(&out.Packages[i])
		}
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *PackageRepositoryStatus) DeepCopyInto(out *PackageRepositoryStatus) {
	*out = *in
	out.RequestedPackages = copyStrings(in.RequestedPackages)
	out.UnmetPackages = copyStrings(in.UnmetPackages)
	out.Conditions = copyConditions(in.Conditions)
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *PackageRepository) DeepCopyInto(out *PackageRepository) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy copies the receiver, creating a new PackageRepository.
func (in *PackageRepository) DeepCopy() *PackageRepository {
	if in == nil {
		return nil
	}
	out := new(PackageRepository)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *PackageRepository) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *PackageRepositoryList) DeepCopyInto(out *PackageRepositoryList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]PackageRepository, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy copies the receiver, creating a new PackageRepositoryList.
func (in *PackageRepositoryList) DeepCopy() *PackageRepositoryList {
	if in == nil {
		return nil
	}
	out := new(PackageRepositoryList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *PackageRepositoryList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *RequirementSpec) DeepCopyInto(out *RequirementSpec) {
	*out = *in
	out.Dependencies = copyStrings(in.Dependencies)
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DependencyManifestSpec) DeepCopyInto(out *DependencyManifestSpec) {
	*out = *in
	if in.Repositories != nil {
		out.Repositories = make([]ObjectRef, len(in.Repositories))
		copy(out.Repositories, in.Repositories)
	}
	if in.Requirements != nil {
		out.Requirements = make([]RequirementSpec, len(in.Requirements))
		for i := range in.Requirements {
			in.Requirements[i].DeepCopyInto(&out.Requirements[i])
		}
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *SourceConflict) DeepCopyInto(out *SourceConflict) {
	*out = *in
	out.Repositories = copyStrings(in.Repositories)
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DependencyManifestStatus) DeepCopyInto(out *DependencyManifestStatus) {
	*out = *in
	if in.Assignments != nil {
		out.Assignments = make([]SourceAssignment, len(in.Assignments))
		copy(out.Assignments, in.Assignments)
	}
	if in.Conflicts != nil {
		out.Conflicts = make([]SourceConflict, len(in.Conflicts))
		for i := range in.Conflicts {
			in.Conflicts[i].DeepCopyInto(&out.Conflicts[i])
		}
	}
	out.Unresolved = copyStrings(in.Unresolved)
	if in.LastResolvedTime != nil {
		out.LastResolvedTime = in.LastResolvedTime.DeepCopy()
	}
	out.Conditions = copyConditions(in.Conditions)
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DependencyManifest) DeepCopyInto(out *DependencyManifest) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy copies the receiver, creating a new DependencyManifest.
func (in *DependencyManifest) DeepCopy() *DependencyManifest {
	if in == nil {
		return nil
	}
	out := new(DependencyManifest)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *DependencyManifest) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DependencyManifestList) DeepCopyInto(out *DependencyManifestList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]DependencyManifest, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy copies the receiver, creating a new DependencyManifestList.
func (in *DependencyManifestList) DeepCopy() *DependencyManifestList {
	if in == nil {
		return nil
	}
	out := new(DependencyManifestList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *DependencyManifestList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
