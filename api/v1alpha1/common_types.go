package v1alpha1

// RepositoryRole says how a PackageRepository takes part in source resolution.
type RepositoryRole string

const (
	// RepositoryRoleDefault is the fallback repository. Exactly one per manifest.
	RepositoryRoleDefault RepositoryRole = "default"
	// RepositoryRoleExplicit is a repository requirements may pin to.
	RepositoryRoleExplicit RepositoryRole = "explicit"
	// RepositoryRoleIndex is addressable by alias from a requirement's preferredIndex.
	RepositoryRoleIndex RepositoryRole = "index"
)

const (
	PhaseResolved  = "Resolved"
	PhaseAmbiguous = "Ambiguous"
	PhaseError     = "Error"
	PhaseReady     = "Ready"
)

type ObjectRef struct {
	Name string `json:"name"`
}
