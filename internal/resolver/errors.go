package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrConfiguration marks errors caused by a repository configuration that cannot satisfy a requirement.
	ErrConfiguration = errors.New("source configuration error")
	// ErrSourceAmbiguity marks a package offered by more than one repository in strict mode.
	ErrSourceAmbiguity = errors.New("source ambiguity")
)

// Conflict is a package claimed by more than one repository with different bindings.
type Conflict struct {
	Name string
	// Repositories are the candidate repository names, sorted.
	Repositories []string
	// Fatal is true when the conflict aborted resolution.
	Fatal bool
}

func newConflict(name string, fatal bool, repos ...*Repository) Conflict {
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.Name())
	}
	sort.Strings(names)
	return Conflict{Name: name, Repositories: names, Fatal: fatal}
}

func (c Conflict) message(verb string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The package %q was found in multiple relevant sources.\n", c.Name)
	for _, r := range c.Repositories {
		fmt.Fprintf(&sb, "  * repository %s\n", r)
	}
	fmt.Fprintf(&sb, "You %s pin this package to the source you wish it to be installed from.", verb)
	return sb.String()
}

// Warning renders the relaxed-mode message.
func (c Conflict) Warning() string {
	return "Warning: " + c.message("should")
}

// ConfigurationError reports a preferred index alias that matches no index repository.
type ConfigurationError struct {
	Requirement string
	Alias       string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("requirement %q prefers index %q, but no index repository with that alias is configured", e.Requirement, e.Alias)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// SourceAmbiguityError is returned in strict mode for the first ambiguous package.
type SourceAmbiguityError struct {
	Conflict Conflict
}

func (e *SourceAmbiguityError) Error() string {
	return e.Conflict.message("must")
}

func (e *SourceAmbiguityError) Is(target error) bool {
	return target == ErrSourceAmbiguity
}
