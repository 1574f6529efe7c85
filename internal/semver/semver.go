package semver

import (
	"fmt"
	"sort"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a semantic version.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3.
type Version struct {
	v *mm.Version
}

// Constraint is a semantic version constraint.
//
// Examples:
// - ">=1.2.0 <2.0.0"
// - "^1.0.0"
// - "~1.4"
type Constraint struct {
	c *mm.Constraints
}

// ParseVersion parses a single version. It is lenient: "1.4" and "v1.4.0" are accepted.
func ParseVersion(raw string) (Version, error) {
	v, err := mm.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

// ParseConstraint parses a constraint. A bare version is an exact-match constraint.
func ParseConstraint(raw string) (Constraint, error) {
	c, err := mm.NewConstraint(raw)
	if err != nil {
		return Constraint{}, fmt.Errorf("semver: parse constraint %q: %w", raw, err)
	}
	return Constraint{c: c}, nil
}

// Satisfies reports whether v meets c. Zero values never match.
func Satisfies(v Version, c Constraint) bool {
	if v.v == nil || c.c == nil {
		return false
	}
	return c.c.Check(v.v)
}

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
func Compare(a, b Version) int {
	if a.v == nil && b.v == nil {
		return 0
	}
	if a.v == nil {
		return -1
	}
	if b.v == nil {
		return 1
	}
	return a.v.Compare(b.v)
}

// MaxSatisfying returns the highest version in candidates that satisfies c.
//
// If multiple versions are equal, the first encountered wins.
func MaxSatisfying(c Constraint, candidates []Version) (Version, bool) {
	var best Version
	found := false
	for _, candidate := range candidates {
		if !Satisfies(candidate, c) {
			continue
		}
		if !found || Compare(candidate, best) > 0 {
			best = candidate
			found = true
		}
	}
	return best, found
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// Equal reports whether a and b are the same version (build metadata ignored).
func Equal(a, b Version) bool {
	return a.v != nil && b.v != nil && Compare(a, b) == 0
}

// SortDescending orders versions newest first.
func SortDescending(versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		return Compare(versions[i], versions[j]) > 0
	})
}

// Requirement is what a requirement's version field asks for: an exact version or a constraint.
type Requirement struct {
	exact   Version
	isExact bool
	c       Constraint
}

// ParseRequirement accepts either a version ("3.0.9") or a constraint ("~3.0", ">=1.2 <2").
func ParseRequirement(raw string) (Requirement, error) {
	if v, err := ParseVersion(raw); err == nil {
		return Requirement{exact: v, isExact: true}, nil
	}
	c, err := ParseConstraint(raw)
	if err != nil {
		return Requirement{}, err
	}
	return Requirement{c: c}, nil
}

// IsExact reports whether the requirement names a single version.
func (r Requirement) IsExact() bool {
	return r.isExact
}

// Select picks the version to use from the listed ones. An exact requirement must be listed; a
// constraint picks the highest listed version that satisfies it.
func (r Requirement) Select(listed []Version) (Version, bool) {
	if r.isExact {
		for _, v := range listed {
			if Equal(r.exact, v) {
				return v, true
			}
		}
		return Version{}, false
	}
	return MaxSatisfying(r.c, listed)
}
