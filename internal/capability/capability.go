// Package capability defines the closed set of permissions a tool may
// require and the gate may grant. Permissions are flat: there is no
// hierarchy and no wildcard, only explicit membership in a grant set.
package capability

import (
	"fmt"
	"sort"
	"strings"
)

// Permission identifies one discrete capability a tool may require.
type Permission string

const (
	FilesystemRead  Permission = "filesystem-read"
	FilesystemWrite Permission = "filesystem-write"
	Shell           Permission = "shell"
	Network         Permission = "network"
)

// All returns every known permission, sorted by value.
func All() []Permission {
	return []Permission{FilesystemRead, FilesystemWrite, Network, Shell}
}

// Parse validates a permission string from the configuration boundary
// (CLI flags, config file). Unknown values are rejected immediately with
// an error listing the valid choices, rather than silently ignored.
func Parse(s string) (Permission, error) {
	switch p := Permission(strings.TrimSpace(s)); p {
	case FilesystemRead, FilesystemWrite, Shell, Network:
		return p, nil
	default:
		valid := make([]string, 0, len(All()))
		for _, v := range All() {
			valid = append(valid, string(v))
		}
		return "", fmt.Errorf("unknown permission %q (valid: %s)", s, strings.Join(valid, ", "))
	}
}

// ParseSet validates a list of permission strings and returns the
// corresponding Set. The first invalid value aborts parsing.
func ParseSet(values []string) (Set, error) {
	perms := make([]Permission, 0, len(values))
	for _, v := range values {
		p, err := Parse(v)
		if err != nil {
			return Set{}, err
		}
		perms = append(perms, p)
	}
	return NewSet(perms...), nil
}

// Set is an immutable collection of permissions. The zero value is the
// empty set. Construct with NewSet; a Set is never modified after that.
type Set struct {
	members map[Permission]bool
}

// NewSet builds a Set from the given permissions. Duplicates collapse.
func NewSet(perms ...Permission) Set {
	m := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		m[p] = true
	}
	return Set{members: m}
}

// Has reports whether p is a member of the set.
func (s Set) Has(p Permission) bool {
	return s.members[p]
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s.members)
}

// Missing returns the members of s absent from granted, sorted by value.
// An empty result means s is a subset of granted.
func (s Set) Missing(granted Set) []Permission {
	var missing []Permission
	for p := range s.members {
		if !granted.Has(p) {
			missing = append(missing, p)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// List returns the members sorted by value.
func (s Set) List() []Permission {
	out := make([]Permission, 0, len(s.members))
	for p := range s.members {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted members as plain strings, for logging and
// result metadata.
func (s Set) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = string(p)
	}
	return out
}

// String renders the set for log output, e.g. "filesystem-read,shell".
func (s Set) String() string {
	return strings.Join(s.Strings(), ",")
}
