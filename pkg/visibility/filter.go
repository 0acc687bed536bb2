package visibility

import (
	"sort"
)

// Filter restricts which records a traversal may read
type Filter struct {
	// Readers are the user and group uuids whose records are readable
	Readers []string `json:"readers,omitempty" yaml:"readers"`
	// Admin can read every record
	Admin bool `json:"admin,omitempty" yaml:"admin"`
}

// AllowAll returns a filter that permits every record
func AllowAll() Filter {
	return Filter{Admin: true}
}

// ReadableBy returns a filter permitting records owned by any of readers
func ReadableBy(readers ...string) Filter {
	return Filter{Readers: dedupe(readers)}
}

// Permits reports whether a record with the given owner (and own uuid) is
// readable. Users and groups are readable by themselves, so the record's own
// uuid is checked as well.
func (f Filter) Permits(ownerUUID, uuid string) bool {
	if f.Admin {
		return true
	}
	for _, r := range f.Readers {
		if r == "" {
			continue
		}
		if r == ownerUUID || r == uuid {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the filter permits nothing
func (f Filter) IsEmpty() bool {
	return !f.Admin && len(f.Readers) == 0
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
