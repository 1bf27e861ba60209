// Package plan holds the diff engine and the ChangeSet type it produces.
package plan

import "sort"

// Deletion identifies a stale record by hostname and controller id.
type Deletion struct {
	Hostname string
	ID       string
}

// ChangeSet partitions desired and existing hostnames into the work needed to
// converge the controller. Every hostname appears in at most one group.
type ChangeSet struct {
	// Create holds desired hostnames with no existing A record.
	Create []string
	// Delete holds existing A records whose hostname is no longer desired.
	Delete []Deletion
	// Unchanged holds hostnames that are both desired and present.
	Unchanged []string
}

// IsEmpty reports whether the change set requires no create or delete calls.
// Unchanged entries do not count.
func (c *ChangeSet) IsEmpty() bool {
	return len(c.Create) == 0 && len(c.Delete) == 0
}

// DeleteHostnames returns the hostnames scheduled for deletion, sorted.
func (c *ChangeSet) DeleteHostnames() []string {
	out := make([]string, len(c.Delete))
	for i, d := range c.Delete {
		out[i] = d.Hostname
	}
	sort.Strings(out)
	return out
}

// Total returns the number of mutating operations in the change set.
func (c *ChangeSet) Total() int {
	return len(c.Create) + len(c.Delete)
}
