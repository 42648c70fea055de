package reconcile

import (
	"sort"

	"crm-sync/core/compare"
)

// EqualFunc decides whether two raw attribute values are the same.
type EqualFunc func(a, b any) bool

// AttributeDiff partitions the union of two key sets.
// Every key appears in exactly one list; lists are sorted.
type AttributeDiff struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Changed   []string `json:"changed"`
	Unchanged []string `json:"unchanged"`
}

// Diff compares m1 (before) with m2 (after) under eq.
func Diff(m1, m2 Attributes, eq EqualFunc) AttributeDiff {
	d := AttributeDiff{
		Added:     []string{},
		Removed:   []string{},
		Changed:   []string{},
		Unchanged: []string{},
	}

	for k, v1 := range m1 {
		v2, ok := m2[k]
		switch {
		case !ok:
			d.Removed = append(d.Removed, k)
		case eq(v1, v2):
			d.Unchanged = append(d.Unchanged, k)
		default:
			d.Changed = append(d.Changed, k)
		}
	}
	for k := range m2 {
		if _, ok := m1[k]; !ok {
			d.Added = append(d.Added, k)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	sort.Strings(d.Unchanged)
	return d
}

// DiffValues is Diff under compare.Equals.
func DiffValues(m1, m2 Attributes) AttributeDiff {
	return Diff(m1, m2, compare.Equals)
}

// DiffKeys returns changed, added and removed keys, sorted.
func (d AttributeDiff) DiffKeys() []string {
	keys := make([]string, 0, len(d.Changed)+len(d.Added)+len(d.Removed))
	keys = append(keys, d.Changed...)
	keys = append(keys, d.Added...)
	keys = append(keys, d.Removed...)
	sort.Strings(keys)
	return keys
}

// Empty reports whether nothing differs.
func (d AttributeDiff) Empty() bool {
	return len(d.Changed) == 0 && len(d.Added) == 0 && len(d.Removed) == 0
}
