// SPDX-License-Identifier: Apache-2.0

package apilist

import "sort"

// Delta summarises how one generation of the list differs from another.
type Delta struct {
	Added   []Key `json:"added,omitempty"`
	Removed []Key `json:"removed,omitempty"`
	Changed []Key `json:"changed,omitempty"`
}

// Empty reports whether the two generations are identical.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares two generations of the list by member identity
// (interface, name, entity_type). A member present in both but with any other
// column differing counts as changed.
func Diff(old, updated *List) Delta {
	oldByKey := make(map[Key]Entry, old.Len())
	for _, e := range old.Entries {
		oldByKey[e.Key()] = e
	}

	var delta Delta
	seen := make(map[Key]struct{}, updated.Len())
	for _, e := range updated.Entries {
		k := e.Key()
		seen[k] = struct{}{}
		prev, ok := oldByKey[k]
		if !ok {
			delta.Added = append(delta.Added, k)
			continue
		}
		if prev != e {
			delta.Changed = append(delta.Changed, k)
		}
	}
	for _, e := range old.Entries {
		if _, ok := seen[e.Key()]; !ok {
			delta.Removed = append(delta.Removed, e.Key())
		}
	}

	sortKeys(delta.Added)
	sortKeys(delta.Removed)
	sortKeys(delta.Changed)
	return delta
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Interface != keys[j].Interface {
			return keys[i].Interface < keys[j].Interface
		}
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].EntityType < keys[j].EntityType
	})
}
