// SPDX-License-Identifier: Apache-2.0

package apilist

import "strings"

// Filter selects entries from the list. Zero values match everything.
type Filter struct {
	Interface     string     // exact, case-insensitive
	EntityType    EntityType // exact
	HighEntropy   string     // exact classification, or "any" for every classified entry
	SecureContext *bool      // tri-state: nil matches both
}

// Index answers member queries against one generation of the list.
type Index struct {
	entries     []Entry
	byInterface map[string][]int
}

// NewIndex builds a query index over list. The list must not be mutated while
// the index is in use.
func NewIndex(list *List) *Index {
	idx := &Index{
		entries:     list.Entries,
		byInterface: make(map[string][]int),
	}
	for i, e := range list.Entries {
		k := strings.ToLower(e.Interface)
		idx.byInterface[k] = append(idx.byInterface[k], i)
	}
	return idx
}

// Interfaces returns the number of distinct interfaces in the list.
func (idx *Index) Interfaces() int {
	return len(idx.byInterface)
}

// Select returns all entries matching f, in list order.
func (idx *Index) Select(f Filter) []Entry {
	candidates := idx.entries
	if f.Interface != "" {
		positions := idx.byInterface[strings.ToLower(f.Interface)]
		candidates = make([]Entry, 0, len(positions))
		for _, p := range positions {
			candidates = append(candidates, idx.entries[p])
		}
	}

	out := make([]Entry, 0, len(candidates))
	for _, e := range candidates {
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.HighEntropy != "" {
			if strings.EqualFold(f.HighEntropy, "any") {
				if strings.TrimSpace(e.HighEntropy) == "" {
					continue
				}
			} else if !strings.EqualFold(e.HighEntropy, f.HighEntropy) {
				continue
			}
		}
		if f.SecureContext != nil && e.SecureContext != *f.SecureContext {
			continue
		}
		out = append(out, e)
	}
	return out
}
