package cluster

import "sort"

// Assignment maps each cell identifier to its cluster id. Every cell of the
// active set has exactly one label; labels need not be contiguous while an
// engine is working but are normalized before being handed back to a caller.
type Assignment map[string]int

// Clusters groups the assignment by label. Member cell lists are sorted so
// downstream iteration is deterministic.
func (a Assignment) Clusters() map[int][]string {
	out := make(map[int][]string)
	for cell, id := range a {
		out[id] = append(out[id], cell)
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out
}

// Labels returns the ids for the given cells, in order. Cells absent from
// the assignment get label 0.
func (a Assignment) Labels(cells []string) []int {
	out := make([]int, len(cells))
	for i, c := range cells {
		out[i] = a[c]
	}
	return out
}

// IDs returns the distinct cluster ids in ascending order.
func (a Assignment) IDs() []int {
	seen := make(map[int]bool)
	for _, id := range a {
		seen[id] = true
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Normalize relabels clusters to contiguous ids 1..K, preserving the
// ascending order of the original labels. Returns a new Assignment.
func (a Assignment) Normalize() Assignment {
	ids := a.IDs()
	remap := make(map[int]int, len(ids))
	for k, id := range ids {
		remap[id] = k + 1
	}
	out := make(Assignment, len(a))
	for cell, id := range a {
		out[cell] = remap[id]
	}
	return out
}

// Clone returns a copy of the assignment.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for cell, id := range a {
		out[cell] = id
	}
	return out
}
