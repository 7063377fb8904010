package models

import "sort"

// AssociationChange describes how a date range's destination set moved.
type AssociationChange struct {
	Added        []int64
	Removed      []int64
	PurgedChecks int64
}

// DiffDestinations returns destinations present only in next (added) and only
// in current (removed), both sorted ascending.
func DiffDestinations(current, next []int64) (added, removed []int64) {
	cur := make(map[int64]struct{}, len(current))
	for _, id := range current {
		cur[id] = struct{}{}
	}
	nxt := make(map[int64]struct{}, len(next))
	for _, id := range next {
		nxt[id] = struct{}{}
	}
	for id := range nxt {
		if _, ok := cur[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range cur {
		if _, ok := nxt[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return added, removed
}

// UniqueIDs keeps the first occurrence of each id, in order.
func UniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
