package decoder

// selectNth partially orders items in place so that, after it returns,
// items[:k] are the k smallest elements under less (in unspecified order
// among themselves), matching the nth-element contract spec.md §4.3/§9
// calls for: the beam never needs the shortlist or the survivor set fully
// sorted, only partitioned around the k-th position.
//
// Tie-breaking: this is a Lomuto-partition quickselect. When two elements
// compare equal under less, their relative order after partitioning is
// whichever the partition scheme happens to produce — not guaranteed
// stable. The partition has no randomness, so identical input order gives
// identical output; in beamsearch.go's finalizeStep that input order is
// fixed by the stable sort over the full merge key that runs before it.
func selectNth[T any](items []T, k int, less func(a, b T) bool) {
	lo, hi := 0, len(items)
	if k <= lo || k >= hi {
		return
	}

	for {
		if hi-lo <= 1 {
			return
		}

		pivotIdx := partition(items, lo, hi, less)
		switch {
		case k == pivotIdx:
			return
		case k < pivotIdx:
			hi = pivotIdx
		default:
			lo = pivotIdx + 1
		}
	}
}

// partition applies a Lomuto partition over items[lo:hi) using the middle
// element (swapped into items[hi-1]) as the pivot, and returns the pivot's
// final index.
func partition[T any](items []T, lo, hi int, less func(a, b T) bool) int {
	pivot := items[(lo+hi)/2]
	items[(lo+hi)/2], items[hi-1] = items[hi-1], items[(lo+hi)/2]

	store := lo
	for i := lo; i < hi-1; i++ {
		if less(items[i], pivot) {
			items[i], items[store] = items[store], items[i]
			store++
		}
	}
	items[store], items[hi-1] = items[hi-1], items[store]

	return store
}
