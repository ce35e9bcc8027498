package decoder

import (
	"slices"
	"testing"
)

func TestSelectNth(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		k     int
	}{
		{"basic", []int{5, 3, 8, 1, 9, 2, 7}, 3},
		{"k=0", []int{4, 2, 9}, 0},
		{"k=len", []int{4, 2, 9}, 3},
		{"all equal", []int{5, 5, 5, 5}, 2},
		{"two elements", []int{2, 1}, 1},
		{"single element", []int{42}, 0},
		{"duplicates mixed", []int{3, 1, 3, 2, 3, 1}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := slices.Clone(tt.items)
			selectNth(items, tt.k, func(a, b int) bool { return a < b })

			sorted := slices.Clone(tt.items)
			slices.Sort(sorted)

			wantSmallest := sorted[:tt.k]
			gotSmallest := slices.Clone(items[:tt.k])
			slices.Sort(gotSmallest)

			if !slices.Equal(wantSmallest, gotSmallest) {
				t.Fatalf("smallest %d of %v = %v, want %v", tt.k, tt.items, gotSmallest, wantSmallest)
			}

			// The full multiset must be preserved (selection doesn't drop/add elements).
			gotAll := slices.Clone(items)
			slices.Sort(gotAll)
			if !slices.Equal(gotAll, sorted) {
				t.Fatalf("selectNth changed the multiset: got %v, want %v", gotAll, sorted)
			}
		})
	}
}
