package emission

import "testing"

func TestNewView(t *testing.T) {
	t.Run("valid shape", func(t *testing.T) {
		v, err := NewView([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Steps() != 2 || v.Vocab() != 3 {
			t.Fatalf("got steps=%d vocab=%d", v.Steps(), v.Vocab())
		}
		if got := v.At(1, 2); got != 6 {
			t.Fatalf("At(1,2) = %v, want 6", got)
		}
		row := v.Row(1)
		if len(row) != 3 || row[0] != 4 {
			t.Fatalf("Row(1) = %v", row)
		}
	})

	t.Run("mismatched length", func(t *testing.T) {
		_, err := NewView([]float32{1, 2, 3}, 2, 3)
		if err == nil {
			t.Fatal("expected error for mismatched shape")
		}
	})

	t.Run("negative shape", func(t *testing.T) {
		_, err := NewView(nil, -1, 3)
		if err == nil {
			t.Fatal("expected error for negative steps")
		}
	})
}
