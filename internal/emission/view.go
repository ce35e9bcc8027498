// Package emission provides a bounds-checked, read-only view over the
// row-major T×V emission matrix a decoder consumes.
package emission

import "fmt"

// View is a typed, read-only window over a dense, row-major T×V matrix of
// additive log-space scores. It never copies the backing slice.
type View struct {
	data  []float32
	steps int
	vocab int
}

// NewView validates data against the given shape and wraps it in a View.
// data must be exactly steps*vocab elements, row-major with no padding.
func NewView(data []float32, steps, vocab int) (View, error) {
	if steps < 0 || vocab < 0 {
		return View{}, fmt.Errorf("emission: negative shape (steps=%d, vocab=%d)", steps, vocab)
	}
	if len(data) != steps*vocab {
		return View{}, fmt.Errorf("emission: data length %d does not match steps*vocab (%d*%d=%d)",
			len(data), steps, vocab, steps*vocab)
	}
	return View{data: data, steps: steps, vocab: vocab}, nil
}

// Steps returns the number of timesteps (T).
func (v View) Steps() int { return v.steps }

// Vocab returns the vocabulary size (V).
func (v View) Vocab() int { return v.vocab }

// Row returns the score slice for timestep t, length Vocab(). The returned
// slice aliases the view's backing data and must not be retained past the
// view's lifetime.
func (v View) Row(t int) []float32 {
	return v.data[t*v.vocab : (t+1)*v.vocab]
}

// At returns the score for timestep t and token id.
func (v View) At(t, token int) float32 {
	return v.data[t*v.vocab+token]
}
