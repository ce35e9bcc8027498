// Package decoder implements the CTC greedy and prefix beam-search
// decoders described by spec.md §4.3–§4.5: per-timestep candidate
// expansion, beam pruning, log-sum-exp prefix merging, top-k selection,
// and backtracking to token sequences.
package decoder

// Decoder recovers token sequences from a T×V emission matrix under the
// CTC collapsing rule. Implementations own mutable scratch state reused
// across calls and are therefore not safe for concurrent Decode calls
// (spec.md §5).
type Decoder interface {
	// Decode runs one decode call over a row-major, T×V emission matrix
	// and returns hypotheses sorted by descending score.
	Decode(emissions []float32, steps, vocab int) ([]DecoderOutput, error)
}

// DecoderOutput is one surviving hypothesis: a collapsed token sequence
// together with the timestep and per-step AM/LM score at which each token
// was emitted (spec.md §3).
type DecoderOutput struct {
	Score     float32
	Tokens    []int32
	Timesteps []int
	AMScores  []float32
	LMScores  []float32
}

// ReducedTokens re-collapses a raw, pre-collapse token sequence (i.e. one
// token per timestep, not yet CTC-reduced) using blank as the CTC blank id.
// It is a helper for callers that hold a pre-collapse representation
// rather than a DecoderOutput produced by this package.
func ReducedTokens(raw []int32, blank int32) []int32 {
	out := make([]int32, 0, len(raw))
	lastToken := blank
	for _, tok := range raw {
		if tok != lastToken && tok != blank {
			out = append(out, tok)
		}
		lastToken = tok
	}
	return out
}
