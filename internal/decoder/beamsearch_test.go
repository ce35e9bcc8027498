package decoder

import (
	"math"
	"testing"

	"github.com/example/go-ctcdecode/internal/lm"
)

// stubLM lets tests fix the score/finish contributions for specific
// tokens without loading a real n-gram model.
type stubLM struct {
	scoreByToken  map[int32]float32
	finishByState map[int]float32
}

func (s stubLM) Start() int { return 0 }

func (s stubLM) Score(state int, token int32) float32 {
	if v, ok := s.scoreByToken[token]; ok {
		return v
	}
	return 0
}

func (s stubLM) NextState(state int, token int32) int { return state + 1 }

func (s stubLM) Finish(state int) float32 {
	if v, ok := s.finishByState[state]; ok {
		return v
	}
	return 0
}

var _ lm.LM[int] = stubLM{}

// TestBeamSearchScenarioA is spec.md §8 Scenario A: a trivial beam of 1.
func TestBeamSearchScenarioA(t *testing.T) {
	opts := BeamSearchDecoderOptions{
		BeamSize:      1,
		BeamSizeToken: 10,
		BeamThreshold: math.MaxFloat32,
		LMWeight:      0,
	}
	dec := NewBeamSearchDecoder[lm.ZeroState](opts, 3, lm.ZeroLM{})

	data := []float32{
		1, 0, 0, 0,
		1, 0, 0, 0,
		0, 2, 0, 0,
	}
	outputs, err := dec.Decode(data, 3, 4)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("len(outputs) = %d, want 1", len(outputs))
	}

	out := outputs[0]
	if out.Score != 4.0 {
		t.Errorf("Score = %v, want 4.0", out.Score)
	}
	assertInt32Slice(t, "Tokens", out.Tokens, []int32{0, 1})
	assertIntSlice(t, "Timesteps", out.Timesteps, []int{0, 2})
	assertFloat32Slice(t, "AMScores", out.AMScores, []float32{1.0, 2.0})
	assertFloat32Slice(t, "LMScores", out.LMScores, []float32{0.0, 0.0})
}

// TestBeamSearchPrefixMerge is spec.md §8 Scenario C: two distinct paths
// ([blank, 0, 0] and [0, 0, 0]) collapse to the same output [0] and must
// be merged by logsumexp into one hypothesis, not kept as two.
func TestBeamSearchPrefixMerge(t *testing.T) {
	opts := BeamSearchDecoderOptions{
		BeamSize:      4,
		BeamSizeToken: 10,
		BeamThreshold: math.MaxFloat32,
		LMWeight:      0,
	}
	dec := NewBeamSearchDecoder[lm.ZeroState](opts, 2, lm.ZeroLM{})

	// blank id 2; token 0 ties with blank at the middle step, so both
	// [blank, 0, 0] and [0, 0, 0] are plausible paths collapsing to [0].
	data := []float32{
		1, 0, 0,
		0, 0, 0,
		1, 0, 0,
	}
	outputs, err := dec.Decode(data, 3, 3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(outputs) == 0 {
		t.Fatalf("no outputs")
	}

	top := outputs[0]
	assertInt32Slice(t, "top Tokens", top.Tokens, []int32{0})

	// Exactly one hypothesis should carry tokens == [0]; merging must have
	// collapsed the duplicate paths rather than keeping two copies.
	count := 0
	for _, o := range outputs {
		if len(o.Tokens) == 1 && o.Tokens[0] == 0 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("found %d hypotheses with Tokens=[0], want exactly 1 (merge should have collapsed duplicates)", count)
	}

	// The merged score must be at least as large as either individual
	// path's score (logsumexp of two paths is >= max of the two).
	wantAtLeast := float32(2.0) // score of path [0,0,0]: am 1+0+1 = 2
	if top.Score < wantAtLeast {
		t.Errorf("merged Score = %v, want >= %v (logsumexp must not lose probability mass)", top.Score, wantAtLeast)
	}
}

// TestBeamSearchThresholdPruning is spec.md §8 Scenario D: a tight
// threshold must prune a candidate far below the best.
func TestBeamSearchThresholdPruning(t *testing.T) {
	opts := BeamSearchDecoderOptions{
		BeamSize:      4,
		BeamSizeToken: 10,
		BeamThreshold: 0.1,
		LMWeight:      0,
	}
	dec := NewBeamSearchDecoder[lm.ZeroState](opts, 2, lm.ZeroLM{})

	// token 0 scores 1.0, token 1 scores 0.5 at t=0: gap 0.5 > threshold 0.1.
	data := []float32{
		1.0, 0.5, 0,
	}
	outputs, err := dec.Decode(data, 1, 3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	for _, o := range outputs {
		for _, tok := range o.Tokens {
			if tok == 1 {
				t.Fatalf("token 1 survived pruning despite a 0.5 gap against a 0.1 threshold: %+v", o)
			}
		}
	}
}

// TestBeamSearchLMGate is spec.md §8 Scenario E: an LM that scores token 2
// as -inf from the start state must prevent it from being the first
// emitted token even though it is the greedy argmax.
func TestBeamSearchLMGate(t *testing.T) {
	model := stubLM{scoreByToken: map[int32]float32{2: float32(math.Inf(-1))}}
	opts := BeamSearchDecoderOptions{
		BeamSize:      4,
		BeamSizeToken: 10,
		BeamThreshold: math.MaxFloat32,
		LMWeight:      1,
	}
	dec := NewBeamSearchDecoder[int](opts, 3, model)

	data := []float32{
		0, 0, 1, 0, // argmax is token 2
	}
	outputs, err := dec.Decode(data, 1, 4)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(outputs) == 0 {
		t.Fatalf("no outputs")
	}
	if len(outputs[0].Tokens) > 0 && outputs[0].Tokens[0] == 2 {
		t.Fatalf("top hypothesis emitted LM-gated token 2: %+v", outputs[0])
	}
}

// TestBeamSearchFinishScore is spec.md §8 Scenario F: increasing lm_weight
// from 0 to 1 with a constant finish(state) = -k must decrease every
// output's score by exactly k while leaving tokens unchanged.
func TestBeamSearchFinishScore(t *testing.T) {
	const k = 2.5
	data := []float32{1, 0, 0, 0}

	run := func(lmWeight float32) DecoderOutput {
		opts := BeamSearchDecoderOptions{
			BeamSize:      1,
			BeamSizeToken: 10,
			BeamThreshold: math.MaxFloat32,
			LMWeight:      lmWeight,
		}
		dec := NewBeamSearchDecoder[int](opts, 3, constFinishLM{k: -k})
		outputs, err := dec.Decode(data, 1, 4)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		return outputs[0]
	}

	without := run(0)
	with := run(1)

	assertInt32Slice(t, "Tokens", with.Tokens, without.Tokens)
	if got, want := without.Score-with.Score, float32(k); math.Abs(float64(got-want)) > 1e-5 {
		t.Fatalf("score delta = %v, want %v", got, want)
	}
}

type constFinishLM struct{ k float32 }

func (c constFinishLM) Start() int                   { return 0 }
func (c constFinishLM) Score(int, int32) float32     { return 0 }
func (c constFinishLM) NextState(s int, _ int32) int { return s }
func (c constFinishLM) Finish(int) float32           { return c.k }

var _ lm.LM[int] = constFinishLM{}

// TestBeamSearchMatchesGreedy is spec.md §8 invariant 6: beam_size=1 and
// lm_weight=0 must reproduce the greedy decoder's output.
func TestBeamSearchMatchesGreedy(t *testing.T) {
	const blank = int32(6)
	data := []float32{
		2, 1, 0, 0, 0, 0, 3,
		1, 0, 0, 2, 0, 0, 1,
		0, 0, 1, 1, 2, 0, 0,
		3, 0, 0, 0, 0, 1, 0,
		0, 2, 0, 0, 0, 0, 1,
	}
	steps, vocab := 5, 7

	greedy := NewGreedyDecoder(blank)
	greedyOut, err := greedy.Decode(data, steps, vocab)
	if err != nil {
		t.Fatalf("greedy Decode: %v", err)
	}

	opts := BeamSearchDecoderOptions{
		BeamSize:      1,
		BeamSizeToken: vocab,
		BeamThreshold: math.MaxFloat32,
		LMWeight:      0,
	}
	beam := NewBeamSearchDecoder[lm.ZeroState](opts, blank, lm.ZeroLM{})
	beamOut, err := beam.Decode(data, steps, vocab)
	if err != nil {
		t.Fatalf("beam Decode: %v", err)
	}

	assertInt32Slice(t, "Tokens", beamOut[0].Tokens, greedyOut[0].Tokens)
	assertIntSlice(t, "Timesteps", beamOut[0].Timesteps, greedyOut[0].Timesteps)
}

// TestBeamSearchInvariants exercises spec.md §8 invariants 1-5 over a
// slightly larger configuration.
func TestBeamSearchInvariants(t *testing.T) {
	opts := BeamSearchDecoderOptions{
		BeamSize:      8,
		BeamSizeToken: 5,
		BeamThreshold: 10,
		LMWeight:      0,
	}
	dec := NewBeamSearchDecoder[lm.ZeroState](opts, 4, lm.ZeroLM{})

	data := []float32{
		1, 2, 0, 1, 0,
		0, 1, 2, 0, 1,
		2, 0, 1, 0, 1,
		1, 1, 0, 2, 0,
	}
	outputs, err := dec.Decode(data, 4, 5)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(outputs) > opts.BeamSize {
		t.Fatalf("len(outputs) = %d, exceeds BeamSize %d", len(outputs), opts.BeamSize)
	}

	for i := 1; i < len(outputs); i++ {
		if outputs[i].Score > outputs[i-1].Score {
			t.Fatalf("outputs not sorted by descending score at %d: %v > %v", i, outputs[i].Score, outputs[i-1].Score)
		}
	}

	for _, o := range outputs {
		n := len(o.Tokens)
		if len(o.Timesteps) != n || len(o.AMScores) != n || len(o.LMScores) != n {
			t.Fatalf("mismatched output array lengths: %+v", o)
		}

		lastStep := -1
		var lastTok int32 = -1
		for i, tok := range o.Tokens {
			if tok == 4 {
				t.Fatalf("blank id appeared in Tokens: %+v", o)
			}
			if tok == lastTok {
				t.Fatalf("adjacent duplicate token in Tokens: %+v", o)
			}
			if o.Timesteps[i] <= lastStep || o.Timesteps[i] >= 4 {
				t.Fatalf("timestep %d out of strictly-increasing [0,4) range: %+v", o.Timesteps[i], o)
			}
			lastStep = o.Timesteps[i]
			lastTok = tok
		}
	}
}

func assertInt32Slice(t *testing.T, name string, got, want []int32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
	}
}

func assertIntSlice(t *testing.T, name string, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
	}
}

func assertFloat32Slice(t *testing.T, name string, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
	}
}
