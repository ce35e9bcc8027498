// Package lm defines the language-model contract consumed by the beam
// search decoder (spec.md §4.1): start, score, next-state, finish, plus a
// trivial null LM used as the default fusion weight of zero.
package lm

// LM is a language model, generic over its own opaque state type S. LM
// states are owned by the LM implementation; the beam core only ever holds
// and copies the values it is handed back.
//
// Score must be pure with respect to its inputs: identical (state, token)
// pairs must return identical scores. NextState is only ever called by the
// decoder for candidates that survive a beam step as true new-token
// emissions — never for blanks or repeats, which inherit the parent state
// unchanged.
type LM[S any] interface {
	// Start returns the initial (sentence-begin) context. Called once per
	// decode.
	Start() S

	// Score returns the log-probability contribution of extending state by
	// token.
	Score(state S, token int32) float32

	// NextState returns the successor state after token. May be computed
	// lazily, separately from Score, to avoid materializing states for
	// candidates that end up pruned.
	NextState(state S, token int32) S

	// Finish returns the log-probability of sentence-end given state.
	Finish(state S) float32
}

// BatchLM is an optional performance extension: implementations that can
// compute many next-states more cheaply together than in a loop should
// implement it. The beam search core falls back to calling NextState
// per-candidate when an LM does not implement this interface.
type BatchLM[S any] interface {
	LM[S]

	// NextStates returns the successor state for each (states[i], tokens[i])
	// pair, in order.
	NextStates(states []S, tokens []int32) []S
}

// NextStates computes successor states for an LM, using the batched
// implementation when available and falling back to a per-candidate loop
// otherwise.
func NextStates[S any](model LM[S], states []S, tokens []int32) []S {
	if batch, ok := model.(BatchLM[S]); ok {
		return batch.NextStates(states, tokens)
	}

	out := make([]S, len(states))
	for i := range states {
		out[i] = model.NextState(states[i], tokens[i])
	}

	return out
}

// ZeroState is the trivial, stateless LM state used by ZeroLM.
type ZeroState struct{}

// ZeroLM is a null language model that contributes a constant 0.0 to every
// score. It is the decoder's default when no external LM is supplied, and
// is used by tests that must establish an LM-free baseline.
type ZeroLM struct{}

var _ LM[ZeroState] = ZeroLM{}

// Start returns the trivial zero state.
func (ZeroLM) Start() ZeroState { return ZeroState{} }

// Score always returns 0.0.
func (ZeroLM) Score(ZeroState, int32) float32 { return 0 }

// NextState returns the same trivial state.
func (ZeroLM) NextState(state ZeroState, _ int32) ZeroState { return state }

// Finish always returns 0.0.
func (ZeroLM) Finish(ZeroState) float32 { return 0 }
