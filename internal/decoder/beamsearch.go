package decoder

import (
	"math"
	"sort"

	"github.com/example/go-ctcdecode/internal/emission"
	"github.com/example/go-ctcdecode/internal/interner"
	"github.com/example/go-ctcdecode/internal/lm"
)

// BeamSearchDecoderOptions configures a BeamSearchDecoder (spec.md §4.3).
// All fields are required; there are no defaults.
type BeamSearchDecoderOptions struct {
	// BeamSize is the maximum number of surviving hypotheses per step.
	BeamSize int
	// BeamSizeToken is the maximum number of candidate tokens considered
	// per parent hypothesis per step (the per-step top-k over V).
	BeamSizeToken int
	// BeamThreshold prunes a candidate whose score is more than this far
	// below the best current candidate.
	BeamThreshold float32
	// LMWeight is the coefficient applied to LM scores in the combined
	// score.
	LMWeight float32
}

// decoderState is one beam entry's CTC bookkeeping (spec.md §3). am_score
// and lm_score are per-step increments, not cumulative totals (spec.md §9
// Open Questions); only score accumulates across the whole hypothesis.
type decoderState struct {
	score         float32
	token         int32
	prevBlank     bool
	amScore       float32
	lmScore       float32
	parentIndex   int
	sequenceState interner.StateID
}

// hypothesis is a surviving beam entry: a decoderState plus the LM context
// it carries forward. lmState is the LM's own opaque state, distinct from
// sequenceState (the interned CTC prefix identity).
type hypothesis[S any] struct {
	lmState      S
	decoderState decoderState
}

// candidate is a proposed, not-yet-admitted beam entry: it keeps a
// reference to the parent's LM state so that NextState can be called
// lazily, only for candidates that ultimately survive (spec.md §4.1).
type candidate[S any] struct {
	parentLMState S
	isEmission    bool
	state         decoderState
}

// BeamSearchDecoder is the prefix beam-search CTC decoder (spec.md §4.3)
// fused with a language model via LMWeight. It owns mutable scratch
// buffers reused across calls and is not safe for concurrent Decode calls
// (spec.md §5); separate decoders may run in parallel if each has its own
// LM, or the LM is itself stateless and thread-safe (e.g. lm.ZeroLM).
type BeamSearchDecoder[S any] struct {
	options BeamSearchDecoderOptions
	blankID int32
	lm      lm.LM[S]
	intern  *interner.Interner

	hypothesis        [][]hypothesis[S]
	candidates        []candidate[S]
	candidatePointers []int
	bestScore         float32
	shortlist         []int32

	emitIdx    []int
	emitTokens []int32
	emitStates []S
}

var _ Decoder = (*BeamSearchDecoder[lm.ZeroState])(nil)

// NewBeamSearchDecoder returns a BeamSearchDecoder for the given CTC blank
// id, LM and options. blankID is bound here (not per Decode call), making
// the Decoder interface uniform with GreedyDecoder.
func NewBeamSearchDecoder[S any](options BeamSearchDecoderOptions, blankID int32, model lm.LM[S]) *BeamSearchDecoder[S] {
	return &BeamSearchDecoder[S]{
		options: options,
		blankID: blankID,
		lm:      model,
	}
}

// Decode runs one beam-search pass over a row-major T×V emission matrix
// and returns hypotheses sorted by descending score (spec.md §4.3–§4.5).
func (d *BeamSearchDecoder[S]) Decode(emissions []float32, steps, vocab int) ([]DecoderOutput, error) {
	if d.blankID < 0 || int(d.blankID) >= vocab {
		return nil, invalidShapef("blank_id %d out of range [0, %d)", d.blankID, vocab)
	}

	view, err := emission.NewView(emissions, steps, vocab)
	if err != nil {
		return nil, invalidShapef("%s", err)
	}

	d.decodeBegin()
	d.decodeStep(view, steps, vocab)
	d.decodeEnd(steps)

	outputs := d.collectOutputs(steps)
	sort.SliceStable(outputs, func(i, j int) bool { return outputs[i].Score > outputs[j].Score })

	return outputs, nil
}

func (d *BeamSearchDecoder[S]) decodeBegin() {
	// The interner is reconstructed every call (spec.md §5 Allocation
	// discipline); hypothesis layers and scratch slices below are reused.
	d.intern = interner.New()
	d.resetCandidates()

	d.hypothesis = d.hypothesis[:0]
	d.hypothesis = append(d.hypothesis, []hypothesis[S]{{
		lmState: d.lm.Start(),
		decoderState: decoderState{
			token:         d.blankID,
			parentIndex:   -1,
			sequenceState: d.intern.Root(),
		},
	}})
}

func (d *BeamSearchDecoder[S]) decodeStep(view emission.View, steps, vocab int) {
	for len(d.hypothesis) < steps+2 {
		d.hypothesis = append(d.hypothesis, nil)
	}

	if cap(d.shortlist) < vocab {
		d.shortlist = make([]int32, vocab)
	}
	d.shortlist = d.shortlist[:vocab]
	for i := range d.shortlist {
		d.shortlist[i] = int32(i)
	}

	limit := d.options.BeamSizeToken
	if vocab <= limit {
		limit = vocab
	}

	for t := 0; t < steps; t++ {
		row := view.Row(t)

		if vocab > d.options.BeamSizeToken {
			selectNth(d.shortlist, limit, func(a, b int32) bool {
				return row[a] > row[b]
			})
		}
		shortlist := d.shortlist[:limit]

		d.resetCandidates()
		layer := d.hypothesis[t]
		for prevHypIdx := range layer {
			prevHyp := &layer[prevHypIdx]
			prevToken := prevHyp.decoderState.token
			prevSeqState := prevHyp.decoderState.sequenceState
			prevScore := prevHyp.decoderState.score
			prevLMScore := prevHyp.decoderState.lmScore

			for _, token := range shortlist {
				am := row[token]
				s := prevScore + am

				var cs decoderState
				var isEmission bool

				switch {
				case token == d.blankID:
					cs = decoderState{
						score:         s,
						token:         d.blankID,
						prevBlank:     true,
						amScore:       am,
						lmScore:       prevLMScore,
						parentIndex:   prevHypIdx,
						sequenceState: prevSeqState,
					}
				case token != prevToken || prevHyp.decoderState.prevBlank:
					lmScore := d.lm.Score(prevHyp.lmState, token)
					cs = decoderState{
						score:         s + d.options.LMWeight*lmScore,
						token:         token,
						prevBlank:     false,
						amScore:       am,
						lmScore:       lmScore,
						parentIndex:   prevHypIdx,
						sequenceState: d.intern.Child(prevSeqState, token),
					}
					isEmission = true
				default:
					cs = decoderState{
						score:         s,
						token:         token,
						prevBlank:     false,
						amScore:       am,
						lmScore:       prevLMScore,
						parentIndex:   prevHypIdx,
						sequenceState: prevSeqState,
					}
				}

				d.addCandidate(candidate[S]{
					parentLMState: prevHyp.lmState,
					isEmission:    isEmission,
					state:         cs,
				})
			}
		}

		d.finalizeStep(t)
	}
}

func (d *BeamSearchDecoder[S]) decodeEnd(steps int) {
	d.resetCandidates()

	layer := d.hypothesis[steps]
	for prevHypIdx := range layer {
		prevHyp := &layer[prevHypIdx]
		finish := d.lm.Finish(prevHyp.lmState)

		d.addCandidate(candidate[S]{
			parentLMState: prevHyp.lmState,
			isEmission:    false,
			state: decoderState{
				score:         prevHyp.decoderState.score + d.options.LMWeight*finish,
				token:         d.blankID,
				prevBlank:     false,
				amScore:       0,
				lmScore:       finish,
				parentIndex:   prevHypIdx,
				sequenceState: d.intern.Child(prevHyp.decoderState.sequenceState, interner.EOS),
			},
		})
	}

	d.finalizeStep(steps)
}

func (d *BeamSearchDecoder[S]) resetCandidates() {
	d.bestScore = -math.MaxFloat32
	d.candidates = d.candidates[:0]
	d.candidatePointers = d.candidatePointers[:0]
}

// addCandidate admits a candidate against the running best-score
// threshold (spec.md §4.3 step 3): admission is checked against the best
// score seen so far, not the final best, so early admissions may later be
// dominated — finalizeStep's threshold sweep is the authoritative pass.
func (d *BeamSearchDecoder[S]) addCandidate(c candidate[S]) {
	if c.state.score > d.bestScore {
		d.bestScore = c.state.score
	}
	if c.state.score > d.bestScore-d.options.BeamThreshold {
		d.candidates = append(d.candidates, c)
	}
}

// finalizeStep prunes, merges, and top-k-selects the candidates proposed
// for step t (or the finish pseudo-step when t==steps), writing survivors
// into hyp[t+1] (spec.md §4.3 "Finalize step").
func (d *BeamSearchDecoder[S]) finalizeStep(t int) {
	for i, c := range d.candidates {
		if c.state.score > d.bestScore-d.options.BeamThreshold {
			d.candidatePointers = append(d.candidatePointers, i)
		}
	}

	if len(d.candidatePointers) == 0 {
		d.hypothesis[t+1] = d.hypothesis[t+1][:0]
		return
	}

	ptrs := d.candidatePointers
	sort.SliceStable(ptrs, func(i, j int) bool {
		a, b := &d.candidates[ptrs[i]].state, &d.candidates[ptrs[j]].state
		if a.sequenceState != b.sequenceState {
			return a.sequenceState < b.sequenceState
		}
		if a.token != b.token {
			return a.token < b.token
		}
		if a.prevBlank != b.prevBlank {
			return !a.prevBlank
		}
		return a.score < b.score
	})

	merged := ptrs[:1]
	lastPtr := ptrs[0]
	for i := 1; i < len(ptrs); i++ {
		ptr := ptrs[i]
		if !sameMergeKey(&d.candidates[ptr].state, &d.candidates[lastPtr].state) {
			merged = append(merged, ptr)
			lastPtr = ptr
			continue
		}

		// Same collapsed prefix and trailing state: sum probabilities via
		// logsumexp, keeping the other fields from the highest-scoring
		// member (spec.md §4.3 step 2).
		a, b := &d.candidates[lastPtr].state, &d.candidates[ptr].state
		maxScore, minScore := a.score, b.score
		if minScore > maxScore {
			maxScore, minScore = minScore, maxScore
		}
		mergedScore := maxScore + float32(math.Log1p(math.Exp(float64(minScore-maxScore))))

		// A run is sorted by ascending score, so b scores at least as high
		// as every earlier member of it.
		d.candidates[lastPtr] = d.candidates[ptr]
		d.candidates[lastPtr].state.score = mergedScore
	}
	d.candidatePointers = merged

	if len(d.candidatePointers) > d.options.BeamSize {
		selectNth(d.candidatePointers, d.options.BeamSize, func(a, b int) bool {
			return d.candidates[a].state.score > d.candidates[b].state.score
		})
		d.candidatePointers = d.candidatePointers[:d.options.BeamSize]
	}

	d.materializeSurvivors(t)
}

func sameMergeKey(a, b *decoderState) bool {
	return a.sequenceState == b.sequenceState && a.token == b.token && a.prevBlank == b.prevBlank
}

// materializeSurvivors calls LM.NextState only for survivors that are true
// new-token emissions; blanks and repeats inherit the parent's LM state
// unchanged (spec.md §4.3 step 4, §9 Open Questions). It prefers the LM's
// batched NextStates when available.
func (d *BeamSearchDecoder[S]) materializeSurvivors(t int) {
	d.emitIdx = d.emitIdx[:0]
	d.emitTokens = d.emitTokens[:0]
	d.emitStates = d.emitStates[:0]

	for i, ptr := range d.candidatePointers {
		c := &d.candidates[ptr]
		if c.isEmission {
			d.emitIdx = append(d.emitIdx, i)
			d.emitTokens = append(d.emitTokens, c.state.token)
			d.emitStates = append(d.emitStates, c.parentLMState)
		}
	}

	nextStates := lm.NextStates(d.lm, d.emitStates, d.emitTokens)

	next := d.hypothesis[t+1][:0]
	emitPos := 0
	for i, ptr := range d.candidatePointers {
		c := &d.candidates[ptr]

		lmState := c.parentLMState
		if c.isEmission && emitPos < len(d.emitIdx) && d.emitIdx[emitPos] == i {
			lmState = nextStates[emitPos]
			emitPos++
		}

		next = append(next, hypothesis[S]{lmState: lmState, decoderState: c.state})
	}
	d.hypothesis[t+1] = next
}

// collectOutputs backtracks from hyp[steps+1] (the finish layer) to
// produce one DecoderOutput per surviving hypothesis (spec.md §4.3
// "Backtracking").
func (d *BeamSearchDecoder[S]) collectOutputs(steps int) []DecoderOutput {
	final := d.hypothesis[steps+1]
	outputs := make([]DecoderOutput, 0, len(final))

	chain := make([]*decoderState, 0, steps+1)
	for i := range final {
		chain = chain[:0]

		cur := &final[i].decoderState
		layer := steps + 1
		for {
			chain = append(chain, cur)
			if cur.parentIndex == -1 {
				break
			}
			parentIdx := cur.parentIndex
			layer--
			next := &d.hypothesis[layer][parentIdx].decoderState
			if next.parentIndex == -1 {
				break
			}
			cur = next
		}

		out := DecoderOutput{Score: final[i].decoderState.score}
		lastToken := d.blankID
		for j, n := len(chain)-1, 0; j >= 0; j, n = j-1, n+1 {
			s := chain[j]
			if s.token != lastToken && s.token != d.blankID {
				out.Tokens = append(out.Tokens, s.token)
				out.Timesteps = append(out.Timesteps, n)
				out.AMScores = append(out.AMScores, s.amScore)
				out.LMScores = append(out.LMScores, s.lmScore)
			}
			lastToken = s.token
		}

		outputs = append(outputs, out)
	}

	return outputs
}
