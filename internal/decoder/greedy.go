package decoder

import "github.com/example/go-ctcdecode/internal/emission"

// GreedyDecoder is the trivial argmax-per-timestep baseline (spec.md
// §4.4): it emits a token whenever the per-step argmax differs from the
// previous step's argmax and is not blank. It shares DecoderOutput with
// BeamSearchDecoder and exists to anchor tests and baseline performance.
type GreedyDecoder struct {
	blankID int32
}

var _ Decoder = (*GreedyDecoder)(nil)

// NewGreedyDecoder returns a GreedyDecoder for the given CTC blank id.
func NewGreedyDecoder(blankID int32) *GreedyDecoder {
	return &GreedyDecoder{blankID: blankID}
}

// Decode returns exactly one hypothesis: the per-step argmax sequence,
// CTC-collapsed.
func (g *GreedyDecoder) Decode(emissions []float32, steps, vocab int) ([]DecoderOutput, error) {
	if g.blankID < 0 || int(g.blankID) >= vocab {
		return nil, invalidShapef("blank_id %d out of range [0, %d)", g.blankID, vocab)
	}

	view, err := emission.NewView(emissions, steps, vocab)
	if err != nil {
		return nil, invalidShapef("%s", err)
	}

	out := DecoderOutput{}

	lastToken := g.blankID
	for t := 0; t < steps; t++ {
		score, token := argmax(view.Row(t))
		out.Score += score

		if token != lastToken && token != g.blankID {
			out.Tokens = append(out.Tokens, token)
			out.Timesteps = append(out.Timesteps, t)
			out.AMScores = append(out.AMScores, score)
			out.LMScores = append(out.LMScores, 0)
		}
		lastToken = token
	}

	return []DecoderOutput{out}, nil
}

func argmax(row []float32) (score float32, token int32) {
	best := row[0]
	bestIdx := 0
	for i, v := range row {
		if v > best {
			best = v
			bestIdx = i
		}
	}
	return best, int32(bestIdx)
}
