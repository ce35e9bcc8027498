package lm

import (
	"fmt"

	"github.com/kho/fslm"

	"github.com/example/go-ctcdecode/internal/dict"
)

// NgramLM adapts a finite-state n-gram language model (fslm) to the LM[S]
// contract. It plays the role the reference project gives to its KenLM
// cgo binding: an external word-level LM, scored through a dict-index to
// lm-word-index table built once at construction (spec.md §6).
type NgramLM struct {
	model   *fslm.Model
	mapped  *fslm.MappedFile
	toWord  []fslm.WordId // dict index -> fslm word id, built once
	unknown fslm.WordId
}

// NewNgramLM loads a binary fslm model from path and builds the
// translation table from d's indices to the model's own word ids. Tokens
// present in d but not known to the model translate to the model's
// unknown-word id (an implementation detail of this backend, not of the
// core LM contract).
func NewNgramLM(path string, d *dict.Dict) (*NgramLM, error) {
	model, mapped, err := fslm.FromBinary(path)
	if err != nil {
		return nil, fmt.Errorf("ngram lm: load %q: %w", path, err)
	}

	unknown := model.Vocab.IdOf("<unk>")

	toWord := make([]fslm.WordId, d.Len())
	for i := 0; i < d.Len(); i++ {
		entry, err := d.Entry(int32(i))
		if err != nil {
			_ = mapped.Close()
			return nil, fmt.Errorf("ngram lm: build translation table: %w", err)
		}

		id := model.Vocab.IdOf(entry)
		if id == fslm.WORD_NIL {
			id = unknown
		}

		toWord[i] = id
	}

	return &NgramLM{model: model, mapped: mapped, toWord: toWord, unknown: unknown}, nil
}

// Close releases the memory-mapped model file.
func (l *NgramLM) Close() error {
	if l.mapped == nil {
		return nil
	}
	return l.mapped.Close()
}

func (l *NgramLM) word(token int32) fslm.WordId {
	if int(token) < 0 || int(token) >= len(l.toWord) {
		return l.unknown
	}
	return l.toWord[token]
}

var _ LM[fslm.StateId] = (*NgramLM)(nil)

// Start returns the model's sentence-begin state.
func (l *NgramLM) Start() fslm.StateId {
	return l.model.Start()
}

// Score returns the n-gram log-probability of token given state.
func (l *NgramLM) Score(state fslm.StateId, token int32) float32 {
	_, w := l.model.NextI(state, l.word(token))
	return float32(w)
}

// NextState returns the successor n-gram state after token.
func (l *NgramLM) NextState(state fslm.StateId, token int32) fslm.StateId {
	q, _ := l.model.NextI(state, l.word(token))
	return q
}

// Finish returns the model's sentence-end log-probability from state.
func (l *NgramLM) Finish(state fslm.StateId) float32 {
	return float32(l.model.Final(state))
}
