package dict

import (
	"fmt"
	"os"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// LoadFromSentencePiece builds a Dict whose indices are exactly the piece
// ids of a SentencePiece model, in model order. This lets a vocabulary
// shared with a SentencePiece-tokenized acoustic model be reused directly as
// the decoder's token-id space, instead of hand-authoring a flat dict file.
func LoadFromSentencePiece(modelPath string) (*Dict, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("dict: read sentencepiece model %q: %w", modelPath, err)
	}

	var model gosp.ModelProto
	if err := proto.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("dict: unmarshal sentencepiece model %q: %w", modelPath, err)
	}

	entries := make([]string, len(model.GetPieces()))
	for i, piece := range model.GetPieces() {
		entries[i] = piece.GetPiece()
	}

	d, err := FromEntries(entries)
	if err != nil {
		return nil, fmt.Errorf("dict: build from sentencepiece model %q: %w", modelPath, err)
	}

	return d, nil
}
