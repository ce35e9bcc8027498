package emission

import (
	"encoding/json"
	"fmt"
	"os"
)

// Source produces an emission matrix triple on demand. The acoustic
// runner and FileSource both implement it so the decode command can be
// driven by either a live ONNX feature pass or a recorded dump.
type Source interface {
	Emissions() (data []float32, steps, vocab int, err error)
}

// FileSource loads a precomputed emission matrix from a JSON dump shaped
// {"steps": T, "vocab": V, "emissions": [...]}.
type FileSource struct {
	Path string
}

var _ Source = FileSource{}

// Emissions reads and parses the dump at Path.
func (f FileSource) Emissions() ([]float32, int, int, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("emission: read %q: %w", f.Path, err)
	}

	var dump struct {
		Steps     int       `json:"steps"`
		Vocab     int       `json:"vocab"`
		Emissions []float32 `json:"emissions"`
	}

	if err := json.Unmarshal(raw, &dump); err != nil {
		return nil, 0, 0, fmt.Errorf("emission: parse %q: %w", f.Path, err)
	}

	return dump.Emissions, dump.Steps, dump.Vocab, nil
}
