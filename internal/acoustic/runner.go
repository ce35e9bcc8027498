// Package acoustic wraps an ONNX Runtime session that turns a
// pre-extracted feature tensor into raw CTC emission logits (spec.md
// §4.7). It is optional: the decoder package never imports it, and
// nothing here is required to run a decode call against a precomputed
// emission dump.
package acoustic

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-ctcdecode/internal/emission"
	"github.com/example/go-ctcdecode/internal/onnx"
)

// Config names the ONNX manifest entry a Runner binds to and the
// input/output tensor names its graph declares.
type Config struct {
	ManifestPath string
	GraphName    string
	InputName    string
	OutputName   string
	Runtime      onnx.RunnerConfig
}

// Runner drives a single named graph from an ONNX manifest, producing an
// emission matrix from a feature tensor set via SetFeatures.
type Runner struct {
	engine     *onnx.Engine
	graphName  string
	inputName  string
	outputName string

	features  []float32
	featShape []int64
}

var _ emission.Source = (*Runner)(nil)

// NewRunner loads the ONNX manifest at cfg.ManifestPath and binds to
// cfg.GraphName. It fails fast if the graph isn't present in the
// manifest, mirroring the construction-time LmLoad error style used
// elsewhere for external model loading.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.GraphName == "" {
		return nil, errors.New("acoustic: graph name is required")
	}
	if cfg.InputName == "" || cfg.OutputName == "" {
		return nil, errors.New("acoustic: input and output tensor names are required")
	}

	engine, err := onnx.NewEngine(cfg.ManifestPath, cfg.Runtime)
	if err != nil {
		return nil, fmt.Errorf("acoustic: load engine: %w", err)
	}

	if _, ok := engine.Runner(cfg.GraphName); !ok {
		engine.Close()
		return nil, fmt.Errorf("acoustic: graph %q not found in manifest", cfg.GraphName)
	}

	return &Runner{
		engine:     engine,
		graphName:  cfg.GraphName,
		inputName:  cfg.InputName,
		outputName: cfg.OutputName,
	}, nil
}

// Close releases the underlying ONNX Runtime session.
func (r *Runner) Close() {
	r.engine.Close()
}

// SetFeatures stores the feature tensor the next Emissions call runs
// against. shape is the ONNX input tensor's shape (e.g. [1, T, D]).
func (r *Runner) SetFeatures(data []float32, shape []int64) {
	r.features = data
	r.featShape = shape
}

// Emissions runs the bound graph against the stored feature tensor and
// returns its output as a row-major T×V emission matrix. It implements
// emission.Source.
func (r *Runner) Emissions() ([]float32, int, int, error) {
	if r.features == nil {
		return nil, 0, 0, errors.New("acoustic: no feature tensor set; call SetFeatures first")
	}

	return r.run(context.Background())
}

func (r *Runner) run(ctx context.Context) ([]float32, int, int, error) {
	runner, ok := r.engine.Runner(r.graphName)
	if !ok {
		return nil, 0, 0, fmt.Errorf("acoustic: graph %q not found", r.graphName)
	}

	input, err := onnx.NewTensor(r.features, r.featShape)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("acoustic: build input tensor: %w", err)
	}

	outputs, err := runner.Run(ctx, map[string]*onnx.Tensor{r.inputName: input})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("acoustic: run %q: %w", r.graphName, err)
	}

	out, ok := outputs[r.outputName]
	if !ok {
		return nil, 0, 0, fmt.Errorf("acoustic: output %q missing from %q results", r.outputName, r.graphName)
	}

	data, err := onnx.ExtractFloat32(out)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("acoustic: extract emissions: %w", err)
	}

	steps, vocab, err := logitShape(out.Shape())
	if err != nil {
		return nil, 0, 0, err
	}

	return data, steps, vocab, nil
}

// logitShape interprets an acoustic model's output tensor shape as
// (steps, vocab). Both rank-2 ([T, V]) and rank-3, batch-1 ([1, T, V])
// outputs are accepted.
func logitShape(shape []int64) (steps, vocab int, err error) {
	switch len(shape) {
	case 2:
		return int(shape[0]), int(shape[1]), nil
	case 3:
		if shape[0] != 1 {
			return 0, 0, fmt.Errorf("acoustic: batch size %d unsupported, only 1 is", shape[0])
		}

		return int(shape[1]), int(shape[2]), nil
	default:
		return 0, 0, fmt.Errorf("acoustic: unsupported output rank %d, want 2 or 3", len(shape))
	}
}
