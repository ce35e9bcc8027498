package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/example/go-ctcdecode/internal/acoustic"
	"github.com/example/go-ctcdecode/internal/config"
	"github.com/example/go-ctcdecode/internal/decoder"
	"github.com/example/go-ctcdecode/internal/dict"
	"github.com/example/go-ctcdecode/internal/emission"
	"github.com/example/go-ctcdecode/internal/lm"
	"github.com/example/go-ctcdecode/internal/onnx"
	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	var (
		emissionsPath  string
		featuresPath   string
		onnxManifest   string
		onnxGraph      string
		onnxInputName  string
		onnxOutputName string
		onnxLibPath    string
		onnxVersion    string
		format         string
		nBest          int
	)

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode an emission matrix into token hypotheses, from either a precomputed dump or a live ONNX acoustic model",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if format != "text" && format != "json" {
				return fmt.Errorf("--format must be 'text' or 'json'")
			}
			if nBest < 1 {
				return fmt.Errorf("--n-best must be at least 1")
			}
			if onnxManifest == "" && featuresPath != "" {
				onnxManifest = cfg.Paths.ONNXManifest
			}

			source, closeSource, err := buildEmissionSource(emissionSourceOptions{
				emissionsPath:  emissionsPath,
				featuresPath:   featuresPath,
				onnxManifest:   onnxManifest,
				onnxGraph:      onnxGraph,
				onnxInputName:  onnxInputName,
				onnxOutputName: onnxOutputName,
				onnxLibPath:    onnxLibPath,
				onnxVersion:    onnxVersion,
			})
			if err != nil {
				return err
			}
			defer closeSource()

			dec, err := buildDecoder(cfg)
			if err != nil {
				return err
			}

			data, steps, vocab, err := source.Emissions()
			if err != nil {
				return fmt.Errorf("load emissions: %w", err)
			}

			hyps, err := dec.Decode(data, steps, vocab)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}

			if nBest < len(hyps) {
				hyps = hyps[:nBest]
			}

			var d *dict.Dict
			if cfg.Paths.DictPath != "" {
				if _, statErr := os.Stat(cfg.Paths.DictPath); statErr == nil {
					d, err = dict.Read(cfg.Paths.DictPath)
					if err != nil {
						return fmt.Errorf("read dict: %w", err)
					}
				}
			}

			switch format {
			case "json":
				return printDecodeJSON(os.Stdout, hyps)
			default:
				return printDecodeText(os.Stdout, hyps, d)
			}
		},
	}

	cmd.Flags().StringVar(&emissionsPath, "emissions", "", "Path to a JSON emission dump ({steps, vocab, emissions})")
	cmd.Flags().StringVar(&featuresPath, "onnx-features", "", "Path to a JSON feature tensor dump ({shape, data}) to run through the ONNX acoustic model")
	cmd.Flags().StringVar(&onnxManifest, "onnx-manifest", "", "Path to the acoustic model's ONNX manifest JSON (defaults to paths.onnx_manifest when --onnx-features is set)")
	cmd.Flags().StringVar(&onnxGraph, "onnx-graph", "acoustic_encoder", "Name of the manifest graph that produces emission logits")
	cmd.Flags().StringVar(&onnxInputName, "onnx-input", "features", "Name of the graph's feature input tensor")
	cmd.Flags().StringVar(&onnxOutputName, "onnx-output", "logits", "Name of the graph's emission output tensor")
	cmd.Flags().StringVar(&onnxLibPath, "onnx-lib", "", "Path to the ONNX Runtime shared library (overrides auto-detection)")
	cmd.Flags().StringVar(&onnxVersion, "onnx-version", "", "ONNX Runtime version override")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json")
	cmd.Flags().IntVar(&nBest, "n-best", 1, "Number of top hypotheses to print")

	return cmd
}

// emissionSourceOptions collects the decode command's two mutually exclusive
// ways to obtain an emission matrix: a precomputed dump, or a feature tensor
// run live through an ONNX acoustic model.
type emissionSourceOptions struct {
	emissionsPath  string
	featuresPath   string
	onnxManifest   string
	onnxGraph      string
	onnxInputName  string
	onnxOutputName string
	onnxLibPath    string
	onnxVersion    string
}

// buildEmissionSource picks the decode command's emission.Source: a live
// ONNX acoustic runner when --onnx-features/--onnx-manifest are set,
// otherwise a precomputed --emissions dump. The returned cleanup func
// always runs, even for the no-op dump path.
func buildEmissionSource(opts emissionSourceOptions) (emission.Source, func(), error) {
	noop := func() {}

	if opts.featuresPath != "" || opts.onnxManifest != "" {
		if opts.featuresPath == "" {
			return nil, noop, fmt.Errorf("--onnx-features is required when using an ONNX acoustic model")
		}
		if opts.onnxManifest == "" {
			return nil, noop, fmt.Errorf("--onnx-manifest (or paths.onnx_manifest) is required when using an ONNX acoustic model")
		}

		info, err := onnx.Bootstrap(onnx.RuntimeConfig{
			ORTLibraryPath: opts.onnxLibPath,
			ORTVersion:     opts.onnxVersion,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("detect onnx runtime: %w", err)
		}

		runner, err := acoustic.NewRunner(acoustic.Config{
			ManifestPath: opts.onnxManifest,
			GraphName:    opts.onnxGraph,
			InputName:    opts.onnxInputName,
			OutputName:   opts.onnxOutputName,
			Runtime: onnx.RunnerConfig{
				LibraryPath: info.LibraryPath,
			},
		})
		if err != nil {
			return nil, noop, fmt.Errorf("build acoustic runner: %w", err)
		}

		data, shape, err := loadFeatureTensor(opts.featuresPath)
		if err != nil {
			runner.Close()
			return nil, noop, err
		}
		runner.SetFeatures(data, shape)

		return runner, runner.Close, nil
	}

	if opts.emissionsPath == "" {
		return nil, noop, fmt.Errorf("either --emissions or --onnx-manifest/--onnx-features is required")
	}

	return emission.FileSource{Path: opts.emissionsPath}, noop, nil
}

// loadFeatureTensor reads a JSON dump shaped {"shape": [...], "data": [...]}
// describing the acoustic model's input tensor.
func loadFeatureTensor(path string) ([]float32, []int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %q: %w", path, err)
	}

	var dump struct {
		Shape []int64   `json:"shape"`
		Data  []float32 `json:"data"`
	}
	if err := json.Unmarshal(raw, &dump); err != nil {
		return nil, nil, fmt.Errorf("parse %q: %w", path, err)
	}

	return dump.Data, dump.Shape, nil
}

// buildDecoder constructs a decoder from cfg.Decoder, loading an n-gram LM
// when cfg.Paths.NgramModel is set.
func buildDecoder(cfg config.Config) (decoder.Decoder, error) {
	dc := cfg.Decoder

	backend, err := config.NormalizeDecoderBackend(dc.Backend)
	if err != nil {
		return nil, err
	}

	if backend == config.DecoderBackendGreedy {
		return decoder.NewGreedyDecoder(int32(dc.BlankID)), nil
	}

	opts := decoder.BeamSearchDecoderOptions{
		BeamSize:      dc.BeamSize,
		BeamSizeToken: dc.BeamSizeToken,
		BeamThreshold: float32(dc.BeamThreshold),
		LMWeight:      float32(dc.LMWeight),
	}

	if cfg.Paths.NgramModel == "" {
		return decoder.NewBeamSearchDecoder[lm.ZeroState](opts, int32(dc.BlankID), lm.ZeroLM{}), nil
	}

	if cfg.Paths.DictPath == "" {
		return nil, fmt.Errorf("paths.dict_path is required when paths.ngram_model is set")
	}

	d, err := dict.Read(cfg.Paths.DictPath)
	if err != nil {
		return nil, fmt.Errorf("read dict: %w", err)
	}

	model, err := lm.NewNgramLM(cfg.Paths.NgramModel, d)
	if err != nil {
		return nil, fmt.Errorf("load n-gram model: %w", err)
	}

	return decoder.NewBeamSearchDecoder(opts, int32(dc.BlankID), model), nil
}

func printDecodeJSON(w *os.File, hyps []decoder.DecoderOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(hyps)
}

func printDecodeText(w *os.File, hyps []decoder.DecoderOutput, d *dict.Dict) error {
	for i, h := range hyps {
		line := renderTokens(h.Tokens, d)
		_, err := fmt.Fprintf(w, "%d\t%.4f\t%s\n", i, h.Score, line)
		if err != nil {
			return err
		}
	}
	return nil
}

func renderTokens(tokens []int32, d *dict.Dict) string {
	if d == nil {
		parts := make([]string, len(tokens))
		for i, t := range tokens {
			parts[i] = fmt.Sprintf("%d", t)
		}
		return strings.Join(parts, " ")
	}

	parts := make([]string, len(tokens))
	for i, t := range tokens {
		entry, err := d.Entry(t)
		if err != nil {
			entry = fmt.Sprintf("<%d>", t)
		}
		parts[i] = entry
	}
	return strings.Join(parts, "")
}
