// Package stageprof implements a stage-timed micro-benchmark for the CTC
// decode path: load emissions, decode, and (optionally) compare the decode
// time against a reference WAV's duration to report a real-time factor.
package stageprof

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/kho/fslm"

	"github.com/example/go-ctcdecode/internal/bench"
	"github.com/example/go-ctcdecode/internal/config"
	"github.com/example/go-ctcdecode/internal/decoder"
	"github.com/example/go-ctcdecode/internal/dict"
	"github.com/example/go-ctcdecode/internal/emission"
	"github.com/example/go-ctcdecode/internal/lm"
)

type timings struct {
	load   time.Duration
	decode time.Duration
	total  time.Duration
	steps  int
	vocab  int
	tokens int
}

func Main() {
	var (
		emissionsPath string
		wavPath       string
		backend       string
		dictPath      string
		ngramModel    string
		blankID       int
		beamSize      int
		beamSizeToken int
		beamThreshold float64
		lmWeight      float64
		runs          int
		warmup        int
		cpuprofile    string
		debugLogs     bool
	)
	flag.StringVar(&emissionsPath, "emissions", "", "path to a JSON emission dump ({steps, vocab, emissions})")
	flag.StringVar(&wavPath, "wav", "", "optional reference WAV to compute RTF against")
	flag.StringVar(&backend, "backend", config.DecoderBackendBeamSearch, "decoder backend (greedy|beamsearch)")
	flag.StringVar(&dictPath, "dict", "", "token dictionary path (required for n-gram fusion)")
	flag.StringVar(&ngramModel, "ngram-model", "", "optional fslm binary for n-gram fusion")
	flag.IntVar(&blankID, "blank-id", 0, "CTC blank token id")
	flag.IntVar(&beamSize, "beam-size", 25, "beam width (hypotheses)")
	flag.IntVar(&beamSizeToken, "beam-size-token", 100, "beam width (per-step token candidates)")
	flag.Float64Var(&beamThreshold, "beam-threshold", 25.0, "beam pruning log-prob threshold")
	flag.Float64Var(&lmWeight, "lm-weight", 0.0, "n-gram LM fusion weight")
	flag.IntVar(&runs, "runs", 5, "number of profiled runs")
	flag.IntVar(&warmup, "warmup", 1, "number of warmup runs")
	flag.StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile")
	flag.BoolVar(&debugLogs, "debug-logs", false, "enable debug logs from decode stages")
	flag.Parse()

	if debugLogs {
		slog.SetDefault(
			slog.New(
				slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
			),
		)
	}

	if emissionsPath == "" {
		fatalf("--emissions is required")
	}
	if runs < 1 {
		fatalf("--runs must be >= 1")
	}

	dec, err := buildDecoder(backend, blankID, beamSize, beamSizeToken, beamThreshold, lmWeight, dictPath, ngramModel)
	if err != nil {
		fatalf("build decoder: %v", err)
	}

	var refDuration time.Duration
	if wavPath != "" {
		wavBytes, err := os.ReadFile(wavPath)
		if err != nil {
			fatalf("read reference wav: %v", err)
		}
		refDuration, err = bench.WAVDuration(wavBytes)
		if err != nil {
			fatalf("reference wav duration: %v", err)
		}
	}

	for i := range warmup {
		_, err := runOnce(dec, emissionsPath)
		if err != nil {
			fatalf("warmup run %d failed: %v", i+1, err)
		}
	}

	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			fatalf("create cpuprofile: %v", err)
		}
		defer f.Close()

		err = pprof.StartCPUProfile(f)
		if err != nil {
			fatalf("start cpuprofile: %v", err)
		}

		defer pprof.StopCPUProfile()
	}

	var agg timings

	for i := range runs {
		t, err := runOnce(dec, emissionsPath)
		if err != nil {
			fatalf("profiled run %d failed: %v", i+1, err)
		}

		agg.load += t.load
		agg.decode += t.decode
		agg.total += t.total
		agg.steps = t.steps
		agg.vocab = t.vocab
		agg.tokens = t.tokens
	}

	div := float64(runs)
	avgLoad := agg.load.Seconds() * 1000 / div
	avgDecode := agg.decode.Seconds() * 1000 / div
	avgTotal := agg.total.Seconds() * 1000 / div

	fmt.Printf("backend: %s\n", backend)
	fmt.Printf("emissions: %s\n", emissionsPath)
	fmt.Printf("runs: %d (warmup %d)\n", runs, warmup)
	fmt.Printf("steps: %d  vocab: %d  tokens: %d\n", agg.steps, agg.vocab, agg.tokens)
	fmt.Printf("avg_load_ms: %.2f\n", avgLoad)
	fmt.Printf("avg_decode_ms: %.2f\n", avgDecode)
	fmt.Printf("avg_total_ms: %.2f\n", avgTotal)

	if avgTotal > 0 {
		fmt.Printf("share_load_pct: %.2f\n", 100*avgLoad/avgTotal)
		fmt.Printf("share_decode_pct: %.2f\n", 100*avgDecode/avgTotal)
	}

	if refDuration > 0 {
		rtf := bench.CalcRTF(time.Duration(agg.decode.Nanoseconds()/int64(runs)), refDuration)
		fmt.Printf("reference_audio_ms: %.2f\n", refDuration.Seconds()*1000)
		fmt.Printf("rtf: %.3f\n", rtf)
	}
}

func buildDecoder(backend string, blankID, beamSize, beamSizeToken int, beamThreshold, lmWeight float64, dictPath, ngramModel string) (decoder.Decoder, error) {
	norm, err := config.NormalizeDecoderBackend(backend)
	if err != nil {
		return nil, err
	}

	if norm == config.DecoderBackendGreedy {
		return decoder.NewGreedyDecoder(int32(blankID)), nil
	}

	opts := decoder.BeamSearchDecoderOptions{
		BeamSize:      beamSize,
		BeamSizeToken: beamSizeToken,
		BeamThreshold: float32(beamThreshold),
		LMWeight:      float32(lmWeight),
	}

	if ngramModel == "" {
		return decoder.NewBeamSearchDecoder[lm.ZeroState](opts, int32(blankID), lm.ZeroLM{}), nil
	}

	if dictPath == "" {
		return nil, fmt.Errorf("--dict is required when --ngram-model is set")
	}

	d, err := dict.Read(dictPath)
	if err != nil {
		return nil, fmt.Errorf("read dict: %w", err)
	}

	model, err := lm.NewNgramLM(ngramModel, d)
	if err != nil {
		return nil, fmt.Errorf("load n-gram model: %w", err)
	}

	return decoder.NewBeamSearchDecoder[fslm.StateId](opts, int32(blankID), model), nil
}

func runOnce(dec decoder.Decoder, emissionsPath string) (timings, error) {
	var out timings
	startTotal := time.Now()
	ctx := context.Background()

	var data []float32
	var steps, vocab int
	var loadErr error

	pprof.Do(ctx, pprof.Labels("stage", "load"), func(context.Context) {
		start := time.Now()
		data, steps, vocab, loadErr = emission.FileSource{Path: emissionsPath}.Emissions()
		out.load = time.Since(start)
	})
	if loadErr != nil {
		return out, fmt.Errorf("load emissions: %w", loadErr)
	}

	var hyps []decoder.DecoderOutput
	var decodeErr error

	pprof.Do(ctx, pprof.Labels("stage", "decode"), func(context.Context) {
		start := time.Now()
		hyps, decodeErr = dec.Decode(data, steps, vocab)
		out.decode = time.Since(start)
	})
	if decodeErr != nil {
		return out, fmt.Errorf("decode: %w", decodeErr)
	}

	if len(hyps) > 0 {
		out.tokens = len(hyps[0].Tokens)
	}

	out.total = time.Since(startTotal)
	out.steps = steps
	out.vocab = vocab

	return out, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
