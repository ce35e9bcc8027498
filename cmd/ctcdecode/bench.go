package main

import (
	"fmt"
	"os"
	"time"

	"github.com/example/go-ctcdecode/internal/audio"
	"github.com/example/go-ctcdecode/internal/bench"
	"github.com/example/go-ctcdecode/internal/emission"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		emissionsPath string
		wavPath       string
		format        string
		runs          int
		warmup        int
		rtfThreshold  float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark decode latency against a precomputed emission dump",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if emissionsPath == "" {
				return fmt.Errorf("--emissions is required")
			}
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}

			dec, err := buildDecoder(cfg)
			if err != nil {
				return err
			}

			var refDuration time.Duration
			if wavPath != "" {
				wavBytes, err := os.ReadFile(wavPath)
				if err != nil {
					return fmt.Errorf("read reference wav: %w", err)
				}
				samples, err := audio.DecodeWAV(wavBytes)
				if err != nil {
					return fmt.Errorf("reference wav: %w", err)
				}
				refDuration = time.Duration(len(samples)) * time.Second / audio.ExpectedSampleRate
			}

			source := emission.FileSource{Path: emissionsPath}

			for i := 0; i < warmup; i++ {
				data, steps, vocab, err := source.Emissions()
				if err != nil {
					return fmt.Errorf("load emissions: %w", err)
				}
				if _, err := dec.Decode(data, steps, vocab); err != nil {
					return fmt.Errorf("warmup run %d: %w", i+1, err)
				}
			}

			runResults := make([]bench.RunResult, 0, runs)
			durations := make([]time.Duration, 0, runs)

			for i := 0; i < runs; i++ {
				data, steps, vocab, err := source.Emissions()
				if err != nil {
					return fmt.Errorf("load emissions: %w", err)
				}

				start := time.Now()
				if _, err := dec.Decode(data, steps, vocab); err != nil {
					return fmt.Errorf("run %d: %w", i+1, err)
				}
				d := time.Since(start)
				durations = append(durations, d)

				rtf := bench.CalcRTF(d, refDuration)
				runResults = append(runResults, bench.RunResult{
					Index:       i,
					Cold:        i == 0,
					Duration:    d,
					WAVDuration: refDuration,
					RTF:         rtf,
				})
			}

			stats := bench.ComputeStats(durations)

			switch format {
			case "json":
				bench.FormatJSON(runResults, stats, os.Stdout)
			default:
				bench.FormatTable(runResults, stats, os.Stdout)
			}

			if refDuration > 0 && rtfThreshold > 0 {
				meanRTF := bench.CalcRTF(stats.Mean, refDuration)
				if err := bench.CheckRTFThreshold(meanRTF, rtfThreshold); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&emissionsPath, "emissions", "", "Path to a JSON emission dump ({steps, vocab, emissions})")
	cmd.Flags().StringVar(&wavPath, "wav", "", "Optional reference WAV to compute a real-time factor against")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of profiled runs")
	cmd.Flags().IntVar(&warmup, "warmup", 1, "Number of warmup runs")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Fail if mean RTF exceeds this value (0 disables)")

	return cmd
}
