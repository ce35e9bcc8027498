package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/example/go-ctcdecode/internal/dict"
	"github.com/spf13/cobra"
)

func newDictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Build and inspect token dictionaries",
	}

	cmd.AddCommand(newDictBuildCmd())
	cmd.AddCommand(newDictInspectCmd())

	return cmd
}

func newDictBuildCmd() *cobra.Command {
	var (
		sentencepieceModel string
		out                string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a line-delimited token dictionary from a SentencePiece model",
		RunE: func(_ *cobra.Command, _ []string) error {
			if sentencepieceModel == "" {
				return fmt.Errorf("--sentencepiece-model is required")
			}
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			d, err := dict.LoadFromSentencePiece(sentencepieceModel)
			if err != nil {
				return fmt.Errorf("load sentencepiece model: %w", err)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %q: %w", out, err)
			}
			defer f.Close()

			w := bufio.NewWriter(f)
			for i := 0; i < d.Len(); i++ {
				entry, err := d.Entry(int32(i))
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(w, entry); err != nil {
					return err
				}
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write %q: %w", out, err)
			}

			fmt.Printf("wrote %d entries to %s\n", d.Len(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&sentencepieceModel, "sentencepiece-model", "", "Path to a SentencePiece .model file")
	cmd.Flags().StringVar(&out, "out", "", "Path to write the line-delimited dictionary")

	return cmd
}

func newDictInspectCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print dictionary size and sample entries",
		RunE: func(_ *cobra.Command, _ []string) error {
			if path == "" {
				return fmt.Errorf("--path is required")
			}

			d, err := dict.Read(path)
			if err != nil {
				return fmt.Errorf("read dict: %w", err)
			}

			fmt.Printf("entries: %d\n", d.Len())

			limit := d.Len()
			if limit > 20 {
				limit = 20
			}
			for i := 0; i < limit; i++ {
				entry, err := d.Entry(int32(i))
				if err != nil {
					return err
				}
				fmt.Printf("%6d  %q\n", i, entry)
			}
			if d.Len() > limit {
				fmt.Printf("... (%d more)\n", d.Len()-limit)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Path to a line-delimited token dictionary")

	return cmd
}
