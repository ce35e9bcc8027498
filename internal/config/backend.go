package config

import (
	"fmt"
	"strings"
)

const (
	DecoderBackendGreedy     = "greedy"
	DecoderBackendBeamSearch = "beamsearch"
)

// NormalizeDecoderBackend lower-cases and validates a decoder backend name,
// defaulting an empty string to beam search.
func NormalizeDecoderBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = DecoderBackendBeamSearch
	}

	switch backend {
	case DecoderBackendGreedy, DecoderBackendBeamSearch:
		return backend, nil
	default:
		return "", fmt.Errorf("invalid decoder backend %q (expected %s|%s)", raw, DecoderBackendGreedy, DecoderBackendBeamSearch)
	}
}
