package onnx

import (
	"context"
	"maps"
)

// GraphRunner is the minimal runner contract an Engine needs from a graph,
// e.g. the acoustic encoder that produces emission logits. It is useful for
// alternate runtimes (for example js/wasm bridge runners) that can't use
// the native ORT Runner.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

type runnerIface = GraphRunner

// NewEngineWithRunners builds an Engine from externally provided graph
// runners, bypassing manifest loading (useful for tests and alternate
// runtimes).
func NewEngineWithRunners(runners map[string]GraphRunner) *Engine {
	internal := make(map[string]GraphRunner, len(runners))
	maps.Copy(internal, runners)

	return &Engine{runners: internal}
}
