// Package scenario defines the named combinations of obfuscation
// transforms that an experiment compares against each other.
package scenario

import (
	"fmt"

	"github.com/gocircum/obfsmeter/core/obfuscation"
)

// Built-in scenario names.
const (
	Baseline   = "baseline"
	Encryption = "encryption"
	Padding    = "padding"
	Shaping    = "shaping"
)

// Builtins lists the built-in scenarios in reporting order.
var Builtins = []string{Baseline, Encryption, Padding, Shaping}

// Scenario is an immutable named set of transforms.
type Scenario struct {
	name       string
	transforms []obfuscation.Transform
	pipeline   *obfuscation.Pipeline
}

// New builds a Scenario. The transform list is copied.
func New(name string, transforms ...obfuscation.Transform) (Scenario, error) {
	if name == "" {
		return Scenario{}, fmt.Errorf("scenario name must not be empty")
	}
	pipeline, err := obfuscation.NewPipeline(transforms...)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario '%s': %w", name, err)
	}
	ts := make([]obfuscation.Transform, len(transforms))
	copy(ts, transforms)
	return Scenario{name: name, transforms: ts, pipeline: pipeline}, nil
}

// Name returns the scenario identifier.
func (s Scenario) Name() string {
	return s.name
}

// Transforms returns a copy of the transforms in declaration order.
func (s Scenario) Transforms() []obfuscation.Transform {
	out := make([]obfuscation.Transform, len(s.transforms))
	copy(out, s.transforms)
	return out
}

// Pipeline returns the composed transform pipeline.
func (s Scenario) Pipeline() *obfuscation.Pipeline {
	if s.pipeline == nil {
		empty, _ := obfuscation.NewPipeline()
		return empty
	}
	return s.pipeline
}

// IsBaseline reports whether the scenario applies no transform.
func (s Scenario) IsBaseline() bool {
	return len(s.transforms) == 0
}
