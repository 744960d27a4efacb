// Package config collects the flat, CLI-facing parameter structs that
// pkg/tilegen hands down into pkg/builder and pkg/csp, so a command layer
// never needs to know those packages' internal types. Grounded on the
// teacher's pkg/generator/config.GenerationConfig: one struct per
// operation, gathering every tunable knob a CLI command exposes via flags.
package config

import (
	"github.com/loomward/tilegen/pkg/builder"
	"github.com/loomward/tilegen/pkg/connectivity"
)

// BuildConfig collects every parameter governing one training run: region
// geometry, the learning-rate schedule, and ingest semantics.
type BuildConfig struct {
	Radius               int
	Mode                 connectivity.Mode
	TrackedBorders       connectivity.BorderFlags
	AcknowledgeBounds    connectivity.BorderFlags
	InterpretEmptyAsTile bool
	LRStart, LREnd       float64
	Epochs               int
	BuildMode            builder.Mode
	Seed                 int64
}

// GenerateConfig collects every parameter governing one generation call.
type GenerateConfig struct {
	Temperature               float64
	Forceful                  bool
	Seed                      *int64
	EnforceBorderConnectivity connectivity.BorderFlags
}
