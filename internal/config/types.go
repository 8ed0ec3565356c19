// Package config implements the configuration validator (C2): template
// expansion, YAML parsing, per-stage plugin resolution against the
// registry, and JSON Schema validation, producing a ParsedConfig.
//
// The top-level shape generalizes the teacher's service Type{HTTP, stream,
// Logger, Metrics, Tracer, SystemCloseDelay, SystemCloseTimeout, Tests}
// struct to this kernel's narrower document: label, num_threads, metrics,
// input, processors, output, plus the same shutdown_delay/shutdown_timeout/
// tests passthrough fields.
package config

import (
	"runtime"
	"time"

	"github.com/rc1405/fiddler-sub000/internal/registry"
)

const (
	fieldLabel             = "label"
	fieldNumThreads        = "num_threads"
	fieldMetrics           = "metrics"
	fieldInput             = "input"
	fieldProcessors        = "processors"
	fieldOutput            = "output"
	fieldShutdownDelay     = "shutdown_delay"
	fieldShutdownTimeout   = "shutdown_timeout"
	fieldTests             = "tests"
	defaultMetricsInterval = 300
)

var (
	defaultShutdownDelay   = time.Duration(0)
	defaultShutdownTimeout = 20 * time.Second
)

// ParsedConfig is the validated, registry-resolved product of C2. None of
// its factories have been invoked yet; Runtime.Run does that.
type ParsedConfig struct {
	Label      string
	NumThreads int

	Input           registry.StageConfig
	InputKind       registry.Kind
	Processors      []registry.StageConfig
	Output          registry.StageConfig
	OutputKind      registry.Kind
	HasMetrics      bool
	Metrics         registry.StageConfig
	MetricsLabel    string
	MetricsInterval int

	ShutdownDelay   time.Duration
	ShutdownTimeout time.Duration
	Tests           []any
}

// NewParsedConfig returns a ParsedConfig with the documented defaults:
// num_threads defaults to the host CPU count, metrics interval to 300s,
// shutdown_delay to 0s and shutdown_timeout to 20s.
func NewParsedConfig() ParsedConfig {
	return ParsedConfig{
		NumThreads:      runtime.NumCPU(),
		MetricsInterval: defaultMetricsInterval,
		ShutdownDelay:   defaultShutdownDelay,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}
