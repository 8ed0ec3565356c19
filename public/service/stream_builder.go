// Package service exposes a programmatic builder for assembling a
// pipeline document piece by piece instead of handing the runtime one
// complete YAML file, for callers embedding this kernel rather than
// shelling out to cmd/fiddler.
//
// Adapted from the teacher's public/service.StreamBuilder: the same
// incremental Add*YAML/SetYAML-then-Build shape, trimmed to the
// component kinds this kernel actually has (one input, an ordered list
// of processors, one output, optional metrics) and built directly on
// this kernel's own registry/config/runtime packages rather than a
// bundle.Environment of buffer/cache/ratelimit/tracer components that
// have no counterpart here.
package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	yaml "gopkg.in/yaml.v3"

	"github.com/rc1405/fiddler-sub000/internal/registry"
	"github.com/rc1405/fiddler-sub000/internal/runtime"
	"github.com/rc1405/fiddler-sub000/plugins/inputs/redisinput"
	"github.com/rc1405/fiddler-sub000/plugins/inputs/stdinput"
	"github.com/rc1405/fiddler-sub000/plugins/metrics/prometheusmetrics"
	"github.com/rc1405/fiddler-sub000/plugins/outputs/natsoutput"
	"github.com/rc1405/fiddler-sub000/plugins/outputs/stdoutput"
	"github.com/rc1405/fiddler-sub000/plugins/processors/filter"
	"github.com/rc1405/fiddler-sub000/plugins/processors/noop"
	"github.com/rc1405/fiddler-sub000/plugins/processors/script"
	"github.com/rc1405/fiddler-sub000/plugins/processors/transform"
)

// StreamBuilder assembles a pipeline document fragment by fragment.
// Construct with NewStreamBuilder, call its Set*/Add* methods in any
// order, then Build exactly once. A zero-value StreamBuilder is not
// usable.
type StreamBuilder struct {
	reg *registry.Registry

	label      string
	numThreads int
	timeout    time.Duration
	logger     *zerolog.Logger

	input      map[string]any
	processors []map[string]any
	output     map[string]any
	metrics    map[string]any

	rawDoc string
}

// NewStreamBuilder returns a StreamBuilder with every plugin this kernel
// ships (the demo drivers under plugins/) already registered, mirroring
// the teacher's implicit bundle.GlobalEnvironment of built-in components.
// Callers wiring their own plugins should use registry.New and
// runtime.FromConfig directly instead.
func NewStreamBuilder() (*StreamBuilder, error) {
	reg := registry.New()
	for _, register := range []func(*registry.Registry) error{
		stdinput.Register,
		stdoutput.Register,
		redisinput.Register,
		natsoutput.Register,
		prometheusmetrics.Register,
		filter.Register,
		transform.Register,
		script.Register,
		noop.Register,
	} {
		if err := register(reg); err != nil {
			return nil, errors.Wrap(err, "register builtin plugins")
		}
	}
	return &StreamBuilder{reg: reg, numThreads: 1}, nil
}

// SetLabel overrides the pipeline's label.
func (s *StreamBuilder) SetLabel(label string) { s.label = label }

// SetThreads sets the number of worker instances built for each
// processor stage and for the output.
func (s *StreamBuilder) SetThreads(n int) { s.numThreads = n }

// SetTimeout configures the overall run timeout passed to Runtime.SetTimeout.
func (s *StreamBuilder) SetTimeout(d time.Duration) { s.timeout = d }

// SetLogger overrides the logger threaded through the built runtime.
func (s *StreamBuilder) SetLogger(l *zerolog.Logger) { s.logger = l }

// SetYAML parses conf as a complete pipeline document and uses it
// verbatim at Build time, superseding any Add*YAML fragments configured
// before or after this call.
func (s *StreamBuilder) SetYAML(conf string) error {
	var probe map[string]any
	if err := yaml.Unmarshal([]byte(conf), &probe); err != nil {
		return errors.Wrap(err, "parse yaml")
	}
	s.rawDoc = conf
	return nil
}

// AddInputYAML parses conf as a single stage mapping (one plugin key,
// optional label) and sets it as the pipeline's input. This kernel has
// no input-broker concept, so a second call replaces rather than adds.
func (s *StreamBuilder) AddInputYAML(conf string) error {
	stage, err := decodeStageFragment(conf)
	if err != nil {
		return errors.Wrap(err, "input")
	}
	s.input = stage
	return nil
}

// AddProcessorYAML parses conf as a single stage mapping and appends it
// to the pipeline's ordered processor chain.
func (s *StreamBuilder) AddProcessorYAML(conf string) error {
	stage, err := decodeStageFragment(conf)
	if err != nil {
		return errors.Wrap(err, "processor")
	}
	s.processors = append(s.processors, stage)
	return nil
}

// AddOutputYAML parses conf as a single stage mapping and sets it as the
// pipeline's output. A second call replaces rather than adds, matching
// AddInputYAML.
func (s *StreamBuilder) AddOutputYAML(conf string) error {
	stage, err := decodeStageFragment(conf)
	if err != nil {
		return errors.Wrap(err, "output")
	}
	s.output = stage
	return nil
}

// AddMetricsYAML parses conf as a single stage mapping and sets it as the
// pipeline's metrics driver.
func (s *StreamBuilder) AddMetricsYAML(conf string) error {
	stage, err := decodeStageFragment(conf)
	if err != nil {
		return errors.Wrap(err, "metrics")
	}
	s.metrics = stage
	return nil
}

func decodeStageFragment(conf string) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal([]byte(conf), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Build assembles every configured fragment (or, if SetYAML was called,
// uses that document directly) into a complete pipeline document, runs
// it through the registry-resolving config parser, and returns a Stream
// ready for Run.
func (s *StreamBuilder) Build() (*Stream, error) {
	doc := s.rawDoc
	if doc == "" {
		assembled := map[string]any{
			"num_threads": s.numThreads,
		}
		if s.label != "" {
			assembled["label"] = s.label
		}
		if s.input != nil {
			assembled["input"] = s.input
		}
		if len(s.processors) > 0 {
			assembled["processors"] = s.processors
		}
		if s.output != nil {
			assembled["output"] = s.output
		}
		if s.metrics != nil {
			assembled["metrics"] = s.metrics
		}
		out, err := yaml.Marshal(assembled)
		if err != nil {
			return nil, errors.Wrap(err, "assemble document")
		}
		doc = string(out)
	}

	rt, err := runtime.FromConfig(s.reg, doc, s.logger)
	if err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		rt.SetTimeout(s.timeout)
	}
	return &Stream{rt: rt}, nil
}

// Stream is a built, not-yet-running pipeline.
type Stream struct {
	rt *runtime.Runtime
}

// Run blocks until the pipeline's input reaches end of input, ctx is
// cancelled, or a configured timeout elapses, returning the first error
// any worker reported.
func (st *Stream) Run(ctx context.Context) error {
	return st.rt.Run(ctx)
}
