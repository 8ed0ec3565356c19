// Package runtime implements the runtime (C6): it turns a ParsedConfig
// into concrete driver instances, wires them into a chain of bounded
// channels, spawns the state tracker and every worker, and joins them
// with first-error-wins semantics.
//
// Grounded on fiddler::runtime::Runtime::{from_config, run, pipeline,
// output} in the Rust original. The Rust runtime joins its spawned tasks
// with a JoinSet whose join_next() surfaces the first task error; this
// package uses golang.org/x/sync/errgroup for the same contract, the idiom
// also used by re-cinq-wave's pipeline executor for its own worker
// fan-out.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/config"
	applog "github.com/rc1405/fiddler-sub000/internal/log"
	"github.com/rc1405/fiddler-sub000/internal/registry"
	"github.com/rc1405/fiddler-sub000/internal/state"
)

// chanDepth is the bounded capacity shared by every inter-stage edge: the
// source-into-pipeline edge, each processor edge, and the output edge.
// A slow stage therefore back-pressures every stage upstream of it.
const chanDepth = 1

// Runtime wires a registry-resolved ParsedConfig into a running pipeline.
// Construct with FromConfig, apply setters, then call Run exactly once.
type Runtime struct {
	reg *registry.Registry
	cfg config.ParsedConfig
	log *zerolog.Logger

	timeout time.Duration
}

// FromConfig runs C2 (template expansion, YAML parse, per-stage plugin
// resolution, schema validation) against raw using the plugins already
// registered in reg, and returns a Runtime ready for setters and Run. The
// caller registers plugins into reg exactly once at process start, the Go
// analogue of the Rust from_config's one-time register_plugins() call.
func FromConfig(reg *registry.Registry, raw string, log *zerolog.Logger) (*Runtime, error) {
	cfg, err := config.Parse(reg, raw)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = &zlog.Logger
	}
	return &Runtime{reg: reg, cfg: cfg, log: log}, nil
}

// SetLabel overrides the parsed document's label.
func (r *Runtime) SetLabel(label string) { r.cfg.Label = label }

// Label returns the runtime's current label.
func (r *Runtime) Label() string { return r.cfg.Label }

// SetNumThreads overrides num_threads for every processor stage and the
// output. Values less than 1 are ignored.
func (r *Runtime) SetNumThreads(n int) {
	if n > 0 {
		r.cfg.NumThreads = n
	}
}

// NumThreads returns the runtime's current worker count per stage.
func (r *Runtime) NumThreads() int { return r.cfg.NumThreads }

// SetTimeout configures an overall deadline. After it elapses, Run signals
// the input worker's kill switch only; downstream stages drain naturally
// as the closed input propagates end-of-input through the chain. Zero
// means no timeout.
func (r *Runtime) SetTimeout(d time.Duration) { r.timeout = d }

// SetInput overrides the parsed input stage.
func (r *Runtime) SetInput(stage registry.StageConfig, kind registry.Kind) {
	r.cfg.Input, r.cfg.InputKind = stage, kind
}

// SetOutput overrides the parsed output stage.
func (r *Runtime) SetOutput(stage registry.StageConfig, kind registry.Kind) {
	r.cfg.Output, r.cfg.OutputKind = stage, kind
}

// Run instantiates one input driver, num_threads copies of each processor
// stage and of the output (processors and outputs are built once per
// worker so no state is shared between workers of the same stage), wires
// them into the bounded channel chain output<-...<-input, spawns the
// state tracker and every worker, and blocks until they all finish,
// returning the first error any of them reported.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, forceClose := context.WithCancel(ctx)
	defer forceClose()
	g, gctx := errgroup.WithContext(ctx)

	tracker := state.New(r.cfg.NumThreads, applog.Component(r.log, "state"))
	trackerDone := make(chan struct{})
	g.Go(func() error {
		defer close(trackerDone)
		return tracker.Run(gctx)
	})

	outputDrivers, err := r.buildOutputs(gctx)
	if err != nil {
		return errors.Wrap(err, "build outputs")
	}
	procStages, err := r.buildProcessors(gctx)
	if err != nil {
		return errors.Wrap(err, "build processors")
	}
	inputDriver, err := r.buildInput(gctx)
	if err != nil {
		return errors.Wrap(err, "build input")
	}

	outCh := make(chan fiddler.InternalMessage, chanDepth)
	r.spawnOutputWorkers(g, gctx, tracker, outputDrivers, outCh)

	feed := outCh
	for i := len(procStages) - 1; i >= 0; i-- {
		inCh := make(chan fiddler.InternalMessage, chanDepth)
		r.spawnProcessorStage(g, gctx, tracker, procStages[i], inCh, feed)
		feed = inCh
	}

	cancelInput := r.spawnInput(g, gctx, tracker, inputDriver, feed)

	if r.cfg.HasMetrics {
		metricsDriver, err := r.buildMetrics(gctx)
		if err != nil {
			return errors.Wrap(err, "build metrics")
		}
		mlog := applog.Component(r.log, "metrics")
		metricsCtx, cancelMetrics := context.WithCancel(gctx)
		metricsDone := make(chan struct{})
		g.Go(func() error {
			defer close(metricsDone)
			return runMetrics(metricsCtx, tracker.Counts, metricsDriver, mlog)
		})
		// Shutdown sequencing: once the pipeline has fully drained, give
		// in-flight metrics reporting up to ShutdownDelay to settle before
		// telling the metrics worker to stop, then allow up to
		// ShutdownTimeout for that stop to complete before forcing the
		// whole run to close.
		g.Go(func() error {
			select {
			case <-trackerDone:
			case <-gctx.Done():
				return nil
			}
			select {
			case <-time.After(r.cfg.ShutdownDelay):
			case <-metricsDone:
				return nil
			case <-gctx.Done():
				return nil
			}
			cancelMetrics()
			select {
			case <-metricsDone:
			case <-gctx.Done():
			case <-time.After(r.cfg.ShutdownTimeout):
				r.log.Warn().Msg("shutdown_timeout elapsed before metrics stopped, forcing close")
				forceClose()
			}
			return nil
		})
	}

	if r.timeout > 0 {
		g.Go(func() error {
			timer := time.NewTimer(r.timeout)
			defer timer.Stop()
			select {
			case <-timer.C:
				r.log.Info().Dur("timeout", r.timeout).Msg("runtime timeout reached, closing input")
				cancelInput()
			case <-gctx.Done():
			}
			return nil
		})
	}

	return g.Wait()
}

// processorStage is one configured processor slot, fanned out across
// NumThreads independently constructed driver instances.
type processorStage struct {
	label   string
	drivers []fiddler.Processor
}

func (r *Runtime) buildInput(ctx context.Context) (any, error) {
	cfgJSON, err := r.cfg.Input.JSON()
	if err != nil {
		return nil, errors.Wrap(err, "input config")
	}
	return r.reg.Build(ctx, r.cfg.InputKind, r.cfg.Input.PluginName, cfgJSON)
}

func (r *Runtime) buildOutputs(ctx context.Context) ([]any, error) {
	cfgJSON, err := r.cfg.Output.JSON()
	if err != nil {
		return nil, errors.Wrap(err, "output config")
	}
	drivers := make([]any, r.cfg.NumThreads)
	for i := range drivers {
		built, err := r.reg.Build(ctx, r.cfg.OutputKind, r.cfg.Output.PluginName, cfgJSON)
		if err != nil {
			return nil, errors.Wrap(err, "output")
		}
		drivers[i] = built
	}
	return drivers, nil
}

func (r *Runtime) buildProcessors(ctx context.Context) ([]processorStage, error) {
	stages := make([]processorStage, len(r.cfg.Processors))
	for i, pc := range r.cfg.Processors {
		cfgJSON, err := pc.JSON()
		if err != nil {
			return nil, errors.Wrapf(err, "processors[%d] config", i)
		}
		drivers := make([]fiddler.Processor, r.cfg.NumThreads)
		for t := range drivers {
			built, err := r.reg.Build(ctx, registry.KindProcessor, pc.PluginName, cfgJSON)
			if err != nil {
				return nil, errors.Wrapf(err, "processors[%d]", i)
			}
			p, ok := built.(fiddler.Processor)
			if !ok {
				return nil, errors.Errorf("processors[%d]: %s did not build a Processor", i, pc.PluginName)
			}
			drivers[t] = p
		}
		stages[i] = processorStage{label: pc.Label, drivers: drivers}
	}
	return stages, nil
}

func (r *Runtime) buildMetrics(ctx context.Context) (fiddler.Metrics, error) {
	cfgJSON, err := r.cfg.Metrics.JSON()
	if err != nil {
		return nil, errors.Wrap(err, "metrics config")
	}
	built, err := r.reg.Build(ctx, registry.KindMetrics, r.cfg.Metrics.PluginName, cfgJSON)
	if err != nil {
		return nil, errors.Wrap(err, "metrics")
	}
	m, ok := built.(fiddler.Metrics)
	if !ok {
		return nil, errors.Errorf("metrics: %s did not build a Metrics driver", r.cfg.Metrics.PluginName)
	}
	return m, nil
}

// spawnOutputWorkers starts one goroutine per output driver instance,
// dispatching to the batch or single-message worker depending on which
// interface the driver implements.
func (r *Runtime) spawnOutputWorkers(g *errgroup.Group, ctx context.Context, tracker *state.Tracker, drivers []any, in <-chan fiddler.InternalMessage) {
	wlog := applog.Component(r.log, "output")
	for _, d := range drivers {
		d := d
		g.Go(func() error {
			switch o := d.(type) {
			case fiddler.OutputBatch:
				return runOutputBatch(ctx, o, in, tracker.Events(), wlog)
			case fiddler.Output:
				return runOutput(ctx, o, in, tracker.Events(), wlog)
			default:
				return errors.New("output driver implements neither Output nor OutputBatch")
			}
		})
	}
}

// spawnProcessorStage starts one goroutine per driver instance in stage,
// plus one closer goroutine that closes out only once every worker of
// this stage has returned, so the next stage downstream sees a clean
// channel close rather than a partial one.
func (r *Runtime) spawnProcessorStage(g *errgroup.Group, ctx context.Context, tracker *state.Tracker, stage processorStage, in <-chan fiddler.InternalMessage, out chan<- fiddler.InternalMessage) {
	wlog := applog.Component(r.log, "processor")
	if stage.label != "" {
		l := wlog.With().Str("stage", stage.label).Logger()
		wlog = &l
	}

	var wg sync.WaitGroup
	wg.Add(len(stage.drivers))
	for _, d := range stage.drivers {
		d := d
		g.Go(func() error {
			defer wg.Done()
			return runProcessor(ctx, d, in, out, tracker.Events(), wlog)
		})
	}
	g.Go(func() error {
		wg.Wait()
		close(out)
		return nil
	})
}

// spawnInput starts the single input worker against a context derived
// from parent, returning a cancel func the timeout watchdog (if any) uses
// to signal it alone without tearing down the rest of the group directly.
func (r *Runtime) spawnInput(g *errgroup.Group, parent context.Context, tracker *state.Tracker, driver any, out chan<- fiddler.InternalMessage) context.CancelFunc {
	inputCtx, cancel := context.WithCancel(parent)
	wlog := applog.Component(r.log, "input")
	g.Go(func() error {
		switch in := driver.(type) {
		case fiddler.InputBatch:
			return runInputBatch(inputCtx, in, tracker.Handles(), out, wlog)
		case fiddler.Input:
			return runInput(inputCtx, in, tracker.Handles(), out, wlog)
		default:
			close(out)
			return errors.New("input driver implements neither Input nor InputBatch")
		}
	})
	return cancel
}
