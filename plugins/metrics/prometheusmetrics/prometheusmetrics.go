// Package prometheusmetrics implements the Metrics plugin kind by
// exporting the runtime's cumulative processed/error/output counters over
// HTTP. Styled after AltairaLabs-PromptKit's Exporter (its own
// prometheus.Registry rather than the default global one, promhttp served
// off a dedicated mux, Go/process collectors registered alongside the
// domain metrics). There is no dedicated metrics module in the original
// Rust source to ground the counter shape on, so the three counters mirror
// this kernel's own Tracker.Counts fields directly.
package prometheusmetrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rc1405/fiddler-sub000/internal/registry"
)

const schemaJSON = `{
	"type": "object",
	"properties": {
		"address":  {"type": "string"},
		"interval_seconds": {"type": "integer"}
	},
	"additionalProperties": false
}`

const defaultInterval = 300

// Config describes where the Prometheus exporter listens and how often
// the runtime should poll it.
type Config struct {
	Address         string `json:"address"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// Driver implements fiddler.Metrics, reporting to three monotonic
// counters served at Address + "/metrics".
type Driver struct {
	registry  *prometheus.Registry
	processed prometheus.Counter
	errored   prometheus.Counter
	output    prometheus.Counter

	interval int

	mu     sync.Mutex
	server *http.Server
}

// New builds a Driver with its own Prometheus registry and starts serving
// /metrics at addr in the background. The returned error is always nil; a
// listener that fails to start is not reported.
func New(addr string, interval int) (*Driver, error) {
	reg := prometheus.NewRegistry()

	processed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fiddler",
		Name:      "messages_processed_total",
		Help:      "Total number of messages a processor stage reported Processed or Filtered.",
	})
	errored := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fiddler",
		Name:      "messages_errored_total",
		Help:      "Total number of messages that reported a process or output error.",
	})
	output := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fiddler",
		Name:      "messages_output_total",
		Help:      "Total number of messages successfully written by an output stage.",
	})

	reg.MustRegister(processed, errored, output)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	d := &Driver{
		registry:  reg,
		processed: processed,
		errored:   errored,
		output:    output,
		interval:  interval,
	}

	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		d.server = &http.Server{Addr: addr, Handler: mux}
		go func() {
			_ = d.server.ListenAndServe()
		}()
	}

	return d, nil
}

// ReportProcessed implements fiddler.Metrics.
func (d *Driver) ReportProcessed(ctx context.Context, n uint64) error {
	d.processed.Add(float64(n))
	return nil
}

// ReportErrors implements fiddler.Metrics.
func (d *Driver) ReportErrors(ctx context.Context, n uint64) error {
	d.errored.Add(float64(n))
	return nil
}

// ReportOutput implements fiddler.Metrics.
func (d *Driver) ReportOutput(ctx context.Context, n uint64) error {
	d.output.Add(float64(n))
	return nil
}

// Interval implements fiddler.Metrics.
func (d *Driver) Interval() int { return d.interval }

// Close implements fiddler.Closer, shutting down the HTTP listener if one
// was started.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server == nil {
		return nil
	}
	return d.server.Shutdown(ctx)
}

// Registry exposes the underlying Prometheus registry, for tests that
// want to scrape it directly without a live HTTP listener.
func (d *Driver) Registry() *prometheus.Registry { return d.registry }

// Register adds this driver under the name "prometheus" to reg.
func Register(reg *registry.Registry) error {
	return reg.Register(registry.KindMetrics, "prometheus", schemaJSON,
		func(ctx context.Context, configJSON []byte) (any, error) {
			var cfg Config
			if err := json.Unmarshal(configJSON, &cfg); err != nil {
				return nil, errors.Wrap(err, "prometheusmetrics config")
			}
			if cfg.IntervalSeconds <= 0 {
				cfg.IntervalSeconds = defaultInterval
			}
			return New(cfg.Address, cfg.IntervalSeconds)
		})
}
