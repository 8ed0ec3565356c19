package runtime_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
	"github.com/rc1405/fiddler-sub000/internal/runtime"
)

type countingInput struct {
	mu        sync.Mutex
	remaining int
}

func (i *countingInput) Read(ctx context.Context) (*fiddler.Message, fiddler.CallbackChan, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.remaining <= 0 {
		return nil, nil, fiddler.ErrEndOfInput
	}
	i.remaining--
	cb := make(fiddler.CallbackChan, 1)
	return fiddler.NewMessage([]byte("hello")), cb, nil
}

func (i *countingInput) Close(ctx context.Context) error { return nil }

type upperProcessor struct{}

func (upperProcessor) Process(ctx context.Context, msg *fiddler.Message) ([]*fiddler.Message, error) {
	msg.Bytes = []byte(strings.ToUpper(string(msg.Bytes)))
	return []*fiddler.Message{msg}, nil
}

func (upperProcessor) Close(ctx context.Context) error { return nil }

type filterProcessor struct{}

func (filterProcessor) Process(ctx context.Context, msg *fiddler.Message) ([]*fiddler.Message, error) {
	if string(msg.Bytes) == "SKIP" {
		return nil, nil
	}
	return []*fiddler.Message{msg}, nil
}

func (filterProcessor) Close(ctx context.Context) error { return nil }

type collectingOutput struct {
	mu  sync.Mutex
	got [][]byte
}

func (o *collectingOutput) Write(ctx context.Context, msg *fiddler.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, msg.Bytes)
	return nil
}

func (o *collectingOutput) Close(ctx context.Context) error { return nil }

func (o *collectingOutput) snapshot() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([][]byte, len(o.got))
	copy(out, o.got)
	return out
}

func TestRuntime_EndToEndPipelineUppercases(t *testing.T) {
	reg := registry.New()
	out := &collectingOutput{}

	require.NoError(t, reg.Register(registry.KindInput, "counting", `{"type":"object"}`,
		func(ctx context.Context, _ []byte) (any, error) {
			return &countingInput{remaining: 3}, nil
		}))
	require.NoError(t, reg.Register(registry.KindProcessor, "upper", `{"type":"object"}`,
		func(ctx context.Context, _ []byte) (any, error) {
			return upperProcessor{}, nil
		}))
	require.NoError(t, reg.Register(registry.KindOutput, "collect", `{"type":"object"}`,
		func(ctx context.Context, _ []byte) (any, error) {
			return out, nil
		}))

	doc := `
num_threads: 1
input:
  counting: {}
processors:
  - upper: {}
output:
  collect: {}
`
	rt, err := runtime.FromConfig(reg, doc, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, rt.Run(ctx))

	got := out.snapshot()
	require.Len(t, got, 3)
	for _, b := range got {
		assert.Equal(t, "HELLO", string(b))
	}
}

type onceInput struct {
	mu   sync.Mutex
	msgs [][]byte
	i    int
}

func (in *onceInput) Read(ctx context.Context) (*fiddler.Message, fiddler.CallbackChan, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.i >= len(in.msgs) {
		return nil, nil, fiddler.ErrEndOfInput
	}
	b := in.msgs[in.i]
	in.i++
	cb := make(fiddler.CallbackChan, 1)
	return fiddler.NewMessage(b), cb, nil
}

func (in *onceInput) Close(ctx context.Context) error { return nil }

func TestRuntime_FilterProcessorDropsMessages(t *testing.T) {
	reg := registry.New()
	out := &collectingOutput{}
	in := &onceInput{msgs: [][]byte{[]byte("keep"), []byte("SKIP"), []byte("also keep")}}

	require.NoError(t, reg.Register(registry.KindInput, "once", `{"type":"object"}`,
		func(ctx context.Context, _ []byte) (any, error) { return in, nil }))
	require.NoError(t, reg.Register(registry.KindProcessor, "filter", `{"type":"object"}`,
		func(ctx context.Context, _ []byte) (any, error) { return filterProcessor{}, nil }))
	require.NoError(t, reg.Register(registry.KindOutput, "collect", `{"type":"object"}`,
		func(ctx context.Context, _ []byte) (any, error) { return out, nil }))

	doc := `
num_threads: 1
input:
  once: {}
processors:
  - filter: {}
output:
  collect: {}
`
	rt, err := runtime.FromConfig(reg, doc, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rt.Run(ctx))

	got := out.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "keep", string(got[0]))
	assert.Equal(t, "also keep", string(got[1]))
}

type fakeMetrics struct {
	mu     sync.Mutex
	closed bool
}

func (m *fakeMetrics) ReportProcessed(ctx context.Context, n uint64) error { return nil }
func (m *fakeMetrics) ReportErrors(ctx context.Context, n uint64) error    { return nil }
func (m *fakeMetrics) ReportOutput(ctx context.Context, n uint64) error    { return nil }
func (m *fakeMetrics) Interval() int                                      { return 300 }
func (m *fakeMetrics) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
func (m *fakeMetrics) wasClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// TestRuntime_ShutdownDelayFlushesMetricsThenStops exercises
// shutdown_delay/shutdown_timeout: once the pipeline drains, Run must
// stop the metrics worker (closing it) and return promptly rather than
// blocking forever on the metrics ticker's long reporting interval.
func TestRuntime_ShutdownDelayFlushesMetricsThenStops(t *testing.T) {
	reg := registry.New()
	out := &collectingOutput{}
	metrics := &fakeMetrics{}

	require.NoError(t, reg.Register(registry.KindInput, "counting", `{"type":"object"}`,
		func(ctx context.Context, _ []byte) (any, error) {
			return &countingInput{remaining: 2}, nil
		}))
	require.NoError(t, reg.Register(registry.KindOutput, "collect", `{"type":"object"}`,
		func(ctx context.Context, _ []byte) (any, error) { return out, nil }))
	require.NoError(t, reg.Register(registry.KindMetrics, "fake", `{"type":"object"}`,
		func(ctx context.Context, _ []byte) (any, error) { return metrics, nil }))

	doc := `
num_threads: 1
shutdown_delay: 10ms
shutdown_timeout: 1s
input:
  counting: {}
output:
  collect: {}
metrics:
  fake: {}
`
	rt, err := runtime.FromConfig(reg, doc, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, rt.Run(ctx))
	assert.True(t, metrics.wasClosed())
}
