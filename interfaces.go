package fiddler

import "context"

// Closer is implemented by every driver kind; the runtime calls Close
// exactly once per driver instance on shutdown.
type Closer interface {
	Close(ctx context.Context) error
}

// Input reads one message at a time from a source. Read returns
// ErrEndOfInput for graceful termination and ErrNoInputToReturn for "try
// again later"; any other error is fatal to the pipeline.
type Input interface {
	Closer
	Read(ctx context.Context) (*Message, CallbackChan, error)
}

// InputBatch reads a logical batch of messages sharing one
// acknowledgement callback.
type InputBatch interface {
	Closer
	ReadBatch(ctx context.Context) ([]*Message, CallbackChan, error)
}

// Processor transforms one message into zero or more replacement messages.
// Returning an empty, nil-error slice filters the message. Returning
// ErrConditionalCheckFailed is a soft skip distinct from a hard failure.
type Processor interface {
	Closer
	Process(ctx context.Context, msg *Message) ([]*Message, error)
}

// Output writes a single message to a sink.
type Output interface {
	Closer
	Write(ctx context.Context, msg *Message) error
}

// OutputBatch accumulates messages and flushes them together. The runtime
// honors BatchSize and Interval as "flush on whichever comes first".
type OutputBatch interface {
	Closer
	WriteBatch(ctx context.Context, msgs []*Message) error
	BatchSize() int
	Interval() int
}

// Metrics is polled by the runtime at its configured Interval (seconds) to
// report pipeline-wide counters to a metrics back-end.
type Metrics interface {
	Closer
	ReportProcessed(ctx context.Context, n uint64) error
	ReportErrors(ctx context.Context, n uint64) error
	ReportOutput(ctx context.Context, n uint64) error
	Interval() int
}
