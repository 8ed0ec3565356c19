// Package fiddler implements a declarative data-streaming pipeline kernel:
// a plugin registry, a YAML/JSON-Schema configuration validator, a small
// embedded scripting language, and a concurrent executor that wires input,
// processor, and output stages together with bounded channels and an
// at-least-once acknowledgement tracker.
package fiddler

// MessageType tags a Message as ordinary data or as a stream bracket.
type MessageType int

const (
	// Default is a normal data message that flows through the processor chain.
	Default MessageType = iota
	// BeginStream opens a logical group identified by StreamID. Never sent
	// to processors.
	BeginStream
	// EndStream closes a logical group and carries the group's final
	// acknowledgement callback. Never sent to processors.
	EndStream
)

func (t MessageType) String() string {
	switch t {
	case Default:
		return "default"
	case BeginStream:
		return "begin_stream"
	case EndStream:
		return "end_stream"
	default:
		return "unknown"
	}
}

// Status is the terminal disposition reported to a source over a
// CallbackChan.
type Status struct {
	// Errored is true when the message (or every message in a stream)
	// failed to process or output cleanly.
	Errored bool
	// Errors accumulates driver/processor error text when Errored is true.
	Errors []string
}

// Processed reports a successful terminal status with no errors.
func Processed() Status {
	return Status{}
}

// Errors reports a failed terminal status carrying the given error text.
func Errors(errs []string) Status {
	return Status{Errored: true, Errors: errs}
}

// CallbackChan is the one-shot channel a source supplies alongside a
// message so the kernel can report final status back upstream. It is
// move-only in spirit: the state tracker sends to it at most once, and a
// receiver that stops listening (closes or is garbage collected) must not
// block the sender, so callers should give it a buffer of at least 1.
type CallbackChan chan Status

// Message is the unit of data flowing through the pipeline: an opaque byte
// payload, string-keyed metadata of arbitrary YAML-shaped values, a type
// tag, and an optional stream identifier. Ownership is single-writer:
// whichever worker currently holds the message may mutate it in place.
type Message struct {
	Bytes    []byte
	Metadata map[string]any
	Type     MessageType
	StreamID string
}

// NewMessage builds a Default message with an initialized metadata map.
func NewMessage(b []byte) *Message {
	return &Message{
		Bytes:    b,
		Metadata: make(map[string]any),
		Type:     Default,
	}
}

// Copy returns a shallow duplicate of the message with its own metadata
// map, suitable for processors that fan a single input out to many
// descendants.
func (m *Message) Copy() *Message {
	md := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		md[k] = v
	}
	b := make([]byte, len(m.Bytes))
	copy(b, m.Bytes)
	return &Message{
		Bytes:    b,
		Metadata: md,
		Type:     m.Type,
		StreamID: m.StreamID,
	}
}

// InternalMessage is what flows on inter-stage channels: a Message plus the
// identity the state tracker uses to track it.
type InternalMessage struct {
	Msg       *Message
	MessageID string
}

// MessageHandle is the control record the input worker hands to the state
// tracker the moment it first observes a message, before forwarding any
// corresponding InternalMessage downstream.
type MessageHandle struct {
	MessageID      string
	Callback       CallbackChan
	ParentStreamID string
	IsStream       bool
	IsClosing      bool
	InputBytes     int
}
