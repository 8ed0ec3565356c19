// Package state implements the state tracker (C5): a single goroutine that
// owns a map of live message/stream entries, applies lifecycle events to
// them, propagates events up a stream's parent chain, and fires each
// source-provided acknowledgement callback exactly once.
//
// Grounded on fiddler::runtime::{State, process_state, message_handler} in
// the Rust original, generalized from its free functions over a shared
// HashMap into methods on Tracker, and carrying one deliberate correction:
// the Rust message_handler never attaches an EndStream handle's callback
// to the stream entry before firing StreamComplete, so stream
// acknowledgements as originally written never fire. admit() here installs
// the EndStream handle's callback onto the entry first, per spec.md's
// "EndStream ... carries the final acknowledgement callback for the whole
// group."
//
// A second correction lives in EventFiltered: a processor that drops a
// message (zero replacement results) can never produce a later Output or
// OutputError for it, so the conservation invariant can only close that
// entry by retiring it from instance_count directly rather than waiting on
// a terminal event that will never come.
package state

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rc1405/fiddler-sub000"
)

// EventKind tags a lifecycle event processed by the tracker.
type EventKind int

const (
	EventNew EventKind = iota
	EventProcessed
	EventProcessError
	EventOutput
	EventOutputError
	EventStreamComplete
	EventShutdown
	EventFiltered
)

func (k EventKind) String() string {
	switch k {
	case EventNew:
		return "new"
	case EventProcessed:
		return "processed"
	case EventProcessError:
		return "process_error"
	case EventOutput:
		return "output"
	case EventOutputError:
		return "output_error"
	case EventStreamComplete:
		return "stream_complete"
	case EventShutdown:
		return "shutdown"
	case EventFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification addressed to a message or stream id.
type Event struct {
	MessageID string
	Kind      EventKind
	Err       string
}

type entry struct {
	instanceCount     int64
	processedCount    int64
	processErrorCount int64
	outputCount       int64
	outputErrorCount  int64
	callback          fiddler.CallbackChan
	errors            []string
	parentStreamID    string
	streamClosed      *bool // nil: not a stream; else Some(false)/Some(true)
}

func (e *entry) isStreamClosed() bool {
	if e.streamClosed == nil {
		return true
	}
	return *e.streamClosed
}

// errDone is returned internally by processEvent to signal the tracker
// should exit cleanly: every output worker has reported Shutdown.
var errDone = fmt.Errorf("state tracker done")

// Tracker is the C5 accountant. Construct with New and run it with Run in
// its own goroutine; feed it through the Handles and Events channels.
type Tracker struct {
	handles           chan fiddler.MessageHandle
	events            chan Event
	outputWorkerCount int
	closedOutputs     int
	log               *zerolog.Logger

	table map[string]*entry

	// Cumulative counters read by the runtime's metrics poller. They are
	// written only by the tracker goroutine and read with atomic loads
	// from any other goroutine, since the original Rust runtime never
	// wired its own "add counter and metrics dump" TODO through to a
	// Metrics backend and this kernel does.
	totalProcessed atomic.Uint64
	totalErrors    atomic.Uint64
	totalOutput    atomic.Uint64
}

// Counts returns the cumulative processed/error/output counters observed
// by the tracker so far, for polling by a Metrics driver.
func (t *Tracker) Counts() (processed, errs, output uint64) {
	return t.totalProcessed.Load(), t.totalErrors.Load(), t.totalOutput.Load()
}

// New returns a Tracker that exits once outputWorkerCount distinct
// Shutdown events have been received.
func New(outputWorkerCount int, log *zerolog.Logger) *Tracker {
	return &Tracker{
		handles:           make(chan fiddler.MessageHandle),
		events:            make(chan Event, 64),
		outputWorkerCount: outputWorkerCount,
		log:               log,
		table:             make(map[string]*entry),
	}
}

// Handles returns the channel the input worker sends MessageHandle
// arrivals on. It is unbuffered (bounded depth zero) so the input worker's
// send blocks until the tracker has registered the handle, satisfying
// spec.md's handle-before-lifecycle-event ordering requirement.
func (t *Tracker) Handles() chan<- fiddler.MessageHandle {
	return t.handles
}

// Events returns the channel processor and output workers send lifecycle
// events on.
func (t *Tracker) Events() chan<- Event {
	return t.events
}

// Run drives the tracker's main loop until every output worker has
// reported Shutdown, the context is cancelled, or a fatal error (duplicate
// message id, or a lifecycle event addressed to an unknown id) occurs.
//
// The select below gives handle arrivals priority over lifecycle events on
// every iteration where both are ready, the Go analogue of the Rust
// `tokio::select! { biased; ... }` used in message_handler: a non-blocking
// check of the handles channel runs first, and only falls through to the
// fair multi-way select when no handle is immediately available.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		select {
		case h, ok := <-t.handles:
			if ok {
				if err := t.admit(h); err != nil {
					if err == errDone {
						return nil
					}
					return err
				}
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case h, ok := <-t.handles:
			if !ok {
				continue
			}
			if err := t.admit(h); err != nil {
				if err == errDone {
					return nil
				}
				return err
			}
		case ev, ok := <-t.events:
			if !ok {
				continue
			}
			if err := t.processEvent(ev, true); err != nil {
				if err == errDone {
					return nil
				}
				return err
			}
		}
	}
}

// admit registers a newly observed message or stream arrival. EndStream
// markers (IsStream && IsClosing) do not register a new entry: they attach
// their callback (if the entry does not already have one) to the existing
// stream entry and fire a StreamComplete event against it.
func (t *Tracker) admit(h fiddler.MessageHandle) error {
	if h.IsStream && h.IsClosing {
		if e, ok := t.table[h.MessageID]; ok && e.callback == nil {
			e.callback = h.Callback
		}
		return t.processEvent(Event{MessageID: h.MessageID, Kind: EventStreamComplete}, true)
	}

	if _, exists := t.table[h.MessageID]; exists {
		return fiddler.ErrDuplicateMessageID
	}

	var sc *bool
	if h.IsStream {
		f := false
		sc = &f
	}
	t.table[h.MessageID] = &entry{
		instanceCount:  1,
		callback:       h.Callback,
		parentStreamID: h.ParentStreamID,
		streamClosed:   sc,
	}

	if h.ParentStreamID != "" {
		return t.processEvent(Event{MessageID: h.ParentStreamID, Kind: EventNew}, true)
	}
	return nil
}

// processEvent applies ev to its target entry, decides whether the entry
// terminates and its callback should fire, propagates the same event kind
// to the entry's parent stream (if any), and finally removes the entry
// if it terminated. top is true for events handed to the tracker directly
// (by a worker or by admit) and false for the synthetic copy propagated to
// a parent stream entry; the cumulative counters polled by metrics only
// count top-level events; otherwise a fan-out child's Output would be
// tallied twice, once for itself and once more for its parent stream.
func (t *Tracker) processEvent(ev Event, top bool) error {
	e, ok := t.table[ev.MessageID]
	if !ok {
		if ev.Kind == EventShutdown {
			t.closedOutputs++
			if t.closedOutputs == t.outputWorkerCount {
				return errDone
			}
			return nil
		}
		return fmt.Errorf("message id %s does not exist", ev.MessageID)
	}

	var removeEntry bool

	switch ev.Kind {
	case EventNew:
		e.instanceCount++

	case EventProcessed:
		e.processedCount++
		if top {
			t.totalProcessed.Add(1)
		}

	case EventFiltered:
		// A processor dropped this instance (0 results): it will never
		// reach an output stage, so it is retired from the denominator
		// rather than waiting on an Output/OutputError that will never
		// arrive. processed_count still counts it for observability.
		e.processedCount++
		e.instanceCount--
		if top {
			t.totalProcessed.Add(1)
		}
		if e.isStreamClosed() {
			if e.outputCount >= e.instanceCount {
				removeEntry = true
				t.fire(e, false)
			} else if e.outputCount+e.outputErrorCount+e.processErrorCount >= e.instanceCount {
				removeEntry = true
				t.fire(e, true)
			}
		}

	case EventProcessError:
		e.processErrorCount++
		e.errors = append(e.errors, ev.Err)
		if top {
			t.totalErrors.Add(1)
		}
		if e.isStreamClosed() && e.outputCount+e.outputErrorCount+e.processErrorCount >= e.instanceCount {
			removeEntry = true
			t.fire(e, true)
		}

	case EventOutput:
		e.outputCount++
		if top {
			t.totalOutput.Add(1)
		}
		if e.isStreamClosed() {
			// The conservation invariant (output_count+output_error_count+
			// process_error_count <= instance_count) means output_count alone
			// can only reach instance_count when no errors were ever recorded,
			// so this unconditionally fires Processed rather than Errored.
			if e.outputCount >= e.instanceCount {
				removeEntry = true
				t.fire(e, false)
			} else if e.outputCount+e.outputErrorCount+e.processErrorCount >= e.instanceCount {
				removeEntry = true
				t.fire(e, true)
			}
		}

	case EventOutputError:
		e.outputErrorCount++
		e.errors = append(e.errors, ev.Err)
		if top {
			t.totalErrors.Add(1)
		}
		if e.outputCount+e.outputErrorCount+e.processErrorCount >= e.instanceCount {
			removeEntry = e.isStreamClosed()
			if removeEntry {
				t.fire(e, true)
			}
		}

	case EventStreamComplete:
		closed := true
		e.streamClosed = &closed
		e.outputCount++
		if e.outputCount >= e.instanceCount {
			removeEntry = true
			t.fire(e, false)
		} else if e.outputCount+e.outputErrorCount+e.processErrorCount >= e.instanceCount {
			removeEntry = true
			t.fire(e, true)
		}

	case EventShutdown:
		t.closedOutputs++
		if t.closedOutputs == t.outputWorkerCount {
			return errDone
		}
		return nil
	}

	parent := e.parentStreamID
	if parent != "" {
		if err := t.processEvent(Event{MessageID: parent, Kind: ev.Kind, Err: ev.Err}, false); err != nil {
			return err
		}
	}

	if removeEntry {
		delete(t.table, ev.MessageID)
	}
	return nil
}

// fire sends the entry's terminal status over its callback exactly once,
// best-effort: a receiver that has stopped listening does not block the
// tracker.
func (t *Tracker) fire(e *entry, errored bool) {
	if e.callback == nil {
		return
	}
	cb := e.callback
	e.callback = nil

	status := fiddler.Processed()
	if errored {
		status = fiddler.Errors(e.errors)
		e.errors = nil
	}

	select {
	case cb <- status:
	default:
	}
}
