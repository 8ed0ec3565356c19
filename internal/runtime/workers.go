package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/state"
)

// Exponential backoff for a source reporting ErrNoInputToReturn, grounded
// on fiddler::modules::inputs::{NO_INPUT_BACKOFF_MIN_US,
// NO_INPUT_BACKOFF_MAX_MS}: 1us doubling up to 10ms, reset to zero on the
// next successful read.
const (
	noInputBackoffMinUS = 1
	noInputBackoffMaxUS = 10_000
)

func noInputBackoff(count int) time.Duration {
	if count > 20 {
		count = 20
	}
	us := int64(noInputBackoffMinUS) << uint(count)
	if us > noInputBackoffMaxUS {
		us = noInputBackoffMaxUS
	}
	return time.Duration(us) * time.Microsecond
}

// shutdownMessageID addresses the Shutdown event every output worker emits
// once, on its way out, after its upstream channel closes.
const shutdownMessageID = "shutdown"

// trySendHandle and trySendMessage report false (without sending) once ctx
// is cancelled, so a worker blocked on a full downstream edge still
// unwinds promptly under a timeout or a sibling worker's failure.
func trySendHandle(ctx context.Context, ch chan<- fiddler.MessageHandle, h fiddler.MessageHandle) bool {
	select {
	case ch <- h:
		return true
	case <-ctx.Done():
		return false
	}
}

func trySendMessage(ctx context.Context, ch chan<- fiddler.InternalMessage, m fiddler.InternalMessage) bool {
	select {
	case ch <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

// runInput drives a single-message Input driver: read in a loop, register
// each arrival with the state tracker before forwarding it, and back off
// on ErrNoInputToReturn. Grounded on
// fiddler::modules::inputs::mod::run_input.
func runInput(ctx context.Context, in fiddler.Input, handles chan<- fiddler.MessageHandle, out chan<- fiddler.InternalMessage, log *zerolog.Logger) error {
	defer close(out)
	defer in.Close(context.Background())

	noInputCount := 0
	for {
		msg, cb, err := in.Read(ctx)
		switch {
		case err == nil:
			noInputCount = 0
			id, isStream, isClosing := handleIdentity(msg)
			handle := fiddler.MessageHandle{
				MessageID:  id,
				Callback:   cb,
				IsStream:   isStream,
				IsClosing:  isClosing,
				InputBytes: len(msg.Bytes),
			}
			if !trySendHandle(ctx, handles, handle) {
				return nil
			}
			if msg.Type == fiddler.Default {
				if !trySendMessage(ctx, out, fiddler.InternalMessage{Msg: msg, MessageID: id}) {
					return nil
				}
			}

		case errors.Is(err, fiddler.ErrNoInputToReturn):
			d := noInputBackoff(noInputCount)
			noInputCount++
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil
			}

		case errors.Is(err, fiddler.ErrEndOfInput):
			log.Debug().Msg("input reached end of input")
			return nil

		default:
			return errors.Wrap(err, "input read")
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// runInputBatch drives a batch Input driver, bracketing each returned
// batch with a BeginStream/EndStream pair of MessageHandles sharing a
// synthetic batch id, per
// fiddler::modules::inputs::mod::run_input_batch.
func runInputBatch(ctx context.Context, in fiddler.InputBatch, handles chan<- fiddler.MessageHandle, out chan<- fiddler.InternalMessage, log *zerolog.Logger) error {
	defer close(out)
	defer in.Close(context.Background())

	noInputCount := 0
	for {
		msgs, cb, err := in.ReadBatch(ctx)
		switch {
		case err == nil:
			noInputCount = 0
			batchID := uuid.NewString()
			if !trySendHandle(ctx, handles, fiddler.MessageHandle{MessageID: batchID, IsStream: true}) {
				return nil
			}
			for _, m := range msgs {
				id := uuid.NewString()
				if !trySendHandle(ctx, handles, fiddler.MessageHandle{
					MessageID:      id,
					ParentStreamID: batchID,
					InputBytes:     len(m.Bytes),
				}) {
					return nil
				}
				if m.Type == fiddler.Default {
					m.StreamID = batchID
					if !trySendMessage(ctx, out, fiddler.InternalMessage{Msg: m, MessageID: id}) {
						return nil
					}
				}
			}
			if !trySendHandle(ctx, handles, fiddler.MessageHandle{
				MessageID: batchID,
				IsStream:  true,
				IsClosing: true,
				Callback:  cb,
			}) {
				return nil
			}

		case errors.Is(err, fiddler.ErrNoInputToReturn):
			d := noInputBackoff(noInputCount)
			noInputCount++
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil
			}

		case errors.Is(err, fiddler.ErrEndOfInput):
			log.Debug().Msg("batch input reached end of input")
			return nil

		default:
			return errors.Wrap(err, "input read_batch")
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// handleIdentity derives the id a MessageHandle should carry for msg:
// a fresh uuid for Default messages, or the driver-supplied StreamID for
// a stream bracket.
func handleIdentity(msg *fiddler.Message) (id string, isStream, isClosing bool) {
	switch msg.Type {
	case fiddler.BeginStream:
		return msg.StreamID, true, false
	case fiddler.EndStream:
		return msg.StreamID, true, true
	default:
		return uuid.NewString(), false, false
	}
}

// runProcessor drives one worker of a processor stage. A Process call
// returning zero results is a filter: the worker emits EventFiltered and
// drops the message. A call returning N>=1 results emits (N-1) EventNew
// state events before forwarding every descendant downstream under the
// same message id and stream id, then one EventProcessed observability
// event. There is no retrieved fiddler::modules::processors::mod source in
// the pack (only its call site in runtime::pipeline survived retrieval),
// so this worker's shape is built from the black-box contract in spec.md
// rather than transliterated, styled after runInput/runOutput's
// select-driven loop and per-outcome event emission.
func runProcessor(ctx context.Context, p fiddler.Processor, in <-chan fiddler.InternalMessage, out chan<- fiddler.InternalMessage, events chan<- state.Event, log *zerolog.Logger) error {
	for {
		var msg fiddler.InternalMessage
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case msg, ok = <-in:
			if !ok {
				return nil
			}
		}

		results, err := p.Process(ctx, msg.Msg)
		switch {
		case err == nil:
			if len(results) == 0 {
				events <- state.Event{MessageID: msg.MessageID, Kind: state.EventFiltered}
				continue
			}
			for i := 0; i < len(results)-1; i++ {
				events <- state.Event{MessageID: msg.MessageID, Kind: state.EventNew}
			}
			for _, r := range results {
				r.StreamID = msg.Msg.StreamID
				if !trySendMessage(ctx, out, fiddler.InternalMessage{Msg: r, MessageID: msg.MessageID}) {
					return nil
				}
			}
			events <- state.Event{MessageID: msg.MessageID, Kind: state.EventProcessed}

		case errors.Is(err, fiddler.ErrConditionalCheckFailed):
			log.Debug().Str("message_id", msg.MessageID).Msg("processor conditional check failed")

		default:
			events <- state.Event{MessageID: msg.MessageID, Kind: state.EventProcessError, Err: err.Error()}
		}
	}
}

// runOutput drives a single-message Output worker. Grounded on
// fiddler::modules::outputs::mod::run_output.
func runOutput(ctx context.Context, o fiddler.Output, in <-chan fiddler.InternalMessage, events chan<- state.Event, log *zerolog.Logger) error {
	defer o.Close(context.Background())

	for {
		var msg fiddler.InternalMessage
		var ok bool
		select {
		case <-ctx.Done():
			events <- state.Event{MessageID: shutdownMessageID, Kind: state.EventShutdown}
			return nil
		case msg, ok = <-in:
			if !ok {
				events <- state.Event{MessageID: shutdownMessageID, Kind: state.EventShutdown}
				return nil
			}
		}

		err := o.Write(ctx, msg.Msg)
		switch {
		case err == nil:
			events <- state.Event{MessageID: msg.MessageID, Kind: state.EventOutput}
		case errors.Is(err, fiddler.ErrConditionalCheckFailed):
			log.Debug().Str("message_id", msg.MessageID).Msg("output conditional check failed")
		default:
			events <- state.Event{MessageID: msg.MessageID, Kind: state.EventOutputError, Err: err.Error()}
		}
	}
}

// runOutputBatch drives a batch Output worker: it collects into a batch
// until BatchSize is reached or Interval elapses since the last flush,
// whichever comes first, then calls WriteBatch once and reports Output or
// OutputError per member. Grounded on
// fiddler::modules::outputs::mod::{run_output_batch, process_batch}.
func runOutputBatch(ctx context.Context, o fiddler.OutputBatch, in <-chan fiddler.InternalMessage, events chan<- state.Event, log *zerolog.Logger) error {
	defer o.Close(context.Background())

	interval := time.Duration(o.Interval()) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	batchSize := o.BatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	for {
		batch := make([]fiddler.InternalMessage, 0, batchSize)
		deadline := time.Now().Add(interval)
		disconnected := false

	collect:
		for len(batch) < batchSize {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				disconnected = true
				break collect
			case msg, ok := <-in:
				timer.Stop()
				if !ok {
					disconnected = true
					break collect
				}
				batch = append(batch, msg)
			case <-timer.C:
				break collect
			}
		}

		if len(batch) > 0 {
			flushBatch(ctx, o, batch, events, log)
		}

		if disconnected {
			events <- state.Event{MessageID: shutdownMessageID, Kind: state.EventShutdown}
			return nil
		}
	}
}

func flushBatch(ctx context.Context, o fiddler.OutputBatch, batch []fiddler.InternalMessage, events chan<- state.Event, log *zerolog.Logger) {
	msgs := make([]*fiddler.Message, len(batch))
	for i, m := range batch {
		msgs[i] = m.Msg
	}

	err := o.WriteBatch(ctx, msgs)
	switch {
	case err == nil:
		for _, m := range batch {
			events <- state.Event{MessageID: m.MessageID, Kind: state.EventOutput}
		}
	case errors.Is(err, fiddler.ErrConditionalCheckFailed):
		log.Debug().Int("batch_size", len(batch)).Msg("batch output conditional check failed")
	default:
		for _, m := range batch {
			events <- state.Event{MessageID: m.MessageID, Kind: state.EventOutputError, Err: err.Error()}
		}
	}
}

// runMetrics polls the tracker's cumulative counters at the Metrics
// driver's configured Interval and reports the deltas. The original
// runtime::message_handler never wired its own "add counter and metrics
// dump" TODO to a Metrics backend; this finishes that wiring against
// Tracker.Counts.
func runMetrics(ctx context.Context, counts func() (uint64, uint64, uint64), m fiddler.Metrics, log *zerolog.Logger) error {
	defer m.Close(context.Background())

	interval := time.Duration(m.Interval()) * time.Second
	if interval <= 0 {
		interval = 300 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastProcessed, lastErrors, lastOutput uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			processed, errs, output := counts()
			if d := processed - lastProcessed; d > 0 {
				if err := m.ReportProcessed(ctx, d); err != nil {
					log.Warn().Err(err).Msg("report processed failed")
				}
			}
			if d := errs - lastErrors; d > 0 {
				if err := m.ReportErrors(ctx, d); err != nil {
					log.Warn().Err(err).Msg("report errors failed")
				}
			}
			if d := output - lastOutput; d > 0 {
				if err := m.ReportOutput(ctx, d); err != nil {
					log.Warn().Err(err).Msg("report output failed")
				}
			}
			lastProcessed, lastErrors, lastOutput = processed, errs, output
		}
	}
}
