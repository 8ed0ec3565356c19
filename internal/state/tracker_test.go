package state

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rc1405/fiddler-sub000"
)

func newTestTracker(outputWorkers int) *Tracker {
	l := zerolog.Nop()
	return New(outputWorkers, &l)
}

func runTracker(t *testing.T, tr *Tracker) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- tr.Run(context.Background())
	}()
	return done
}

func TestTracker_FanOutOneErrorFiresErroredOnce(t *testing.T) {
	tr := newTestTracker(1)
	done := runTracker(t, tr)

	cb := make(fiddler.CallbackChan, 1)
	tr.Handles() <- fiddler.MessageHandle{MessageID: "m1", Callback: cb}

	tr.Events() <- Event{MessageID: "m1", Kind: EventNew}
	tr.Events() <- Event{MessageID: "m1", Kind: EventNew}
	tr.Events() <- Event{MessageID: "m1", Kind: EventOutput}
	tr.Events() <- Event{MessageID: "m1", Kind: EventOutput}
	tr.Events() <- Event{MessageID: "m1", Kind: EventOutputError, Err: "e1"}

	select {
	case status := <-cb:
		require.True(t, status.Errored)
		assert.Equal(t, []string{"e1"}, status.Errors)
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	tr.Events() <- Event{MessageID: "out", Kind: EventShutdown}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tracker never exited")
	}
}

func TestTracker_StreamCompletionWaitsForAllChildren(t *testing.T) {
	tr := newTestTracker(1)
	done := runTracker(t, tr)

	tr.Handles() <- fiddler.MessageHandle{MessageID: "S", IsStream: true}
	tr.Handles() <- fiddler.MessageHandle{MessageID: "c1", ParentStreamID: "S"}
	tr.Handles() <- fiddler.MessageHandle{MessageID: "c2", ParentStreamID: "S"}

	tr.Events() <- Event{MessageID: "c1", Kind: EventOutput}
	tr.Events() <- Event{MessageID: "c2", Kind: EventOutput}

	cb := make(fiddler.CallbackChan, 1)
	tr.Handles() <- fiddler.MessageHandle{MessageID: "S", IsStream: true, IsClosing: true, Callback: cb}

	select {
	case status := <-cb:
		assert.False(t, status.Errored)
	case <-time.After(2 * time.Second):
		t.Fatal("stream callback never fired")
	}

	tr.Events() <- Event{MessageID: "out", Kind: EventShutdown}
	<-done
}

func TestTracker_StreamWithChildErrorFiresErrored(t *testing.T) {
	tr := newTestTracker(1)
	done := runTracker(t, tr)

	tr.Handles() <- fiddler.MessageHandle{MessageID: "S", IsStream: true}
	tr.Handles() <- fiddler.MessageHandle{MessageID: "c1", ParentStreamID: "S"}
	tr.Handles() <- fiddler.MessageHandle{MessageID: "c2", ParentStreamID: "S"}

	tr.Events() <- Event{MessageID: "c1", Kind: EventOutput}
	tr.Events() <- Event{MessageID: "c2", Kind: EventOutputError, Err: "oops"}

	cb := make(fiddler.CallbackChan, 1)
	tr.Handles() <- fiddler.MessageHandle{MessageID: "S", IsStream: true, IsClosing: true, Callback: cb}

	select {
	case status := <-cb:
		require.True(t, status.Errored)
		assert.Equal(t, []string{"oops"}, status.Errors)
	case <-time.After(2 * time.Second):
		t.Fatal("stream callback never fired")
	}

	tr.Events() <- Event{MessageID: "out", Kind: EventShutdown}
	<-done
}

func TestTracker_DuplicateMessageIDIsFatal(t *testing.T) {
	tr := newTestTracker(1)
	done := runTracker(t, tr)

	tr.Handles() <- fiddler.MessageHandle{MessageID: "dup"}
	tr.Handles() <- fiddler.MessageHandle{MessageID: "dup"}

	select {
	case err := <-done:
		require.ErrorIs(t, err, fiddler.ErrDuplicateMessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("tracker should have aborted fatally")
	}
}

func TestTracker_FilteredMessageFiresProcessedWithoutOutput(t *testing.T) {
	tr := newTestTracker(1)
	done := runTracker(t, tr)

	cb := make(fiddler.CallbackChan, 1)
	tr.Handles() <- fiddler.MessageHandle{MessageID: "m1", Callback: cb}
	tr.Events() <- Event{MessageID: "m1", Kind: EventFiltered}

	select {
	case status := <-cb:
		assert.False(t, status.Errored)
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	tr.Events() <- Event{MessageID: "out", Kind: EventShutdown}
	<-done
}

func TestTracker_FilteredChildInStreamDecrementsInstanceCount(t *testing.T) {
	tr := newTestTracker(1)
	done := runTracker(t, tr)

	tr.Handles() <- fiddler.MessageHandle{MessageID: "S", IsStream: true}
	tr.Handles() <- fiddler.MessageHandle{MessageID: "c1", ParentStreamID: "S"}
	tr.Handles() <- fiddler.MessageHandle{MessageID: "c2", ParentStreamID: "S"}

	tr.Events() <- Event{MessageID: "c1", Kind: EventOutput}
	tr.Events() <- Event{MessageID: "c2", Kind: EventFiltered}

	cb := make(fiddler.CallbackChan, 1)
	tr.Handles() <- fiddler.MessageHandle{MessageID: "S", IsStream: true, IsClosing: true, Callback: cb}

	select {
	case status := <-cb:
		assert.False(t, status.Errored)
	case <-time.After(2 * time.Second):
		t.Fatal("stream callback never fired")
	}

	tr.Events() <- Event{MessageID: "out", Kind: EventShutdown}
	<-done
}

func TestTracker_SimpleMessageNoErrorsFiresProcessed(t *testing.T) {
	tr := newTestTracker(1)
	done := runTracker(t, tr)

	cb := make(fiddler.CallbackChan, 1)
	tr.Handles() <- fiddler.MessageHandle{MessageID: "m1", Callback: cb}
	tr.Events() <- Event{MessageID: "m1", Kind: EventProcessed}
	tr.Events() <- Event{MessageID: "m1", Kind: EventOutput}

	select {
	case status := <-cb:
		assert.False(t, status.Errored)
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	tr.Events() <- Event{MessageID: "out", Kind: EventShutdown}
	<-done
}
