package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testEvent struct {
	BaseEvent
	value int
}

func (e testEvent) EventType() string { return "testEvent" }

// TestChannelMailboxSend tests that Send successfully delivers an envelope
// and it can be read back off Envelopes().
func TestChannelMailboxSend(t *testing.T) {
	t.Parallel()

	mailbox := newChannelMailbox[testEvent](10)
	defer mailbox.Close()

	env := newEnvelope[testEvent](testEvent{value: 42}, CorrelationID{})

	ok := mailbox.Send(context.Background(), env)
	require.True(t, ok, "Send should succeed")

	received := <-mailbox.Envelopes()
	require.Equal(t, 42, received.Event().value)
}

// TestChannelMailboxSendContextCancelled tests that Send returns false once
// the caller's context is already cancelled and the mailbox is full.
func TestChannelMailboxSendContextCancelled(t *testing.T) {
	t.Parallel()

	mailbox := newChannelMailbox[testEvent](1)
	defer mailbox.Close()

	first := newEnvelope[testEvent](testEvent{value: 1}, CorrelationID{})
	require.True(t, mailbox.TrySend(first))

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	second := newEnvelope[testEvent](testEvent{value: 2}, CorrelationID{})
	ok := mailbox.Send(cancelledCtx, second)
	require.False(t, ok)
}

// TestChannelMailboxTrySendFull tests that TrySend fails non-blockingly once
// the mailbox is at capacity.
func TestChannelMailboxTrySendFull(t *testing.T) {
	t.Parallel()

	mailbox := newChannelMailbox[testEvent](1)
	defer mailbox.Close()

	require.True(t, mailbox.TrySend(newEnvelope[testEvent](testEvent{value: 1}, CorrelationID{})))
	require.False(t, mailbox.TrySend(newEnvelope[testEvent](testEvent{value: 2}, CorrelationID{})))
}

// TestChannelMailboxCloseIdempotent tests that Close can be called multiple
// times and from multiple goroutines without panicking.
func TestChannelMailboxCloseIdempotent(t *testing.T) {
	t.Parallel()

	mailbox := newChannelMailbox[testEvent](4)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			mailbox.Close()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	require.True(t, mailbox.IsClosed())
}

// TestChannelMailboxSendAfterCloseFails tests that Send and TrySend both
// fail, without panicking, once the mailbox has been closed.
func TestChannelMailboxSendAfterCloseFails(t *testing.T) {
	t.Parallel()

	mailbox := newChannelMailbox[testEvent](1)
	mailbox.Close()

	require.False(t, mailbox.TrySend(newEnvelope[testEvent](testEvent{}, CorrelationID{})))
	require.False(t, mailbox.Send(context.Background(), newEnvelope[testEvent](testEvent{}, CorrelationID{})))
}

// TestChannelMailboxDrain tests that Drain yields every envelope left
// buffered after Close, and nothing once empty.
func TestChannelMailboxDrain(t *testing.T) {
	t.Parallel()

	mailbox := newChannelMailbox[testEvent](4)
	for i := 0; i < 3; i++ {
		require.True(t, mailbox.TrySend(newEnvelope[testEvent](testEvent{value: i}, CorrelationID{})))
	}
	mailbox.Close()

	var drained []int
	for env := range mailbox.Drain() {
		drained = append(drained, env.Event().value)
	}
	require.Equal(t, []int{0, 1, 2}, drained)

	// A second Drain pass yields nothing further.
	count := 0
	for range mailbox.Drain() {
		count++
	}
	require.Zero(t, count)
}

// TestChannelMailboxReceiveStopsOnCancel tests that Receive's iterator
// returns once ctx is cancelled, even with no envelope ever sent.
func TestChannelMailboxReceiveStopsOnCancel(t *testing.T) {
	t.Parallel()

	mailbox := newChannelMailbox[testEvent](1)
	defer mailbox.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	seen := 0
	for range mailbox.Receive(ctx) {
		seen++
	}
	require.Zero(t, seen)
}
