package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestContextSendWithCorrelationUsesImmediateParent tests that each hop in a
// causal chain correlates to its immediate predecessor, not the chain's
// root, matching spec.md's worked multi-hop example (C2.correlation_id must
// equal C1.id, not R.id).
func TestContextSendWithCorrelationUsesImmediateParent(t *testing.T) {
	t.Parallel()

	stage1 := make(chan *Envelope[testEvent], 4)
	monitors := newMonitorDispatcher[testEvent, BroadcastTopic](8)
	lifeCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := newChannelMailbox[testEvent](1)
	ctxHandle := newContext[testEvent, BroadcastTopic](
		ActorID{Name: "producer", Tag: 1}, stage1, lifeCtx, cancel, mb, monitors,
	)

	_, err := ctxHandle.Send(testEvent{value: 0}).Unpack()
	require.NoError(t, err)
	root := <-stage1
	_, ok := root.CorrelationID()
	require.False(t, ok)

	_, err = ctxHandle.SendWithCorrelation(testEvent{value: 1}, root).Unpack()
	require.NoError(t, err)
	c1 := <-stage1

	corr, ok := c1.CorrelationID()
	require.True(t, ok)
	require.Equal(t, root.ID(), corr)

	_, err = ctxHandle.SendWithCorrelation(testEvent{value: 2}, c1).Unpack()
	require.NoError(t, err)
	c2 := <-stage1

	corr, ok = c2.CorrelationID()
	require.True(t, ok)
	require.Equal(t, c1.ID(), corr)
	require.NotEqual(t, root.ID(), corr)
}
