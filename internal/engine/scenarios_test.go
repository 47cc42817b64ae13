package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scenarioPinger kicks off a ping/pong round trip and stops itself once it
// has seen enough replies.
type scenarioPinger struct {
	ctx    *Context[testEvent, BroadcastTopic]
	target int
	done   chan struct{}

	mu   sync.Mutex
	seen int
}

func (a *scenarioPinger) OnStart(context.Context) error {
	_, err := a.ctx.Send(testEvent{value: 0}).Unpack()
	return err
}

func (a *scenarioPinger) HandleEvent(_ context.Context, env *Envelope[testEvent]) error {
	if env.Event().value%2 == 0 {
		// Pings are even, pongs odd; ignore our own pings echoed by
		// nobody (self-delivery is already suppressed by the broker).
		return nil
	}

	a.mu.Lock()
	a.seen++
	done := a.seen >= a.target
	a.mu.Unlock()

	if done {
		close(a.done)
		a.ctx.Stop()
		return nil
	}

	_, err := a.ctx.SendWithCorrelation(testEvent{value: env.Event().value + 1}, env).Unpack()
	return err
}

// scenarioPonger replies to every even (ping) value with the next odd
// (pong) value.
type scenarioPonger struct {
	ctx *Context[testEvent, BroadcastTopic]
}

func (a *scenarioPonger) HandleEvent(_ context.Context, env *Envelope[testEvent]) error {
	if env.Event().value%2 != 0 {
		return nil
	}
	_, err := a.ctx.SendWithCorrelation(testEvent{value: env.Event().value + 1}, env).Unpack()
	return err
}

// TestScenarioPingPongRoundTrip tests the full ping-pong exchange: two
// actors volleying correlated events until the initiator has seen enough
// replies, then a clean shutdown.
func TestScenarioPingPongRoundTrip(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor[testEvent, BroadcastTopic](
		NewBroadcastContract(PolicyFail), DefaultConfig(),
	)
	harness := NewHarness[testEvent, BroadcastTopic]()
	sup.AddMonitor(harness)

	done := make(chan struct{})

	_, err := sup.AddActor(ActorSpec[testEvent, BroadcastTopic]{
		Name:          "ponger",
		Subscriptions: []BroadcastTopic{{}},
		Factory: func(c *Context[testEvent, BroadcastTopic]) Behavior[testEvent] {
			return &scenarioPonger{ctx: c}
		},
	})
	require.NoError(t, err)

	_, err = sup.AddActor(ActorSpec[testEvent, BroadcastTopic]{
		Name:          "pinger",
		Subscriptions: []BroadcastTopic{{}},
		Factory: func(c *Context[testEvent, BroadcastTopic]) Behavior[testEvent] {
			return &scenarioPinger{ctx: c, target: 5, done: done}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ping-pong round trip never completed")
	}

	require.NoError(t, sup.Stop())
	sup.Join()

	require.NotEmpty(t, harness.Deliveries())
}

// TestScenarioOverflowDropScenario tests that, under PolicyDrop, a burst of
// events larger than a slow subscriber's mailbox results in some deliveries
// and some recorded drops, with the total never exceeding what was sent, and
// the subscriber's mailbox surviving the overflow.
func TestScenarioOverflowDropScenario(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor[testEvent, BroadcastTopic](
		NewBroadcastContract(PolicyDrop), DefaultConfig(),
	)
	harness := NewHarness[testEvent, BroadcastTopic]()
	sup.AddMonitor(harness)

	_, err := sup.AddActor(ActorSpec[testEvent, BroadcastTopic]{
		Name:          "slow",
		Subscriptions: []BroadcastTopic{{}},
		MailboxSize:   1,
		Factory: func(*Context[testEvent, BroadcastTopic]) Behavior[testEvent] {
			return &slowEchoActor{}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	const n = 10
	for i := 0; i < n; i++ {
		require.NoError(t, sup.Send(context.Background(), testEvent{value: i}))
	}

	require.Eventually(t, func() bool {
		return len(harness.Deliveries())+len(harness.Drops()) == n
	}, time.Second, time.Millisecond)
	require.NotEmpty(t, harness.Drops())
	require.Empty(t, harness.Failures())

	require.NoError(t, sup.Stop())
	sup.Join()
}

// slowEchoActor processes one event slowly enough to force mailbox overflow
// under a tight burst.
type slowEchoActor struct{}

func (a *slowEchoActor) HandleEvent(context.Context, *Envelope[testEvent]) error {
	time.Sleep(20 * time.Millisecond)
	return nil
}

// TestScenarioOverflowFailScenario tests that, under PolicyFail, the same
// burst instead closes the slow subscriber's mailbox and reports exactly one
// OverflowClosed actor failure.
func TestScenarioOverflowFailScenario(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor[testEvent, BroadcastTopic](
		NewBroadcastContract(PolicyFail), DefaultConfig(),
	)
	harness := NewHarness[testEvent, BroadcastTopic]()
	sup.AddMonitor(harness)

	_, err := sup.AddActor(ActorSpec[testEvent, BroadcastTopic]{
		Name:          "slow",
		Subscriptions: []BroadcastTopic{{}},
		MailboxSize:   1,
		Factory: func(*Context[testEvent, BroadcastTopic]) Behavior[testEvent] {
			return &slowEchoActor{}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	const n = 10
	for i := 0; i < n; i++ {
		require.NoError(t, sup.Send(context.Background(), testEvent{value: i}))
	}

	require.Eventually(t, func() bool {
		return len(harness.Failures()) == 1
	}, time.Second, time.Millisecond)
	require.ErrorIs(t, harness.Failures()[0].Err, ErrOverflowClosed)

	require.NoError(t, sup.Stop())
	sup.Join()
}
