package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// echoActor sends an "echo" reply for every distinct event it sees, and
// records everything it handles.
type echoActor struct {
	ctx *Context[testEvent, BroadcastTopic]

	mu  sync.Mutex
	got []int
}

func (a *echoActor) HandleEvent(_ context.Context, env *Envelope[testEvent]) error {
	a.mu.Lock()
	a.got = append(a.got, env.Event().value)
	a.mu.Unlock()
	return nil
}

func (a *echoActor) snapshot() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int, len(a.got))
	copy(out, a.got)
	return out
}

// TestSupervisorDuplicateNameRejected tests that registering two actors
// under the same name fails with ErrDuplicateName.
func TestSupervisorDuplicateNameRejected(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor[testEvent, BroadcastTopic](
		NewBroadcastContract(PolicyFail), DefaultConfig(),
	)

	factory := func(c *Context[testEvent, BroadcastTopic]) Behavior[testEvent] {
		return &echoActor{ctx: c}
	}

	_, err := sup.AddActor(ActorSpec[testEvent, BroadcastTopic]{
		Name: "dup", Factory: factory,
	})
	require.NoError(t, err)

	_, err = sup.AddActor(ActorSpec[testEvent, BroadcastTopic]{
		Name: "dup", Factory: factory,
	})
	require.ErrorIs(t, err, ErrDuplicateName)
}

// TestSupervisorRegistrationRejectedAfterStart tests that AddActor fails
// with ErrInvalidState once the supervisor has left Configurable.
func TestSupervisorRegistrationRejectedAfterStart(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor[testEvent, BroadcastTopic](
		NewBroadcastContract(PolicyFail), DefaultConfig(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	_, err := sup.AddActor(ActorSpec[testEvent, BroadcastTopic]{
		Name: "late",
		Factory: func(c *Context[testEvent, BroadcastTopic]) Behavior[testEvent] {
			return &echoActor{ctx: c}
		},
	})
	require.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, sup.Stop())
	sup.Join()
}

// TestSupervisorExternalSendReachesSubscriber tests that Supervisor.Send
// injects an event that a subscribed actor observes.
func TestSupervisorExternalSendReachesSubscriber(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor[testEvent, BroadcastTopic](
		NewBroadcastContract(PolicyFail), DefaultConfig(),
	)

	var target *echoActor
	_, err := sup.AddActor(ActorSpec[testEvent, BroadcastTopic]{
		Name:          "listener",
		Subscriptions: []BroadcastTopic{{}},
		Factory: func(c *Context[testEvent, BroadcastTopic]) Behavior[testEvent] {
			target = &echoActor{ctx: c}
			return target
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	require.NoError(t, sup.Send(context.Background(), testEvent{value: 7}))

	require.Eventually(t, func() bool {
		return len(target.snapshot()) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, []int{7}, target.snapshot())

	require.NoError(t, sup.Stop())
	sup.Join()
}

// TestSupervisorGracefulShutdownDrainsHarnessDeliveries tests the
// Graceful-Drain scenario: every envelope accepted by stage-1 before Stop is
// either dispatched to a subscriber or monitored as dropped.
func TestSupervisorGracefulShutdownDrainsHarnessDeliveries(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor[testEvent, BroadcastTopic](
		NewBroadcastContract(PolicyFail), DefaultConfig(),
	)

	harness := NewHarness[testEvent, BroadcastTopic]()
	sup.AddMonitor(harness)

	var target *echoActor
	_, err := sup.AddActor(ActorSpec[testEvent, BroadcastTopic]{
		Name:          "sink",
		Subscriptions: []BroadcastTopic{{}},
		MailboxSize:   32,
		Factory: func(c *Context[testEvent, BroadcastTopic]) Behavior[testEvent] {
			target = &echoActor{ctx: c}
			return target
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, sup.Send(context.Background(), testEvent{value: i}))
	}

	require.NoError(t, sup.Stop())
	sup.Join()

	total := len(harness.Deliveries()) + len(harness.Drops())
	require.Equal(t, n, total)
}

// TestSupervisorStopIdempotent tests that calling Stop twice is harmless.
func TestSupervisorStopIdempotent(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor[testEvent, BroadcastTopic](
		NewBroadcastContract(PolicyFail), DefaultConfig(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	require.NoError(t, sup.Stop())
	require.NoError(t, sup.Stop())
	sup.Join()
}
