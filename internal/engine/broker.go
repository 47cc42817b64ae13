package engine

import (
	"context"
	"sync"
	"time"

	"github.com/roasbeef/maiko/internal/mlog"
)

// subscriberEntry is one broker-side registration: a subscriber's mailbox,
// resolved overflow policy (cached at registration time rather than
// recomputed per dispatch, since TopicContract.OverflowPolicy is assumed
// stable for the lifetime of a subscription), and identity for self-delivery
// suppression.
type subscriberEntry[E Event] struct {
	id      ActorID
	mailbox Mailbox[E]
	policy  OverflowPolicy
}

// Broker owns the two-stage channel topology and the dispatch algorithm of
// spec.md §4.1/§4.2: a single shared stage-1 ingress channel fanning out,
// per event topic, into each subscriber's bounded stage-2 mailbox. Grounded
// on the simple generic Subscribe/Publish broker shape found in the
// retrieval pack's pubsub example, built out to the spec's two-phase
// overflow-policy-aware dispatch and periodic dead-subscriber sweep.
type Broker[E Event, T Topic] struct {
	contract TopicContract[T]

	// registry and flat are only ever touched by the broker's own
	// goroutine (run's single dispatch loop and its maintenance sweep),
	// so no lock guards them; the mailboxes they point to have their own
	// concurrency-safe Send/TrySend/Close/IsClosed.
	registry map[T][]*subscriberEntry[E]
	flat     []*subscriberEntry[E]

	stage1 chan *Envelope[E]

	monitors *monitorDispatcher[E, T]

	maintenanceInterval time.Duration

	doneCh chan struct{}
	log    mlog.Logger
}

// newBroker constructs a Broker. The registry is expected to be fully
// populated (every actor registered) before run starts; spec.md §4.1 treats
// subscriber construction as frozen at supervisor start.
func newBroker[E Event, T Topic](
	contract TopicContract[T],
	stage1 chan *Envelope[E],
	monitors *monitorDispatcher[E, T],
	maintenanceInterval time.Duration,
) *Broker[E, T] {
	return &Broker[E, T]{
		contract:            contract,
		registry:            make(map[T][]*subscriberEntry[E]),
		stage1:              stage1,
		monitors:            monitors,
		maintenanceInterval: maintenanceInterval,
		doneCh:              make(chan struct{}),
		log:                 mlog.New(mlog.TagBroker),
	}
}

// subscribe registers mailbox to receive events on topic. Must only be
// called before run starts.
func (b *Broker[E, T]) subscribe(id ActorID, topic T, mailbox Mailbox[E]) {
	entry := &subscriberEntry[E]{
		id:      id,
		mailbox: mailbox,
		policy:  b.contract.OverflowPolicy(topic),
	}
	b.registry[topic] = append(b.registry[topic], entry)
	b.flat = append(b.flat, entry)
}

// run is the broker's main loop: pull from stage-1, dispatch, repeat, until
// ctx is cancelled. On cancellation it stops accepting new stage-1 input and
// drains whatever is still buffered there (so every envelope accepted before
// shutdown either reaches a subscriber or is monitored as Dropped), then
// exits.
func (b *Broker[E, T]) run(ctx context.Context) {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case env := <-b.stage1:
			b.dispatch(ctx, env)

		case <-ticker.C:
			b.runMaintenance()

		case <-ctx.Done():
			b.drainStage1()
			return
		}
	}
}

// wait blocks until run has returned.
func (b *Broker[E, T]) wait() {
	<-b.doneCh
}

// drainStage1 dispatches anything left buffered in stage-1 at the moment of
// cancellation, without waiting for further input.
func (b *Broker[E, T]) drainStage1() {
	// dispatch uses the background context for any Phase 2 waits here,
	// since the broker's own ctx is already cancelled; Block subscribers
	// still get a bounded wait via their own mailbox Send semantics.
	for {
		select {
		case env := <-b.stage1:
			b.dispatch(context.Background(), env)
		default:
			return
		}
	}
}

// dispatch routes one envelope to every live, non-self subscriber of its
// topic, in two phases: Fail/Drop subscribers get a non-blocking attempt
// first (Phase 1) so a single slow Block subscriber can never delay fast
// ones; Block subscribers then wait concurrently (Phase 2).
func (b *Broker[E, T]) dispatch(ctx context.Context, env *Envelope[E]) {
	topic := b.contract.TopicOf(env.Event())
	candidates := b.registry[topic]
	if len(candidates) == 0 {
		return
	}

	var blocking []*subscriberEntry[E]

	for _, entry := range candidates {
		if entry.id.Equal(env.Sender()) {
			continue
		}
		if entry.mailbox.IsClosed() {
			continue
		}

		if entry.policy == PolicyBlock {
			blocking = append(blocking, entry)
			continue
		}

		b.dispatchFast(env, topic, entry)
	}

	if len(blocking) > 0 {
		b.dispatchBlocking(ctx, env, topic, blocking)
	}
}

// dispatchFast handles a single Fail or Drop subscriber with a non-blocking
// enqueue attempt.
func (b *Broker[E, T]) dispatchFast(env *Envelope[E], topic T, entry *subscriberEntry[E]) {
	if entry.mailbox.TrySend(env) {
		b.monitors.emitDispatched(env, topic, entry.id)
		return
	}

	if entry.mailbox.IsClosed() {
		// Closed concurrently between candidate selection and send;
		// treat as already removed, no tap.
		return
	}

	switch entry.policy {
	case PolicyFail:
		entry.mailbox.Close()
		b.monitors.emitDropped(env, topic, entry.id, DropOverflowFail)
	case PolicyDrop:
		b.monitors.emitDropped(env, topic, entry.id, DropOverflowDrop)
	}
}

// dispatchBlocking waits, concurrently across all Block-policy subscribers,
// for each to accept the envelope or have its mailbox close / context
// cancel out from under it.
func (b *Broker[E, T]) dispatchBlocking(
	ctx context.Context, env *Envelope[E], topic T, entries []*subscriberEntry[E],
) {
	var wg sync.WaitGroup
	wg.Add(len(entries))

	for _, entry := range entries {
		go func(entry *subscriberEntry[E]) {
			defer wg.Done()

			if entry.mailbox.Send(ctx, env) {
				b.monitors.emitDispatched(env, topic, entry.id)
			}
			// On close or cancellation during the wait: treat as
			// removed, no tap (mirrors the Fail path silence for
			// a subscriber that vanished mid-flight).
		}(entry)
	}

	wg.Wait()
}

// runMaintenance sweeps the registry for subscribers whose mailbox has
// closed, removing them so future dispatches skip the dead entry cheaply,
// and reports the count via the Cleanup tap.
func (b *Broker[E, T]) runMaintenance() {
	removed := 0

	live := b.flat[:0]
	for _, entry := range b.flat {
		if entry.mailbox.IsClosed() {
			removed++
			continue
		}
		live = append(live, entry)
	}
	b.flat = live

	if removed == 0 {
		return
	}

	for topic, entries := range b.registry {
		liveTopic := entries[:0]
		for _, entry := range entries {
			if !entry.mailbox.IsClosed() {
				liveTopic = append(liveTopic, entry)
			}
		}
		b.registry[topic] = liveTopic
	}

	b.monitors.emitCleanup(removed)
}
