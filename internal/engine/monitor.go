package engine

import (
	"context"
	"sync"

	"github.com/roasbeef/maiko/internal/mlog"
)

// DropReason classifies why OnEventDropped fired.
type DropReason uint8

const (
	// DropOverflowDrop fired because the subscriber's overflow policy is
	// Drop and its mailbox was full.
	DropOverflowDrop DropReason = iota

	// DropOverflowFail fired because the subscriber's overflow policy is
	// Fail and its mailbox was full; the mailbox has now been closed.
	DropOverflowFail
)

func (r DropReason) String() string {
	switch r {
	case DropOverflowDrop:
		return "drop"
	case DropOverflowFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Monitor is the engine's observability tap, invoked off the dispatch hot
// path by a dedicated dispatcher task. Implementations that only care about
// a subset of events should embed NoopMonitor and override the rest, the way
// the teacher's optional-interface (Stoppable) pattern works for a single
// method; here the interface is wide but the no-op base keeps individual
// monitors terse.
type Monitor[E Event, T Topic] interface {
	// OnEventSent fires when Context.Send successfully hands an envelope
	// to stage-1, before the broker has looked at it.
	OnEventSent(env *Envelope[E])

	// OnEventDispatched fires once per successful stage-2 enqueue.
	OnEventDispatched(env *Envelope[E], topic T, receiver ActorID)

	// OnEventHandled fires once an actor's HandleEvent returns nil for a
	// given envelope.
	OnEventHandled(env *Envelope[E], topic T, receiver ActorID)

	// OnEventDropped fires when a subscriber's overflow policy discards
	// or fails an envelope instead of delivering it.
	OnEventDropped(env *Envelope[E], topic T, receiver ActorID, reason DropReason)

	// OnActorError fires when an actor terminates due to an unhandled
	// error (including the distinguished overflow-closed case).
	OnActorError(id ActorID, err error)

	// OnCleanup fires after a broker maintenance sweep, reporting how
	// many dead subscribers were removed from the registry.
	OnCleanup(removed int)
}

// NoopMonitor is embeddable by a Monitor implementation that only cares
// about a subset of the taps; unembedded methods are a no-op.
type NoopMonitor[E Event, T Topic] struct{}

func (NoopMonitor[E, T]) OnEventSent(*Envelope[E])                               {}
func (NoopMonitor[E, T]) OnEventDispatched(*Envelope[E], T, ActorID)             {}
func (NoopMonitor[E, T]) OnEventHandled(*Envelope[E], T, ActorID)                {}
func (NoopMonitor[E, T]) OnEventDropped(*Envelope[E], T, ActorID, DropReason)    {}
func (NoopMonitor[E, T]) OnActorError(ActorID, error)                           {}
func (NoopMonitor[E, T]) OnCleanup(int)                                         {}

// monitorKind tags a queued monitorEvent so the dispatcher knows which
// Monitor method to invoke.
type monitorKind uint8

const (
	monitorSent monitorKind = iota
	monitorDispatched
	monitorHandled
	monitorDropped
	monitorActorError
	monitorCleanup
)

// monitorEvent is the payload queued on the dispatcher's internal channel.
// Only the fields relevant to kind are populated.
type monitorEvent[E Event, T Topic] struct {
	kind monitorKind

	env      *Envelope[E]
	topic    T
	receiver ActorID
	reason   DropReason

	actorID  ActorID
	actorErr error

	cleanupRemoved int
}

// monitorDispatcher owns the bounded internal channel monitoring taps flow
// through and the single goroutine that invokes every registered Monitor
// sequentially, keeping slow monitors off the broker/actor hot path. On
// overflow the oldest queued event is dropped (never a core dispatch event,
// only ever a monitoring tap) and counted via droppedCount.
type monitorDispatcher[E Event, T Topic] struct {
	ch chan monitorEvent[E, T]

	// enqueueMu serializes the "pop oldest, then push" sequence in emit
	// so concurrent producers can't race each other into dropping more
	// than one event per overflow.
	enqueueMu sync.Mutex

	droppedCount atomicU64

	mu       sync.RWMutex
	monitors []Monitor[E, T]

	wg  sync.WaitGroup
	log mlog.Logger
}

// newMonitorDispatcher constructs a dispatcher with the given bounded queue
// capacity. Call run to start its consumer goroutine.
func newMonitorDispatcher[E Event, T Topic](capacity int) *monitorDispatcher[E, T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &monitorDispatcher[E, T]{
		ch:  make(chan monitorEvent[E, T], capacity),
		log: mlog.New(mlog.TagMonitor),
	}
}

// register adds a Monitor. Safe to call before or after run.
func (d *monitorDispatcher[E, T]) register(m Monitor[E, T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.monitors = append(d.monitors, m)
}

// droppedEvents returns how many monitoring taps were discarded due to
// backpressure from slow monitors. This counter is surfaced for
// introspection only; it is never itself re-emitted as a tap.
func (d *monitorDispatcher[E, T]) droppedEvents() uint64 {
	return d.droppedCount.load()
}

// run consumes queued events until ctx is cancelled, then drains whatever is
// still buffered (best-effort) before returning.
func (d *monitorDispatcher[E, T]) run(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case ev := <-d.ch:
				d.deliver(ev)
			case <-ctx.Done():
				d.drainRemaining()
				return
			}
		}
	}()
}

// wait blocks until the dispatcher goroutine has exited.
func (d *monitorDispatcher[E, T]) wait() {
	d.wg.Wait()
}

func (d *monitorDispatcher[E, T]) drainRemaining() {
	for {
		select {
		case ev := <-d.ch:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *monitorDispatcher[E, T]) deliver(ev monitorEvent[E, T]) {
	d.mu.RLock()
	monitors := d.monitors
	d.mu.RUnlock()

	for _, m := range monitors {
		switch ev.kind {
		case monitorSent:
			m.OnEventSent(ev.env)
		case monitorDispatched:
			m.OnEventDispatched(ev.env, ev.topic, ev.receiver)
		case monitorHandled:
			m.OnEventHandled(ev.env, ev.topic, ev.receiver)
		case monitorDropped:
			m.OnEventDropped(ev.env, ev.topic, ev.receiver, ev.reason)
		case monitorActorError:
			m.OnActorError(ev.actorID, ev.actorErr)
		case monitorCleanup:
			m.OnCleanup(ev.cleanupRemoved)
		}
	}
}

// emit enqueues ev, dropping the oldest queued event if the channel is full.
// Never blocks.
func (d *monitorDispatcher[E, T]) emit(ev monitorEvent[E, T]) {
	d.enqueueMu.Lock()
	defer d.enqueueMu.Unlock()

	select {
	case d.ch <- ev:
		return
	default:
	}

	select {
	case <-d.ch:
		d.droppedCount.add(1)
	default:
	}

	select {
	case d.ch <- ev:
	default:
		d.droppedCount.add(1)
	}
}

func (d *monitorDispatcher[E, T]) emitSent(env *Envelope[E]) {
	d.emit(monitorEvent[E, T]{kind: monitorSent, env: env})
}

func (d *monitorDispatcher[E, T]) emitDispatched(env *Envelope[E], topic T, receiver ActorID) {
	d.emit(monitorEvent[E, T]{
		kind: monitorDispatched, env: env, topic: topic, receiver: receiver,
	})
}

func (d *monitorDispatcher[E, T]) emitHandled(env *Envelope[E], topic T, receiver ActorID) {
	d.emit(monitorEvent[E, T]{
		kind: monitorHandled, env: env, topic: topic, receiver: receiver,
	})
}

func (d *monitorDispatcher[E, T]) emitDropped(
	env *Envelope[E], topic T, receiver ActorID, reason DropReason,
) {
	d.emit(monitorEvent[E, T]{
		kind: monitorDropped, env: env, topic: topic, receiver: receiver,
		reason: reason,
	})
}

func (d *monitorDispatcher[E, T]) emitActorError(id ActorID, err error) {
	d.emit(monitorEvent[E, T]{kind: monitorActorError, actorID: id, actorErr: err})
}

func (d *monitorDispatcher[E, T]) emitCleanup(removed int) {
	d.emit(monitorEvent[E, T]{kind: monitorCleanup, cleanupRemoved: removed})
}
