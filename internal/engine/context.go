package engine

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/maiko/internal/mlog"
)

// Context is the stage-1 ingress handle given to an actor's factory at
// construction time (spec.md §4.5). It never holds a reference to any other
// actor: all it can do is push an event into the shared stage-1 channel, ask
// for its own identity, probe its own backpressure, or request its own
// termination. Grounded on the teacher's actorRefImpl.Tell/Ask's
// context-respecting send, restructured so the destination is the shared
// ingress channel rather than one target actor's mailbox.
type Context[E Event, T Topic] struct {
	id ActorID

	stage1     chan<- *Envelope[E]
	lifeCtx    context.Context
	selfCancel context.CancelFunc

	mailbox  Mailbox[E]
	monitors *monitorDispatcher[E, T]

	log mlog.Logger
}

// newContext constructs a Context for a single actor. lifeCtx is the
// actor's own runtime context (cancelled either by self-stop or by the
// supervisor-wide shutdown); stage1 is the shared ingress channel.
func newContext[E Event, T Topic](
	id ActorID,
	stage1 chan<- *Envelope[E],
	lifeCtx context.Context,
	selfCancel context.CancelFunc,
	mailbox Mailbox[E],
	monitors *monitorDispatcher[E, T],
) *Context[E, T] {
	return &Context[E, T]{
		id:         id,
		stage1:     stage1,
		lifeCtx:    lifeCtx,
		selfCancel: selfCancel,
		mailbox:    mailbox,
		monitors:   monitors,
		log:        mlog.New(mlog.TagActor),
	}
}

// Name returns this actor's registered name.
func (c *Context[E, T]) Name() string { return c.id.Name }

// ID returns this actor's full identity.
func (c *Context[E, T]) ID() ActorID { return c.id }

// Send wraps event in a fresh envelope stamped with this actor's identity
// and hands it to the shared stage-1 channel, respecting both this actor's
// own lifetime and the supervisor's. Returns fn.Err(ErrSendFailed) if
// stage-1 is no longer accepting input.
func (c *Context[E, T]) Send(event E) fn.Result[struct{}] {
	return c.send(newEnvelope[E](event, CorrelationID{}))
}

// SendWithCorrelation behaves like Send but stamps the new envelope's
// correlation id with parent's own id, letting callers reconstruct the
// causal chain of events one hop at a time (each envelope correlates to its
// immediate parent, not the chain's root).
func (c *Context[E, T]) SendWithCorrelation(event E, parent *Envelope[E]) fn.Result[struct{}] {
	return c.send(newEnvelope[E](event, parent.ID()))
}

func (c *Context[E, T]) send(env *Envelope[E]) fn.Result[struct{}] {
	env.stamp(c.id)

	if c.lifeCtx.Err() != nil {
		return fn.Err[struct{}](ErrSendFailed)
	}

	select {
	case c.stage1 <- env:
		c.monitors.emitSent(env)
		return fn.Ok(struct{}{})
	case <-c.lifeCtx.Done():
		return fn.Err[struct{}](ErrSendFailed)
	}
}

// Stop signals this actor to leave its loop at the next iteration.
// Idempotent.
func (c *Context[E, T]) Stop() {
	c.selfCancel()
}

// IsSenderFull reports whether the shared stage-1 channel is currently at
// capacity, a non-blocking hint for actors that want to shed load rather
// than risk blocking on Send.
func (c *Context[E, T]) IsSenderFull() bool {
	return len(c.stage1) == cap(c.stage1)
}

// Pending returns the number of envelopes currently buffered in this
// actor's own mailbox.
func (c *Context[E, T]) Pending() int {
	return c.mailbox.Len()
}
