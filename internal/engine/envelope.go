package engine

// Envelope is the immutable, shared wrapper around a single event instance.
// One Envelope is handed by reference to every matching subscriber's
// mailbox: the event payload is never copied per receiver (spec.md §3,
// "Shared immutable envelope fan-out").
//
// An Envelope is constructed without a sender by the producer (Context.Send)
// and stamped with the producer's identity before it ever reaches the
// broker. Once stamped, every field is read-only for the remainder of the
// Envelope's lifetime; callers must treat a received *Envelope[E] as
// immutable.
type Envelope[E Event] struct {
	event         E
	id            EventID
	correlationID CorrelationID
	sender        ActorID
	stamped       bool
}

// newEnvelope constructs an unstamped envelope around an event, optionally
// carrying a correlation id copied from a causally-prior envelope.
func newEnvelope[E Event](event E, correlation CorrelationID) *Envelope[E] {
	return &Envelope[E]{
		event:         event,
		id:            NewEventID(),
		correlationID: correlation,
	}
}

// stamp sets the sender identity. Called exactly once, before the envelope
// is pushed into stage-1: by the Context that owns the producing actor, or
// by Supervisor.Send with the reserved external sender.
func (e *Envelope[E]) stamp(sender ActorID) {
	e.sender = sender
	e.stamped = true
}

// Event returns the wrapped payload.
func (e *Envelope[E]) Event() E {
	return e.event
}

// ID returns this envelope's globally unique identifier.
func (e *Envelope[E]) ID() EventID {
	return e.id
}

// CorrelationID returns the identifier of the causally-prior envelope this
// one was produced in response to, and whether one was set.
func (e *Envelope[E]) CorrelationID() (CorrelationID, bool) {
	return e.correlationID, !e.correlationID.IsZero()
}

// Sender returns the stamped producer identity. Before stamping (which only
// happens inside Context.Send or Supervisor.Send, never visible outside the
// package) this is the zero ActorID.
func (e *Envelope[E]) Sender() ActorID {
	return e.sender
}
