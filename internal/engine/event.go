package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// Event is a sealed interface for payloads routed through the engine. Only
// types that embed BaseEvent (or otherwise live in this package) can satisfy
// it, mirroring a compile-time marker trait: a type-system contract that a
// value is cloneable, observable as debug output, and safe to share by
// reference across goroutines. No runtime representation of that contract is
// needed once the compiler has checked it.
type Event interface {
	// eventMarker is unexported, sealing the interface.
	eventMarker()

	// EventType returns a stable name for the event's concrete type, used
	// for logging and debug output.
	EventType() string
}

// BaseEvent is embedded by external event types to satisfy the unexported
// half of the Event interface.
type BaseEvent struct{}

func (BaseEvent) eventMarker() {}

// EventID is a globally unique identifier assigned to a single event
// instance at Context.Send time.
type EventID uuid.UUID

// NewEventID generates a new, time-ordered EventID. Falls back to a random
// v4 UUID if the v7 generator is unavailable (e.g. clock read failure).
func NewEventID() EventID {
	id, err := uuid.NewV7()
	if err != nil {
		return EventID(uuid.New())
	}
	return EventID(id)
}

// String implements fmt.Stringer.
func (id EventID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether this is the zero-value EventID (no identity
// assigned, i.e. no correlation parent).
func (id EventID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// CorrelationID links an envelope to a causally-prior envelope's EventID.
// The zero value means "no correlation".
type CorrelationID = EventID

// ActorID uniquely identifies an actor within a single Supervisor: Name is
// user-supplied and unique, Tag is assigned at registration for cheap
// equality checks and external serialization.
type ActorID struct {
	Name string
	Tag  uint64
}

// String renders the ActorID for logging.
func (id ActorID) String() string {
	return fmt.Sprintf("%s#%d", id.Name, id.Tag)
}

// Equal reports whether two ActorIDs refer to the same actor.
func (id ActorID) Equal(other ActorID) bool {
	return id.Tag == other.Tag && id.Name == other.Name
}

// externalSender is the reserved sender identity stamped onto envelopes
// injected from outside the actor system (Supervisor.Send), per spec.md's
// "external injections use a reserved sentinel sender" invariant.
var externalSender = ActorID{Name: "__external__", Tag: 0}

// IsExternal reports whether this ActorID is the reserved external-injection
// sentinel.
func (id ActorID) IsExternal() bool {
	return id.Equal(externalSender)
}
