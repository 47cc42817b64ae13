package commands

import (
	"fmt"

	"github.com/roasbeef/maiko/internal/engine"
	"github.com/roasbeef/maiko/internal/report"
)

// demoEvent is the single event payload type used by every demo scenario:
// a Kind discriminator and a free-form Payload string.
type demoEvent struct {
	engine.BaseEvent

	Kind    string
	Payload string
}

// EventType implements engine.Event.
func (e demoEvent) EventType() string { return e.Kind }

// deliveryRows flattens a harness's recorded deliveries into report.Rows,
// generic over whatever Topic type the calling scenario used.
func deliveryRows[T engine.Topic](deliveries []engine.Delivery[demoEvent, T]) []report.Row {
	rows := make([]report.Row, 0, len(deliveries))
	for _, d := range deliveries {
		rows = append(rows, report.Row{
			EventID:  d.Envelope.ID().String(),
			Topic:    fmt.Sprintf("%v", d.Topic),
			Sender:   d.Sender.String(),
			Receiver: d.Receiver.String(),
		})
	}
	return rows
}
