package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/spf13/cobra"

	"github.com/roasbeef/maiko/internal/engine"
	"github.com/roasbeef/maiko/internal/mlog"
	"github.com/roasbeef/maiko/internal/report"
)

var overflowCmd = &cobra.Command{
	Use:   "overflow",
	Short: "Compare the Drop and Fail overflow policies under a slow subscriber",
	RunE:  runOverflow,
}

// overflowTopic routes demoEvents by Kind directly: "drop"-kind events go to
// the Drop-policy subscriber, "fail"-kind events to the Fail-policy one.
type overflowTopic string

const (
	topicDrop overflowTopic = "drop"
	topicFail overflowTopic = "fail"
)

// overflowContract applies PolicyDrop to topicDrop and PolicyFail (the
// spec-mandated default) to everything else.
type overflowContract struct{}

func (overflowContract) TopicOf(e engine.Event) overflowTopic {
	return overflowTopic(e.(demoEvent).Kind)
}

func (overflowContract) OverflowPolicy(topic overflowTopic) engine.OverflowPolicy {
	if topic == topicDrop {
		return engine.PolicyDrop
	}
	return engine.PolicyFail
}

// slowSubscriber sleeps briefly on every event, so a fast producer with a
// small mailbox reliably overflows it.
type slowSubscriber struct {
	handled int
}

func (s *slowSubscriber) HandleEvent(context.Context, *engine.Envelope[demoEvent]) error {
	time.Sleep(50 * time.Millisecond)
	s.handled++
	return nil
}

// burstProducer fires a burst of events of a single kind in OnStart.
type burstProducer struct {
	ctx   *engine.Context[demoEvent, overflowTopic]
	kind  overflowTopic
	count int
}

func (p *burstProducer) OnStart(context.Context) error {
	for i := 0; i < p.count; i++ {
		if _, err := p.ctx.Send(demoEvent{Kind: string(p.kind), Payload: fmt.Sprint(i)}).Unpack(); err != nil {
			return err
		}
	}
	return nil
}

func (p *burstProducer) HandleEvent(context.Context, *engine.Envelope[demoEvent]) error {
	return nil
}

func runOverflow(*cobra.Command, []string) error {
	if verbose {
		mlog.SetLevel(btclog.LevelDebug)
	}

	sup := engine.NewSupervisor[demoEvent, overflowTopic](
		overflowContract{}, engine.DefaultConfig(),
	)

	harness := engine.NewHarness[demoEvent, overflowTopic]()
	sup.AddMonitor(harness)

	if _, err := sup.AddActor(engine.ActorSpec[demoEvent, overflowTopic]{
		Name:          "drop-subscriber",
		Subscriptions: []overflowTopic{topicDrop},
		MailboxSize:   1,
		Factory: func(*engine.Context[demoEvent, overflowTopic]) engine.Behavior[demoEvent] {
			return &slowSubscriber{}
		},
	}); err != nil {
		return err
	}

	if _, err := sup.AddActor(engine.ActorSpec[demoEvent, overflowTopic]{
		Name:          "fail-subscriber",
		Subscriptions: []overflowTopic{topicFail},
		MailboxSize:   1,
		Factory: func(*engine.Context[demoEvent, overflowTopic]) engine.Behavior[demoEvent] {
			return &slowSubscriber{}
		},
	}); err != nil {
		return err
	}

	if _, err := sup.AddActor(engine.ActorSpec[demoEvent, overflowTopic]{
		Name: "drop-producer",
		Factory: func(c *engine.Context[demoEvent, overflowTopic]) engine.Behavior[demoEvent] {
			return &burstProducer{ctx: c, kind: topicDrop, count: 20}
		},
	}); err != nil {
		return err
	}

	if _, err := sup.AddActor(engine.ActorSpec[demoEvent, overflowTopic]{
		Name: "fail-producer",
		Factory: func(c *engine.Context[demoEvent, overflowTopic]) engine.Behavior[demoEvent] {
			return &burstProducer{ctx: c, kind: topicFail, count: 20}
		},
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		return err
	}

	time.Sleep(2 * time.Second)

	if err := sup.Stop(); err != nil {
		return err
	}
	sup.Join()

	fmt.Print(report.RenderMarkdown("Overflow deliveries", deliveryRows(harness.Deliveries())))

	fmt.Println()
	fmt.Printf("drops recorded: %d\n", len(harness.Drops()))
	for _, d := range harness.Drops() {
		fmt.Printf("  - topic=%v receiver=%s reason=%s\n", d.Topic, d.Receiver, d.Reason)
	}

	return nil
}
