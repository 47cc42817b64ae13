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

var pingPongCmd = &cobra.Command{
	Use:   "ping-pong",
	Short: "Run the ping-pong round-trip scenario",
	RunE:  runPingPong,
}

func init() {
	pingPongCmd.Flags().IntVar(
		&rounds, "rounds", 5, "number of ping/pong round trips to run",
	)
}

// pingActor kicks the round trip off in OnStart and counts pongs, stopping
// itself once it has seen enough of them.
type pingActor struct {
	ctx    *engine.Context[demoEvent, engine.BroadcastTopic]
	rounds int
	seen   int
	done   chan struct{}
}

func (a *pingActor) OnStart(context.Context) error {
	_, err := a.ctx.Send(demoEvent{Kind: "ping", Payload: "0"}).Unpack()
	return err
}

func (a *pingActor) HandleEvent(_ context.Context, env *engine.Envelope[demoEvent]) error {
	ev := env.Event()
	if ev.Kind != "pong" {
		return nil
	}

	a.seen++
	if a.seen >= a.rounds {
		close(a.done)
		a.ctx.Stop()
		return nil
	}

	_, err := a.ctx.SendWithCorrelation(demoEvent{Kind: "ping", Payload: ev.Payload}, env).Unpack()
	return err
}

// pongActor echoes every ping it sees back as a pong.
type pongActor struct {
	ctx *engine.Context[demoEvent, engine.BroadcastTopic]
}

func (a *pongActor) HandleEvent(_ context.Context, env *engine.Envelope[demoEvent]) error {
	ev := env.Event()
	if ev.Kind != "ping" {
		return nil
	}
	_, err := a.ctx.SendWithCorrelation(demoEvent{Kind: "pong", Payload: ev.Payload}, env).Unpack()
	return err
}

func runPingPong(*cobra.Command, []string) error {
	if verbose {
		mlog.SetLevel(btclog.LevelDebug)
	}

	contract := engine.NewBroadcastContract(engine.PolicyFail)
	sup := engine.NewSupervisor[demoEvent, engine.BroadcastTopic](
		contract, engine.DefaultConfig(),
	)

	harness := engine.NewHarness[demoEvent, engine.BroadcastTopic]()
	sup.AddMonitor(harness)

	done := make(chan struct{})

	if _, err := sup.AddActor(engine.ActorSpec[demoEvent, engine.BroadcastTopic]{
		Name:          "pong",
		Subscriptions: []engine.BroadcastTopic{{}},
		Factory: func(c *engine.Context[demoEvent, engine.BroadcastTopic]) engine.Behavior[demoEvent] {
			return &pongActor{ctx: c}
		},
	}); err != nil {
		return err
	}

	if _, err := sup.AddActor(engine.ActorSpec[demoEvent, engine.BroadcastTopic]{
		Name:          "ping",
		Subscriptions: []engine.BroadcastTopic{{}},
		Factory: func(c *engine.Context[demoEvent, engine.BroadcastTopic]) engine.Behavior[demoEvent] {
			return &pingActor{ctx: c, rounds: rounds, done: done}
		},
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		return err
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		fmt.Println("timed out waiting for the round trip to finish")
	}

	if err := sup.Stop(); err != nil {
		return err
	}
	sup.Join()

	rows := deliveryRows(harness.Deliveries())
	fmt.Print(report.RenderMarkdown("Ping-Pong deliveries", rows))

	return nil
}
