package engine

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/maiko/internal/mlog"
)

// EventHandler is the mandatory half of the actor contract: processing one
// delivered envelope.
type EventHandler[E Event] interface {
	// HandleEvent processes a single delivered envelope. A non-nil error
	// is routed through OnError (if implemented) to decide whether the
	// actor swallows it and continues, or terminates.
	HandleEvent(ctx context.Context, env *Envelope[E]) error
}

// Stepper is an optional hook for periodic, self-initiated work: emitting
// events, polling external sources, or housekeeping. When absent, the
// actor's step schedule is permanently StepNever (mailbox-only operation).
type Stepper interface {
	Step(ctx context.Context) StepAction
}

// Starter is an optional lifecycle hook run once before the actor enters its
// steady-state loop. A non-nil error skips straight to shutdown.
type Starter interface {
	OnStart(ctx context.Context) error
}

// Shutdowner is an optional lifecycle hook run once after the loop exits and
// the mailbox has been handled (drained or discarded), before completion is
// signalled to the Supervisor.
type Shutdowner interface {
	OnShutdown(ctx context.Context)
}

// ErrorPolicy is an optional hook deciding the fate of an error returned by
// HandleEvent. Step returns only a StepAction, so it has no error for this
// hook to see. Returning nil means "swallow and continue"; returning
// a non-nil error means "terminate this actor" (the returned error is what
// gets reported to monitors, so implementations may wrap or replace the
// original cause). When not implemented, the default policy terminates on
// every error.
type ErrorPolicy interface {
	OnError(ctx context.Context, cause error) error
}

// Behavior is the full actor contract: EventHandler is required, the rest
// are detected via type assertion at actor-construction time, the same
// optional-interface pattern the teacher uses for Stoppable.
type Behavior[E Event] = EventHandler[E]

// stepKind enumerates StepAction's variants.
type stepKind uint8

const (
	stepNever stepKind = iota
	stepContinue
	stepYield
	stepAwaitEvent
	stepBackoff
)

// StepAction governs when Step next runs. The zero value is StepNever,
// matching spec.md's "disable step permanently (default)".
type StepAction struct {
	kind    stepKind
	backoff time.Duration
}

// StepContinue requests Step run again immediately.
func StepContinue() StepAction { return StepAction{kind: stepContinue} }

// StepYield requests the actor yield to the scheduler, then run Step again.
func StepYield() StepAction { return StepAction{kind: stepYield} }

// StepAwaitEvent suspends Step until the next mailbox event arrives.
func StepAwaitEvent() StepAction { return StepAction{kind: stepAwaitEvent} }

// StepBackoff requests Step run again after the given duration elapses.
// Mailbox events continue to be processed while waiting.
func StepBackoff(d time.Duration) StepAction {
	return StepAction{kind: stepBackoff, backoff: d}
}

// StepNever disables Step permanently.
func StepNever() StepAction { return StepAction{kind: stepNever} }

// readyCh is a closed channel: receiving from it never blocks, used to make
// the actor loop's step gate fire "immediately" for Continue/Yield.
var readyCh = func() chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}()

// ActorConfig configures a single actor's runtime loop.
type ActorConfig[E Event, T Topic] struct {
	ID               ActorID
	Behavior         Behavior[E]
	Mailbox          Mailbox[E]
	MaxEventsPerTick int
	TopicOf          func(E) T
	Monitors         *monitorDispatcher[E, T]
	Wg               *sync.WaitGroup
	GracefulDrain    *atomicBool
	ShutdownTimeout  fn.Option[time.Duration]
}

// actorRuntime drives one actor's cooperative loop: mailbox draining
// multiplexed with the optional Step hook and the shared cancellation
// signal, per spec.md §4.4.
type actorRuntime[E Event, T Topic] struct {
	cfg ActorConfig[E, T]

	ctx    context.Context
	cancel context.CancelFunc

	shutdownTimeout time.Duration

	log mlog.Logger
}

// newActorRuntime constructs an actor runtime around an already-derived
// per-actor ctx/cancel pair (the same pair handed to this actor's Context,
// so Context.Stop and supervisor-wide cancellation both terminate the same
// loop). Calling cancel (via stop()) ends only this actor.
func newActorRuntime[E Event, T Topic](
	ctx context.Context, cancel context.CancelFunc, cfg ActorConfig[E, T],
) *actorRuntime[E, T] {

	return &actorRuntime[E, T]{
		cfg:             cfg,
		ctx:             ctx,
		cancel:          cancel,
		shutdownTimeout: cfg.ShutdownTimeout.UnwrapOr(5 * time.Second),
		log:             mlog.New(mlog.TagActor),
	}
}

// stop cancels this actor's own context, causing its loop to exit at the
// next multiplexed select. Safe to call multiple times.
func (a *actorRuntime[E, T]) stop() {
	a.cancel()
}

// start launches the actor's processing loop in its own goroutine.
func (a *actorRuntime[E, T]) start() {
	a.cfg.Wg.Add(1)
	go a.run()
}

// run is the actor's main loop.
func (a *actorRuntime[E, T]) run() {
	defer a.cfg.Wg.Done()

	id := a.cfg.ID.String()
	a.log.DebugS(a.ctx, "actor starting", "actor_id", id)

	if starter, ok := a.cfg.Behavior.(Starter); ok {
		if err := starter.OnStart(a.ctx); err != nil {
			a.log.WarnS(a.ctx, "actor on_start failed", err,
				"actor_id", id)
			a.finish()
			return
		}
	}

	nextStep := StepNever()
	if _, ok := a.cfg.Behavior.(Stepper); ok {
		nextStep = StepContinue()
	}
	var stepTimer *time.Timer
	eventsThisTick := 0
	envelopes := a.cfg.Mailbox.Envelopes()

	for {
		var stepCh <-chan time.Time
		switch nextStep.kind {
		case stepContinue:
			stepCh = readyCh
		case stepYield:
			runtime.Gosched()
			stepCh = readyCh
		case stepBackoff:
			stepCh = stepTimer.C
		case stepAwaitEvent, stepNever:
			stepCh = nil
		}

		select {
		case <-a.ctx.Done():
			a.finish()
			return

		case env, ok := <-envelopes:
			if !ok {
				// The broker closed our mailbox without the
				// actor's own context being cancelled: the
				// distinguished overflow-close case. Always
				// terminates, regardless of what OnError
				// would have said (spec.md §9 Open Question).
				if policy, ok := a.cfg.Behavior.(ErrorPolicy); ok {
					_ = policy.OnError(a.ctx, ErrOverflowClosed)
				}
				a.cfg.Monitors.emitActorError(a.cfg.ID, ErrOverflowClosed)
				a.finishDiscard()
				return
			}

			eventsThisTick++

			if err := a.cfg.Behavior.HandleEvent(a.ctx, env); err != nil {
				if !a.handleFailure(NewHandlerError(err)) {
					a.finish()
					return
				}
			} else {
				a.cfg.Monitors.emitHandled(
					env, a.cfg.TopicOf(env.Event()), a.cfg.ID,
				)
			}

			if nextStep.kind == stepAwaitEvent {
				nextStep = StepContinue()
			}

			if eventsThisTick >= a.cfg.MaxEventsPerTick {
				runtime.Gosched()
				eventsThisTick = 0
			}

		case <-stepCh:
			if stepTimer != nil {
				stepTimer = nil
			}

			if stepper, ok := a.cfg.Behavior.(Stepper); ok {
				nextStep = stepper.Step(a.ctx)
			} else {
				nextStep = StepNever()
			}
			eventsThisTick = 0

			if nextStep.kind == stepBackoff {
				stepTimer = time.NewTimer(nextStep.backoff)
			}
		}
	}
}

// handleFailure routes a HandleEvent failure through OnError (if
// implemented), emitting an ActorError tap and returning false ("terminate")
// unless the policy swallows it by returning nil.
func (a *actorRuntime[E, T]) handleFailure(cause error) bool {
	resultErr := cause
	if policy, ok := a.cfg.Behavior.(ErrorPolicy); ok {
		resultErr = policy.OnError(a.ctx, cause)
	}

	if resultErr == nil {
		return true
	}

	a.cfg.Monitors.emitActorError(a.cfg.ID, resultErr)
	return false
}

// finish runs the standard shutdown sequence: close the mailbox, optionally
// drain it (graceful, supervisor-requested stop) or discard it, call
// OnShutdown, and log completion.
func (a *actorRuntime[E, T]) finish() {
	if a.cfg.GracefulDrain.load() {
		a.drainMailbox()
	} else {
		a.cfg.Mailbox.Close()
	}
	a.runShutdownHook()
}

// finishDiscard always discards rather than draining: used for the
// overflow-closed path, which is never a supervisor-requested graceful stop.
func (a *actorRuntime[E, T]) finishDiscard() {
	a.cfg.Mailbox.Close()
	a.runShutdownHook()
}

// drainMailbox closes the mailbox then pulls (without handling) any
// envelopes left in it, so the channel empties cleanly and any interested
// observer can account for what was never processed.
func (a *actorRuntime[E, T]) drainMailbox() {
	a.cfg.Mailbox.Close()

	drained := 0
	for range a.cfg.Mailbox.Drain() {
		drained++
	}

	if drained > 0 {
		a.log.DebugS(a.ctx, "actor drained mailbox on graceful shutdown",
			"actor_id", a.cfg.ID.String(), "drained", drained)
	}
}

func (a *actorRuntime[E, T]) runShutdownHook() {
	if shutdowner, ok := a.cfg.Behavior.(Shutdowner); ok {
		cleanupCtx, cancel := context.WithTimeout(
			context.Background(), a.shutdownTimeout,
		)
		defer cancel()

		shutdowner.OnShutdown(cleanupCtx)
	}

	a.log.DebugS(a.ctx, "actor terminated", "actor_id", a.cfg.ID.String())
}
