package engine

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"

	"github.com/roasbeef/maiko/internal/mlog"
)

// supervisorState is the Supervisor's lifecycle FSM (spec.md §5):
// Configurable -> Running -> Stopping -> Terminated. Registration is only
// accepted in Configurable; Send only in Running.
type supervisorState uint8

const (
	stateConfigurable supervisorState = iota
	stateRunning
	stateStopping
	stateTerminated
)

// ActorSpec describes one actor to register with a Supervisor before Start.
type ActorSpec[E Event, T Topic] struct {
	// Name must be unique across this supervisor's actors.
	Name string

	// Factory builds the actor's behavior, given the Context it will use
	// for the rest of its life. Called once, at Start.
	Factory func(*Context[E, T]) Behavior[E]

	// Subscriptions lists every topic this actor receives events on.
	Subscriptions []T

	// MailboxSize overrides Config.ChannelSize for this actor's stage-2
	// mailbox. Zero means "use the supervisor's default".
	MailboxSize int

	// ShutdownTimeout bounds how long OnShutdown may run during
	// termination. Zero means "use the actor runtime's default (5s)".
	ShutdownTimeout time.Duration
}

type registeredActor[E Event, T Topic] struct {
	id      ActorID
	spec    ActorSpec[E, T]
	mailbox *channelMailbox[E]
}

// Supervisor owns the whole runtime for one topic-routed actor system: the
// stage-1 ingress channel, the Broker, every actor's runtime loop, and the
// monitoring dispatcher. Grounded on the teacher's System-level Start/Stop
// orchestration in internal/baselib/actor, restructured around
// golang.org/x/sync/errgroup for the drain-then-join-then-flush-monitors
// shutdown sequence instead of a bare WaitGroup.
type Supervisor[E Event, T Topic] struct {
	cfg      Config
	contract TopicContract[T]

	mu      sync.Mutex
	state   supervisorState
	names   map[string]struct{}
	nextTag uint64
	pending []*registeredActor[E, T]

	pendingMonitors []Monitor[E, T]
	monitors        *monitorDispatcher[E, T]
	monitorCancel   context.CancelFunc

	stage1 chan *Envelope[E]
	broker *Broker[E, T]

	gracefulDrain atomicBool

	lifeCtx context.Context
	cancel  context.CancelFunc

	runtimes []*actorRuntime[E, T]
	wg       sync.WaitGroup

	log mlog.Logger
}

// NewSupervisor constructs a Supervisor in the Configurable state. cfg is
// normalized via withDefaults.
func NewSupervisor[E Event, T Topic](contract TopicContract[T], cfg Config) *Supervisor[E, T] {
	return &Supervisor[E, T]{
		cfg:      cfg.withDefaults(),
		contract: contract,
		names:    make(map[string]struct{}),
		log:      mlog.New(mlog.TagSupervisor),
	}
}

// AddActor registers a new actor. Only valid while Configurable; rejects
// duplicate names.
func (s *Supervisor[E, T]) AddActor(spec ActorSpec[E, T]) (ActorID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateConfigurable {
		return ActorID{}, ErrInvalidState
	}
	if _, exists := s.names[spec.Name]; exists {
		return ActorID{}, ErrDuplicateName
	}

	s.nextTag++
	id := ActorID{Name: spec.Name, Tag: s.nextTag}
	s.names[spec.Name] = struct{}{}
	s.pending = append(s.pending, &registeredActor[E, T]{id: id, spec: spec})

	return id, nil
}

// AddMonitor registers a Monitor. Safe to call before or after Start.
func (s *Supervisor[E, T]) AddMonitor(m Monitor[E, T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.monitors != nil {
		s.monitors.register(m)
		return
	}
	s.pendingMonitors = append(s.pendingMonitors, m)
}

// Start builds every registered actor's mailbox and Context, wires them into
// the Broker, and launches the broker, monitor dispatcher, and every actor
// loop. Transitions Configurable -> Running.
func (s *Supervisor[E, T]) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateConfigurable {
		return ErrInvalidState
	}

	stage1Cap := s.cfg.Stage1Capacity
	if stage1Cap <= 0 {
		for _, ra := range s.pending {
			size := ra.spec.MailboxSize
			if size <= 0 {
				size = s.cfg.ChannelSize
			}
			stage1Cap += size
		}
		if stage1Cap <= 0 {
			stage1Cap = s.cfg.ChannelSize
		}
	}
	s.stage1 = make(chan *Envelope[E], stage1Cap)

	s.monitors = newMonitorDispatcher[E, T](s.cfg.MonitoringChannelSize)
	for _, m := range s.pendingMonitors {
		s.monitors.register(m)
	}
	s.pendingMonitors = nil

	s.lifeCtx, s.cancel = context.WithCancel(ctx)
	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	s.monitorCancel = monitorCancel

	s.broker = newBroker[E, T](
		s.contract, s.stage1, s.monitors, s.cfg.MaintenanceInterval,
	)

	for _, ra := range s.pending {
		size := ra.spec.MailboxSize
		if size <= 0 {
			size = s.cfg.ChannelSize
		}
		mailbox := newChannelMailbox[E](size)
		ra.mailbox = mailbox

		for _, topic := range ra.spec.Subscriptions {
			s.broker.subscribe(ra.id, topic, mailbox)
		}

		actorCtx, actorCancel := context.WithCancel(s.lifeCtx)
		ctxHandle := newContext[E, T](
			ra.id, s.stage1, actorCtx, actorCancel, mailbox, s.monitors,
		)
		behavior := ra.spec.Factory(ctxHandle)

		shutdownTimeout := fn.None[time.Duration]()
		if ra.spec.ShutdownTimeout > 0 {
			shutdownTimeout = fn.Some(ra.spec.ShutdownTimeout)
		}

		runtime := newActorRuntime[E, T](actorCtx, actorCancel, ActorConfig[E, T]{
			ID:               ra.id,
			Behavior:         behavior,
			Mailbox:          mailbox,
			MaxEventsPerTick: s.cfg.MaxEventsPerTick,
			TopicOf:          func(e E) T { return s.contract.TopicOf(e) },
			Monitors:         s.monitors,
			Wg:               &s.wg,
			GracefulDrain:    &s.gracefulDrain,
			ShutdownTimeout:  shutdownTimeout,
		})

		s.runtimes = append(s.runtimes, runtime)
	}

	s.monitors.run(monitorCtx)
	go s.broker.run(s.lifeCtx)

	for _, rt := range s.runtimes {
		rt.start()
	}

	s.state = stateRunning
	s.log.InfoS(s.lifeCtx, "supervisor started",
		"actors", len(s.runtimes), "stage1_capacity", stage1Cap)

	return nil
}

// Send injects an externally-originated event into stage-1, as though sent
// by no actor. Only valid while Running.
func (s *Supervisor[E, T]) Send(ctx context.Context, event E) error {
	s.mu.Lock()
	running := s.state == stateRunning
	lifeCtx := s.lifeCtx
	s.mu.Unlock()

	if !running {
		return ErrInvalidState
	}

	env := newEnvelope[E](event, CorrelationID{})
	env.stamp(externalSender)

	select {
	case s.stage1 <- env:
		s.monitors.emitSent(env)
		return nil
	case <-lifeCtx.Done():
		return ErrSendFailed
	case <-ctx.Done():
		return ErrSendFailed
	}
}

// Stop begins a graceful shutdown: every actor drains its mailbox instead of
// discarding it once cancellation reaches its loop. Idempotent once Stopping
// or Terminated. Does not block; call Join to wait for completion.
func (s *Supervisor[E, T]) Stop() error {
	s.mu.Lock()

	switch s.state {
	case stateStopping, stateTerminated:
		s.mu.Unlock()
		return nil
	case stateConfigurable:
		s.mu.Unlock()
		return ErrInvalidState
	}

	s.state = stateStopping
	s.mu.Unlock()

	s.gracefulDrain.store(true)
	s.cancel()

	return nil
}

// Join waits for the broker and every actor to finish, then flushes the
// monitor dispatcher's remaining queued taps, in that order: broker and
// actor shutdown first (golang.org/x/sync/errgroup), only then is the
// monitoring channel's producer side known-quiet, so the dispatcher can
// drain without racing new taps in.
func (s *Supervisor[E, T]) Join() {
	var eg errgroup.Group
	eg.Go(func() error {
		s.broker.wait()
		return nil
	})
	eg.Go(func() error {
		s.wg.Wait()
		return nil
	})
	_ = eg.Wait()

	s.monitorCancel()
	s.monitors.wait()

	s.mu.Lock()
	s.state = stateTerminated
	s.mu.Unlock()

	s.log.InfoS(context.Background(), "supervisor terminated",
		"monitor_drops", s.monitors.droppedEvents())
}

// Run is a convenience wrapper: Start, block until ctx is cancelled, Stop,
// Join.
func (s *Supervisor[E, T]) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	if err := s.Stop(); err != nil {
		return err
	}
	s.Join()
	return nil
}

// DroppedMonitorEvents reports how many monitoring taps (never core
// dispatch events) were discarded due to a slow monitor backing up the
// dispatcher's bounded queue.
func (s *Supervisor[E, T]) DroppedMonitorEvents() uint64 {
	return s.monitors.droppedEvents()
}
