package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/pricestream/internal/model"
)

// SupervisorStats provides statistics about the connection supervisor.
type SupervisorStats struct {
	Status         model.ConnectionStatus
	Running        bool
	Generation     uint64 // Live source generation; 0 when none
	Dials          int64  // Source instances created
	Failures       int64  // Error and close events from live sources
	TicksForwarded int64
	TicksDropped   int64 // Ticks from replaced or closed sources
}

// Supervisor owns the single live tick source and keeps it connected.
type Supervisor struct {
	cfg     SupervisorConfig
	factory SourceFactory
	ticks   TickSink
	status  StatusSink
	logger  *slog.Logger

	events chan Event

	mu      sync.Mutex // Guards Start/Stop
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Owned by the event loop. The machine outlives restarts so generations
	// never repeat.
	machine    *Machine
	source     Source
	sourceGen  uint64
	retryTimer *time.Timer

	liveGen        atomic.Uint64 // Generation whose ticks are forwarded; 0 = none
	current        atomic.Int32
	dials          atomic.Int64
	failures       atomic.Int64
	ticksForwarded atomic.Int64
	ticksDropped   atomic.Int64
}

// NewSupervisor creates a new Connection Supervisor. The status sink may be nil.
func NewSupervisor(cfg SupervisorConfig, factory SourceFactory, ticks TickSink, status StatusSink, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultSupervisorConfig().EventBuffer
	}

	return &Supervisor{
		cfg:     cfg,
		factory: factory,
		ticks:   ticks,
		status:  status,
		logger:  logger,
		events:  make(chan Event, cfg.EventBuffer),
		machine: NewMachine(cfg.InitialBackoff, cfg.MaxBackoff),
	}
}

// Start opens the feed. Calling Start on a running supervisor is a no-op.
// The feed stays up until Stop is called or ctx is cancelled; once ctx is
// cancelled, Start opens it again.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running && s.ctx.Err() == nil {
		return nil
	}
	if s.running {
		s.logger.Info("restarting connection supervisor after context cancel")
		s.cancel()
	}
	// A loop whose context ended exits after tearing its source down.
	s.wg.Wait()
	s.running = true

	s.ctx, s.cancel = context.WithCancel(ctx)

	// Events left over from a previous run belong to dead generations.
	s.drainEvents()

	s.wg.Add(1)
	go s.run()

	s.logger.Info("connection supervisor started",
		"initial_backoff", s.cfg.InitialBackoff,
		"max_backoff", s.cfg.MaxBackoff,
	)
	return nil
}

// Stop closes the feed: the pending retry is cancelled, then the live source
// is torn down. Stop on a stopped supervisor is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	s.logger.Info("stopping connection supervisor")
	s.cancel()

	// Wait for the event loop with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout, event loop still running")
		return ctx.Err()
	}

	s.logger.Info("connection supervisor stopped")
	return nil
}

// Status returns the last published connection status.
func (s *Supervisor) Status() model.ConnectionStatus {
	return model.ConnectionStatus(s.current.Load())
}

// Stats returns current statistics.
func (s *Supervisor) Stats() SupervisorStats {
	s.mu.Lock()
	running := s.running && s.ctx.Err() == nil
	s.mu.Unlock()

	return SupervisorStats{
		Status:         s.Status(),
		Running:        running,
		Generation:     s.liveGen.Load(),
		Dials:          s.dials.Load(),
		Failures:       s.failures.Load(),
		TicksForwarded: s.ticksForwarded.Load(),
		TicksDropped:   s.ticksDropped.Load(),
	}
}

// run is the event loop. It is the only goroutine that touches the machine,
// the source handle and the retry timer.
func (s *Supervisor) run() {
	defer s.wg.Done()

	s.dispatch(Event{Kind: EventStart})

	for {
		select {
		case <-s.ctx.Done():
			s.dispatch(Event{Kind: EventStop})
			return
		case ev := <-s.events:
			s.dispatch(ev)
		}
	}
}

func (s *Supervisor) dispatch(ev Event) {
	switch ev.Kind {
	case EventError:
		s.logger.Warn("source error", "generation", ev.Generation, "error", ev.Err)
	case EventClose:
		s.logger.Debug("source closed", "generation", ev.Generation)
	}

	actions := s.machine.HandleEvent(ev)
	if len(actions) > 0 && (ev.Kind == EventError || ev.Kind == EventClose) {
		s.failures.Add(1)
	}

	for _, a := range actions {
		s.execute(a)
	}
}

func (s *Supervisor) execute(a Action) {
	switch a.Kind {
	case ActionDial:
		src := s.factory.NewSource()
		s.source = src
		s.sourceGen = a.Generation
		s.liveGen.Store(a.Generation)
		s.dials.Add(1)

		s.logger.Debug("starting source", "generation", a.Generation)
		src.Start(s.ctx, &emitter{s: s, ctx: s.ctx, gen: a.Generation})

	case ActionTeardown:
		if s.source == nil || s.sourceGen != a.Generation {
			return
		}
		s.liveGen.CompareAndSwap(a.Generation, 0)
		if err := s.source.Close(); err != nil {
			s.logger.Debug("source close error", "generation", a.Generation, "error", err)
		}
		s.source = nil

	case ActionScheduleRetry:
		ctx, id := s.ctx, a.Generation
		s.retryTimer = time.AfterFunc(a.Delay, func() {
			s.post(ctx, Event{Kind: EventRetry, Generation: id})
		})
		s.logger.Info("reconnect scheduled", "delay", a.Delay)

	case ActionCancelRetry:
		if s.retryTimer != nil {
			s.retryTimer.Stop()
			s.retryTimer = nil
		}

	case ActionPublishStatus:
		s.current.Store(int32(a.Status))
		if s.status != nil {
			s.status.SetStatus(a.Status)
		}
		s.logger.Info("connection status changed", "status", a.Status.String())
	}
}

// post queues an event for the loop. It gives up once ctx is done.
func (s *Supervisor) post(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Supervisor) forward(gen uint64, t model.Tick) {
	if s.liveGen.Load() != gen {
		s.ticksDropped.Add(1)
		return
	}
	s.ticksForwarded.Add(1)
	s.ticks.Add(t)
}

func (s *Supervisor) drainEvents() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

// emitter binds source callbacks to one generation.
type emitter struct {
	s   *Supervisor
	ctx context.Context
	gen uint64
}

func (e *emitter) Open() {
	e.s.post(e.ctx, Event{Kind: EventOpen, Generation: e.gen})
}

func (e *emitter) Tick(t model.Tick) {
	e.s.forward(e.gen, t)
}

func (e *emitter) Error(err error) {
	e.s.post(e.ctx, Event{Kind: EventError, Generation: e.gen, Err: err})
}

func (e *emitter) Closed() {
	e.s.post(e.ctx, Event{Kind: EventClose, Generation: e.gen})
}
