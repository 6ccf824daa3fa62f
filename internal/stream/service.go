package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/pricestream/internal/batch"
	"github.com/rickgao/pricestream/internal/config"
	"github.com/rickgao/pricestream/internal/connection"
	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/store"
)

// ErrClosed is returned by Attach after Shutdown.
var ErrClosed = errors.New("stream service closed")

// Config configures the Service.
type Config struct {
	Supervisor connection.SupervisorConfig
	Batch      batch.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Supervisor: connection.DefaultSupervisorConfig(),
		Batch:      batch.DefaultConfig(),
	}
}

// FromConfig derives the service configuration from the process config.
func FromConfig(cfg *config.Config) Config {
	out := DefaultConfig()
	out.Supervisor.InitialBackoff = cfg.Reconnect.BaseDelay
	out.Supervisor.MaxBackoff = cfg.Reconnect.MaxDelay
	out.Batch.FlushInterval = cfg.Batch.FlushInterval
	out.Batch.InitialCapacity = cfg.Batch.InitialCapacity
	return out
}

// Stats provides statistics about the service.
type Stats struct {
	Subscribers int
	Running     bool
	Supervisor  connection.SupervisorStats
	Batch       batch.Stats
	Store       store.Stats
}

// Subscription is one consumer attached to the feed.
type Subscription struct {
	ID      uuid.UUID
	watcher *store.Watcher
}

// Updates delivers the latest store state, coalesced. The channel is closed
// when the subscription is detached.
func (s *Subscription) Updates() <-chan *store.State {
	return s.watcher.Updates()
}

// Service is the shared price feed.
type Service struct {
	cfg    Config
	logger *slog.Logger

	store      *store.PriceStore
	batcher    *batch.Batcher
	supervisor *connection.Supervisor

	mu      sync.Mutex
	subs    map[uuid.UUID]*Subscription
	running bool
	closed  bool
}

// NewService creates the feed. Nothing connects until the first Attach.
func NewService(cfg Config, factory connection.SourceFactory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	prices := store.New()
	batcher := batch.NewBatcher(cfg.Batch, prices, logger.With("component", "batcher"))
	supervisor := connection.NewSupervisor(cfg.Supervisor, factory, batcher, prices, logger.With("component", "supervisor"))

	return &Service{
		cfg:        cfg,
		logger:     logger,
		store:      prices,
		batcher:    batcher,
		supervisor: supervisor,
		subs:       make(map[uuid.UUID]*Subscription),
	}
}

// Attach registers a consumer. The first attach starts the feed.
func (s *Service) Attach(ctx context.Context) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		ID:      uuid.New(),
		watcher: s.store.Watch(),
	}
	s.subs[sub.ID] = sub

	if !s.running {
		if err := s.start(); err != nil {
			delete(s.subs, sub.ID)
			sub.watcher.Close()
			return nil, err
		}
	}

	s.logger.Debug("subscription attached", "id", sub.ID, "subscribers", len(s.subs))
	return sub, nil
}

// Detach removes a consumer. The feed stops when the last one leaves.
// Detaching twice is a no-op.
func (s *Service) Detach(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; !ok {
		return nil
	}
	delete(s.subs, sub.ID)
	sub.watcher.Close()

	s.logger.Debug("subscription detached", "id", sub.ID, "subscribers", len(s.subs))

	if len(s.subs) == 0 && s.running {
		return s.stop(ctx)
	}
	return nil
}

// Shutdown stops the feed regardless of attached subscriptions and rejects
// further attaches.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for id, sub := range s.subs {
		sub.watcher.Close()
		delete(s.subs, id)
	}

	var err error
	if s.running {
		err = s.stop(ctx)
	}
	s.batcher.Close()

	s.logger.Info("stream service shut down")
	return err
}

// Prices returns a copy of the latest prices.
func (s *Service) Prices() model.PriceSnapshot {
	return s.store.Prices()
}

// Status returns the current connection status.
func (s *Service) Status() model.ConnectionStatus {
	return s.store.Status()
}

// Store exposes the shared price store for read access.
func (s *Service) Store() *store.PriceStore {
	return s.store
}

// Stats returns current statistics.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	subscribers, running := len(s.subs), s.running
	s.mu.Unlock()

	return Stats{
		Subscribers: subscribers,
		Running:     running,
		Supervisor:  s.supervisor.Stats(),
		Batch:       s.batcher.Stats(),
		Store:       s.store.Stats(),
	}
}

// start brings the feed up. The feed outlives the attaching caller's context,
// so it runs on a background context. Callers hold s.mu.
func (s *Service) start() error {
	if err := s.batcher.Start(context.Background()); err != nil {
		return fmt.Errorf("start batcher: %w", err)
	}
	if err := s.supervisor.Start(context.Background()); err != nil {
		s.batcher.Stop(context.Background())
		return fmt.Errorf("start supervisor: %w", err)
	}
	s.running = true

	s.logger.Info("price feed started")
	return nil
}

// stop takes the feed down: the flush cadence first, then the supervisor.
// Callers hold s.mu.
func (s *Service) stop(ctx context.Context) error {
	s.running = false

	var errs []error
	if err := s.batcher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop batcher: %w", err))
	}
	if err := s.supervisor.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop supervisor: %w", err))
	}

	s.logger.Info("price feed stopped")
	return errors.Join(errs...)
}
