package source

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/pricestream/internal/config"
	"github.com/rickgao/pricestream/internal/connection"
	"github.com/rickgao/pricestream/internal/model"
)

// SyntheticConfig configures the synthetic generator.
type SyntheticConfig struct {
	Interval   time.Duration // Time between ticks
	Symbols    []string      // Symbols to pick from
	PriceFloor float64       // Lowest generated price
	PriceSpan  float64       // Width of the price range above the floor
}

// DefaultSyntheticConfig returns sensible defaults.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Interval:   config.DefaultSyntheticInterval,
		Symbols:    append([]string(nil), config.DefaultSymbols...),
		PriceFloor: config.DefaultPriceFloor,
		PriceSpan:  config.DefaultPriceSpan,
	}
}

// Rand is the randomness used by the generator.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// Clock stamps generated ticks.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SyntheticOption configures a Synthetic source.
type SyntheticOption func(*Synthetic)

// WithRand sets the random source. It is only used from the generator
// goroutine.
func WithRand(r Rand) SyntheticOption {
	return func(s *Synthetic) {
		s.rand = r
	}
}

// WithClock sets the clock used for ObservedAt.
func WithClock(c Clock) SyntheticOption {
	return func(s *Synthetic) {
		s.clock = c
	}
}

// WithSyntheticLogger sets the logger.
func WithSyntheticLogger(logger *slog.Logger) SyntheticOption {
	return func(s *Synthetic) {
		s.logger = logger
	}
}

// Synthetic emits random ticks on a fixed interval.
type Synthetic struct {
	cfg    SyntheticConfig
	rand   Rand
	clock  Clock
	logger *slog.Logger

	mu     sync.Mutex
	state  connection.SourceState
	cancel context.CancelFunc

	emitted atomic.Int64
}

// NewSynthetic creates a synthetic source. Zero config fields take defaults.
func NewSynthetic(cfg SyntheticConfig, opts ...SyntheticOption) *Synthetic {
	defaults := DefaultSyntheticConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = defaults.Symbols
	}
	if cfg.PriceFloor <= 0 {
		cfg.PriceFloor = defaults.PriceFloor
	}
	if cfg.PriceSpan < 0 {
		cfg.PriceSpan = 0
	}

	s := &Synthetic{
		cfg:   cfg,
		clock: realClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Start opens the source and begins generating ticks.
func (s *Synthetic) Start(ctx context.Context, emit connection.Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != connection.SourceIdle {
		return
	}
	s.state = connection.SourceOpen

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx, emit)
}

// Close stops the generator. It is safe to call in any state.
func (s *Synthetic) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == connection.SourceClosed {
		return nil
	}
	s.state = connection.SourceClosed
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Synthetic) State() connection.SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Emitted returns the number of ticks generated so far.
func (s *Synthetic) Emitted() int64 {
	return s.emitted.Load()
}

// Next generates one tick.
func (s *Synthetic) Next() model.Tick {
	symbol := s.cfg.Symbols[s.rand.Intn(len(s.cfg.Symbols))]
	price := s.cfg.PriceFloor + s.rand.Float64()*s.cfg.PriceSpan

	return model.Tick{
		Symbol:     symbol,
		Price:      decimal.NewFromFloat(price).Round(2),
		ObservedAt: s.clock.Now(),
	}
}

func (s *Synthetic) run(ctx context.Context, emit connection.Emitter) {
	emit.Open()
	s.logger.Debug("synthetic source open",
		"interval", s.cfg.Interval,
		"symbols", len(s.cfg.Symbols),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			t := s.Next()
			if t.Validate() != nil {
				continue
			}
			s.emitted.Add(1)
			emit.Tick(t)
		}
	}
}
