package batch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/pricestream/internal/model"
)

// Publisher receives one coalesced snapshot per flush.
type Publisher interface {
	Merge(batch model.PriceSnapshot)
}

// Config configures the Batcher.
type Config struct {
	FlushInterval   time.Duration // Cadence of the flush loop
	InitialCapacity int           // Initial queue capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval:   200 * time.Millisecond,
		InitialCapacity: 256,
	}
}

// Stats contains batcher statistics.
type Stats struct {
	TicksReceived    int64 // Ticks accepted by Add
	TicksDiscarded   int64 // Ticks rejected while stopped or dropped by Stop
	TicksCoalesced   int64 // Ticks overwritten by a later tick for the same symbol
	Flushes          int64 // Flushes that published a snapshot
	SymbolsPublished int64 // Sum of snapshot sizes across flushes
	Pending          int   // Ticks waiting for the next flush
}

// Batcher coalesces ticks and publishes them on a fixed cadence.
type Batcher struct {
	cfg    Config
	logger *slog.Logger
	queue  *Queue[model.Tick]
	pub    Publisher

	running atomic.Bool

	// gate makes the running check and the push in Add atomic with Stop.
	gate sync.RWMutex

	// Lifecycle
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	flushTicker *time.Ticker

	// flushMu keeps flushes serialized so snapshots are published in order.
	flushMu sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewBatcher creates a new Batcher publishing to pub.
func NewBatcher(cfg Config, pub Publisher, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.InitialCapacity <= 0 {
		cfg.InitialCapacity = defaults.InitialCapacity
	}

	return &Batcher{
		cfg:    cfg,
		logger: logger,
		queue:  NewQueue[model.Tick](cfg.InitialCapacity),
		pub:    pub,
	}
}

// Add queues a tick for the next flush. Ticks added while the batcher is
// stopped are discarded.
func (b *Batcher) Add(t model.Tick) {
	b.gate.RLock()
	accepted := b.running.Load() && b.queue.Push(t)
	b.gate.RUnlock()

	if !accepted {
		b.statsMu.Lock()
		b.stats.TicksDiscarded++
		b.statsMu.Unlock()
		return
	}

	b.statsMu.Lock()
	b.stats.TicksReceived++
	b.statsMu.Unlock()
}

// Start begins the flush loop. Calling Start on a running batcher is a no-op.
func (b *Batcher) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running.Load() {
		return nil
	}

	// A loop cancelled by a timed-out Stop exits after its current flush.
	b.wg.Wait()

	b.ctx, b.cancel = context.WithCancel(ctx)
	b.flushTicker = time.NewTicker(b.cfg.FlushInterval)
	b.running.Store(true)

	b.wg.Add(1)
	go b.flushLoop()

	b.logger.Info("batcher started", "flush_interval", b.cfg.FlushInterval)
	return nil
}

// Stop cancels the flush cadence. Ticks still queued are discarded, not
// published. If ctx ends before the flush loop exits, Stop returns ctx.Err().
func (b *Batcher) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running.Load() {
		return nil
	}
	b.gate.Lock()
	b.running.Store(false)
	b.gate.Unlock()

	b.logger.Info("stopping batcher")

	b.cancel()
	b.flushTicker.Stop()

	// Wait for the flush loop
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("batcher stop timed out, flush loop still running")
		err = ctx.Err()
	}

	b.discardPending()

	if err == nil {
		b.logger.Info("batcher stopped")
	}
	return err
}

func (b *Batcher) discardPending() {
	if dropped := len(b.queue.Drain()); dropped > 0 {
		b.statsMu.Lock()
		b.stats.TicksDiscarded += int64(dropped)
		b.statsMu.Unlock()
		b.logger.Debug("discarded undrained ticks", "count", dropped)
	}
}

// Close stops accepting ticks permanently.
func (b *Batcher) Close() {
	b.queue.Close()
}

// Flush drains the queue and publishes the last price per symbol.
// An empty queue is a no-op.
func (b *Batcher) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	ticks := b.queue.Drain()
	if len(ticks) == 0 {
		return
	}

	snapshot := Coalesce(ticks)
	b.pub.Merge(snapshot)

	b.statsMu.Lock()
	b.stats.Flushes++
	b.stats.SymbolsPublished += int64(len(snapshot))
	b.stats.TicksCoalesced += int64(len(ticks) - len(snapshot))
	b.statsMu.Unlock()

	b.logger.Debug("flushed ticks",
		"ticks", len(ticks),
		"symbols", len(snapshot),
	)
}

// Stats returns current statistics.
func (b *Batcher) Stats() Stats {
	b.statsMu.Lock()
	stats := b.stats
	b.statsMu.Unlock()

	stats.Pending = b.queue.Len()
	return stats
}

// Coalesce collapses ticks to the last price per symbol, in arrival order.
func Coalesce(ticks []model.Tick) model.PriceSnapshot {
	out := make(model.PriceSnapshot, len(ticks))
	for _, t := range ticks {
		out[t.Symbol] = t.Price
	}
	return out
}

// flushLoop periodically flushes the queue.
func (b *Batcher) flushLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-b.flushTicker.C:
			b.Flush()
		}
	}
}
