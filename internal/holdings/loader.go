package holdings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/pricestream/internal/model"
)

// LoaderState is the lifecycle state of a Loader.
type LoaderState int

const (
	LoaderIdle LoaderState = iota
	LoaderLoading
	LoaderLoaded
	LoaderFailed
)

func (s LoaderState) String() string {
	switch s {
	case LoaderIdle:
		return "idle"
	case LoaderLoading:
		return "loading"
	case LoaderLoaded:
		return "loaded"
	case LoaderFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s LoaderState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	RetryDelay time.Duration // Wait before the single retry
}

// DefaultLoaderConfig returns sensible defaults.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		RetryDelay: 3 * time.Second,
	}
}

// LoaderStats provides statistics about the loader.
type LoaderStats struct {
	State     LoaderState
	Count     int
	Attempts  int64
	Failures  int64
	LoadedAt  time.Time
	LastError string
}

// Loader fetches holdings with a single retry and caches the result.
type Loader struct {
	provider Provider
	cfg      LoaderConfig
	logger   *slog.Logger

	group singleflight.Group

	mu       sync.RWMutex
	state    LoaderState
	holdings []model.Holding
	lastErr  error
	loadedAt time.Time
	attempts int64
	failures int64
}

// NewLoader creates a loader for provider.
func NewLoader(provider Provider, cfg LoaderConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	return &Loader{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
	}
}

// Load returns the cached holdings, fetching them on first use. After a
// failed load it returns the stored error without fetching again; call
// Reload to try again. A load whose ctx ends is not recorded as a failure,
// so a later Load fetches again.
func (l *Loader) Load(ctx context.Context) ([]model.Holding, error) {
	l.mu.RLock()
	state, holdings, err := l.state, l.holdings, l.lastErr
	l.mu.RUnlock()

	switch state {
	case LoaderLoaded:
		return append([]model.Holding(nil), holdings...), nil
	case LoaderFailed:
		return nil, err
	default:
		return l.fetch(ctx, false)
	}
}

// Reload fetches holdings again regardless of the current state.
func (l *Loader) Reload(ctx context.Context) ([]model.Holding, error) {
	return l.fetch(ctx, true)
}

// State returns the current state.
func (l *Loader) State() LoaderState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Holdings returns the last successfully loaded holdings.
func (l *Loader) Holdings() []model.Holding {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Holding(nil), l.holdings...)
}

// LastError returns the message of the error that ended the last load, or
// an empty string.
func (l *Loader) LastError() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.lastErr == nil {
		return ""
	}
	return l.lastErr.Error()
}

// Stats returns current statistics.
func (l *Loader) Stats() LoaderStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := LoaderStats{
		State:    l.state,
		Count:    len(l.holdings),
		Attempts: l.attempts,
		Failures: l.failures,
		LoadedAt: l.loadedAt,
	}
	if l.lastErr != nil {
		stats.LastError = l.lastErr.Error()
	}
	return stats
}

// fetch collapses concurrent loads into one provider round trip. Unless
// force is set, a load that completed while this caller was queued is reused.
func (l *Loader) fetch(ctx context.Context, force bool) ([]model.Holding, error) {
	key := "load"
	if force {
		key = "reload"
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if !force {
			l.mu.RLock()
			state, holdings := l.state, l.holdings
			l.mu.RUnlock()
			if state == LoaderLoaded {
				return holdings, nil
			}
		}
		return l.fetchWithRetry(ctx)
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Holding(nil), v.([]model.Holding)...), nil
}

func (l *Loader) fetchWithRetry(ctx context.Context) ([]model.Holding, error) {
	l.mu.Lock()
	prev := l.state
	l.state = LoaderLoading
	l.mu.Unlock()

	holdings, err := l.attempt(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, l.abandon(prev, ctx.Err())
		}
		l.logger.Warn("holdings fetch failed, retrying once",
			"error", err,
			"retry_delay", l.cfg.RetryDelay,
		)

		timer := time.NewTimer(l.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, l.abandon(prev, ctx.Err())
		case <-timer.C:
		}

		holdings, err = l.attempt(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, l.abandon(prev, ctx.Err())
			}
			return nil, l.fail(err)
		}
	}

	l.mu.Lock()
	l.state = LoaderLoaded
	l.holdings = holdings
	l.lastErr = nil
	l.loadedAt = time.Now()
	l.mu.Unlock()

	l.logger.Info("holdings loaded", "count", len(holdings))
	return holdings, nil
}

func (l *Loader) attempt(ctx context.Context) ([]model.Holding, error) {
	l.mu.Lock()
	l.attempts++
	l.mu.Unlock()

	holdings, err := l.provider.Fetch(ctx)
	if err == nil {
		err = Validate(holdings)
	}
	if err != nil {
		l.mu.Lock()
		l.failures++
		l.mu.Unlock()
		return nil, err
	}
	return holdings, nil
}

// abandon restores the state held before a load the caller gave up on.
// A cancelled caller is not a provider failure, so nothing is cached.
func (l *Loader) abandon(prev LoaderState, err error) error {
	l.mu.Lock()
	l.state = prev
	l.mu.Unlock()

	l.logger.Debug("holdings load abandoned", "error", err)
	return err
}

// fail records err as the terminal error of the current load.
func (l *Loader) fail(err error) error {
	l.mu.Lock()
	l.state = LoaderFailed
	l.lastErr = err
	l.mu.Unlock()

	l.logger.Error("holdings load failed", "error", err)
	return err
}
