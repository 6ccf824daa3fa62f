package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Watchlist is an ordered set of favorited symbols.
type Watchlist struct {
	backend Backend
	key     string
	logger  *slog.Logger

	mu      sync.RWMutex
	symbols []string
}

// New creates an empty watchlist stored under key.
func New(backend Backend, key string, logger *slog.Logger) *Watchlist {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchlist{
		backend: backend,
		key:     key,
		logger:  logger.With("key", key),
	}
}

// Load reads the persisted set. Missing or corrupt data leaves the watchlist
// empty; only backend failures are returned, and they also leave it empty.
func (w *Watchlist) Load(ctx context.Context) error {
	data, err := w.backend.Get(ctx, w.key)

	var symbols []string
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		w.set(nil)
		return fmt.Errorf("load watchlist: %w", err)
	default:
		symbols, err = Decode(data)
		if err != nil {
			w.logger.Warn("discarding unreadable watchlist", "error", err)
			symbols = nil
		}
	}

	w.set(symbols)
	w.logger.Debug("watchlist loaded", "symbols", len(symbols))
	return nil
}

// Toggle adds symbol if absent and removes it if present, then persists the
// whole set. It reports whether symbol is favorited afterwards. On a write
// failure the in-memory set is left unchanged.
func (w *Watchlist) Toggle(ctx context.Context, symbol string) (bool, error) {
	if symbol == "" {
		return false, errors.New("symbol is empty")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	next := slices.Clone(w.symbols)
	idx := slices.Index(next, symbol)
	added := idx < 0
	if added {
		next = append(next, symbol)
	} else {
		next = slices.Delete(next, idx, idx+1)
	}

	data, err := Encode(next)
	if err != nil {
		return !added, err
	}
	if err := w.backend.Set(ctx, w.key, data); err != nil {
		return !added, fmt.Errorf("save watchlist: %w", err)
	}

	w.symbols = next
	return added, nil
}

// Contains reports whether symbol is favorited.
func (w *Watchlist) Contains(symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Contains(w.symbols, symbol)
}

// Symbols returns the favorites in insertion order.
func (w *Watchlist) Symbols() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.symbols)
}

func (w *Watchlist) set(symbols []string) {
	w.mu.Lock()
	w.symbols = symbols
	w.mu.Unlock()
}

// Encode serializes symbols as a JSON array.
func Encode(symbols []string) ([]byte, error) {
	if symbols == nil {
		symbols = []string{}
	}
	return json.Marshal(symbols)
}

// Decode parses a JSON array of symbols. Empty entries and duplicates are
// dropped, keeping the first occurrence.
func Decode(data []byte) ([]string, error) {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(raw))
	for _, sym := range raw {
		if sym == "" || slices.Contains(out, sym) {
			continue
		}
		out = append(out, sym)
	}
	return out, nil
}
