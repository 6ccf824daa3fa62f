package store

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/rickgao/pricestream/internal/model"
)

// State is an immutable view of the store.
type State struct {
	Prices  model.PriceSnapshot
	Status  model.ConnectionStatus
	Version uint64 // Increments on every write
}

// Stats contains store statistics.
type Stats struct {
	Symbols  int
	Version  uint64
	Merges   int64
	Watchers int
}

// PriceStore is the shared price store.
type PriceStore struct {
	state atomic.Pointer[State]

	writeMu sync.Mutex
	merges  int64

	watchMu  sync.Mutex
	watchers map[*Watcher]struct{}
}

// New creates an empty store in the disconnected state.
func New() *PriceStore {
	s := &PriceStore{
		watchers: make(map[*Watcher]struct{}),
	}
	s.state.Store(&State{
		Prices: model.PriceSnapshot{},
		Status: model.StatusDisconnected,
	})
	return s
}

// Merge publishes a batch of prices. Symbols in the batch replace their
// previous price; other symbols keep theirs. An empty batch is a no-op.
func (s *PriceStore) Merge(batch model.PriceSnapshot) {
	if len(batch) == 0 {
		return
	}

	s.writeMu.Lock()
	cur := s.state.Load()
	prices := make(model.PriceSnapshot, len(cur.Prices)+len(batch))
	for sym, p := range cur.Prices {
		prices[sym] = p
	}
	for sym, p := range batch {
		prices[sym] = p
	}
	next := &State{Prices: prices, Status: cur.Status, Version: cur.Version + 1}
	s.state.Store(next)
	s.merges++
	s.writeMu.Unlock()

	s.notify()
}

// SetStatus publishes a connection status change. Setting the current
// status again is a no-op.
func (s *PriceStore) SetStatus(status model.ConnectionStatus) {
	s.writeMu.Lock()
	cur := s.state.Load()
	if cur.Status == status {
		s.writeMu.Unlock()
		return
	}
	s.state.Store(&State{Prices: cur.Prices, Status: status, Version: cur.Version + 1})
	s.writeMu.Unlock()

	s.notify()
}

// Snapshot returns the current state. The returned prices must not be
// modified; use Prices for a private copy.
func (s *PriceStore) Snapshot() *State {
	return s.state.Load()
}

// Prices returns a copy of the latest prices.
func (s *PriceStore) Prices() model.PriceSnapshot {
	return s.state.Load().Prices.Clone()
}

// Price returns the latest price for a symbol.
func (s *PriceStore) Price(symbol string) (decimal.Decimal, bool) {
	p, ok := s.state.Load().Prices[symbol]
	return p, ok
}

// Status returns the current connection status.
func (s *PriceStore) Status() model.ConnectionStatus {
	return s.state.Load().Status
}

// Stats returns current statistics.
func (s *PriceStore) Stats() Stats {
	st := s.state.Load()

	s.writeMu.Lock()
	merges := s.merges
	s.writeMu.Unlock()

	s.watchMu.Lock()
	watchers := len(s.watchers)
	s.watchMu.Unlock()

	return Stats{
		Symbols:  len(st.Prices),
		Version:  st.Version,
		Merges:   merges,
		Watchers: watchers,
	}
}

func (s *PriceStore) notify() {
	st := s.state.Load()

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for w := range s.watchers {
		w.offer(st)
	}
}
