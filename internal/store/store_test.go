package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pricestream/internal/model"
)

func snap(kv ...string) model.PriceSnapshot {
	out := make(model.PriceSnapshot, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = decimal.RequireFromString(kv[i+1])
	}
	return out
}

func TestNew(t *testing.T) {
	s := New()
	assert.Equal(t, model.StatusDisconnected, s.Status())
	assert.Empty(t, s.Prices())
	assert.Equal(t, uint64(0), s.Snapshot().Version)
}

func TestMerge(t *testing.T) {
	s := New()

	s.Merge(snap("AAPL", "175", "MSFT", "410"))
	s.Merge(snap("AAPL", "176"))

	p, ok := s.Price("AAPL")
	require.True(t, ok)
	assert.Equal(t, "176", p.String())

	p, ok = s.Price("MSFT")
	require.True(t, ok)
	assert.Equal(t, "410", p.String(), "symbols outside the batch keep their price")

	_, ok = s.Price("TSLA")
	assert.False(t, ok)

	assert.Equal(t, uint64(2), s.Snapshot().Version)
	assert.Equal(t, int64(2), s.Stats().Merges)
}

func TestMerge_EmptyBatchIsNoop(t *testing.T) {
	s := New()
	s.Merge(nil)
	s.Merge(model.PriceSnapshot{})

	assert.Equal(t, uint64(0), s.Snapshot().Version)
	assert.Equal(t, int64(0), s.Stats().Merges)
}

func TestMerge_DoesNotAliasBatch(t *testing.T) {
	s := New()
	batch := snap("AAPL", "175")
	s.Merge(batch)

	batch["AAPL"] = decimal.NewFromInt(1)
	p, _ := s.Price("AAPL")
	assert.Equal(t, "175", p.String())
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s := New()
	s.Merge(snap("AAPL", "175"))

	before := s.Snapshot()
	s.Merge(snap("AAPL", "200", "GOOGL", "2800"))

	assert.Len(t, before.Prices, 1)
	assert.Equal(t, "175", before.Prices["AAPL"].String())

	// Prices returns a private copy.
	copied := s.Prices()
	delete(copied, "AAPL")
	_, ok := s.Price("AAPL")
	assert.True(t, ok)
}

func TestSetStatus(t *testing.T) {
	s := New()
	s.Merge(snap("AAPL", "175"))

	s.SetStatus(model.StatusConnecting)
	s.SetStatus(model.StatusConnected)
	assert.Equal(t, model.StatusConnected, s.Status())
	assert.Equal(t, uint64(3), s.Snapshot().Version)

	// Same status again does not bump the version.
	s.SetStatus(model.StatusConnected)
	assert.Equal(t, uint64(3), s.Snapshot().Version)

	// Status changes keep prices.
	s.SetStatus(model.StatusReconnecting)
	_, ok := s.Price("AAPL")
	assert.True(t, ok)
}

func TestWatch_InitialState(t *testing.T) {
	s := New()
	s.Merge(snap("AAPL", "175"))

	w := s.Watch()
	defer w.Close()

	select {
	case st := <-w.Updates():
		assert.Equal(t, uint64(1), st.Version)
		assert.Equal(t, "175", st.Prices["AAPL"].String())
	case <-time.After(time.Second):
		t.Fatal("expected initial state")
	}
}

func TestWatch_Coalesces(t *testing.T) {
	s := New()
	w := s.Watch()
	defer w.Close()

	for i := 1; i <= 10; i++ {
		s.Merge(snap("AAPL", fmt.Sprintf("%d", i)))
	}
	s.SetStatus(model.StatusConnected)

	st := <-w.Updates()
	assert.Equal(t, uint64(11), st.Version, "a slow watcher sees only the latest state")
	assert.Equal(t, "10", st.Prices["AAPL"].String())
	assert.Equal(t, model.StatusConnected, st.Status)

	select {
	case extra := <-w.Updates():
		t.Fatalf("unexpected backlog: version %d", extra.Version)
	default:
	}
}

func TestWatch_Close(t *testing.T) {
	s := New()
	w := s.Watch()
	assert.Equal(t, 1, s.Stats().Watchers)

	w.Close()
	w.Close() // idempotent
	assert.Equal(t, 0, s.Stats().Watchers)

	// Drain the initial state, then expect the channel to be closed.
	for range w.Updates() {
	}

	// Writes after close must not panic.
	s.Merge(snap("AAPL", "1"))
}

func TestWatch_ConcurrentWriters(t *testing.T) {
	s := New()
	w := s.Watch()
	defer w.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.Merge(snap("AAPL", fmt.Sprintf("%d", i+1)))
		}
	}()
	go func() {
		defer wg.Done()
		statuses := []model.ConnectionStatus{model.StatusConnecting, model.StatusConnected}
		for i := 0; i < 100; i++ {
			s.SetStatus(statuses[i%2])
		}
	}()
	wg.Wait()

	var last *State
	timeout := time.After(time.Second)
	for last == nil || last.Version != s.Snapshot().Version {
		select {
		case st := <-w.Updates():
			if last != nil {
				require.Greater(t, st.Version, last.Version, "versions delivered in order")
			}
			last = st
		case <-timeout:
			t.Fatalf("watcher did not converge; last=%v current=%d", last, s.Snapshot().Version)
		}
	}
	assert.Equal(t, "100", last.Prices["AAPL"].String())
}
