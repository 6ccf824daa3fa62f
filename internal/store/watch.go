package store

import "sync"

// Watcher delivers store updates. Updates coalesce: a slow reader sees only
// the most recent state, never a backlog.
type Watcher struct {
	store   *PriceStore
	updates chan *State
	once    sync.Once
	offered uint64 // Highest version offered; guarded by watchMu
	started bool
}

// Watch registers a watcher. The current state is delivered immediately.
func (s *PriceStore) Watch() *Watcher {
	w := &Watcher{
		store:   s,
		updates: make(chan *State, 1),
	}

	s.watchMu.Lock()
	s.watchers[w] = struct{}{}
	w.offer(s.state.Load())
	s.watchMu.Unlock()

	return w
}

// Updates returns the update channel. It is closed by Close.
func (w *Watcher) Updates() <-chan *State {
	return w.updates
}

// Close unregisters the watcher and closes its channel.
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.store.watchMu.Lock()
		delete(w.store.watchers, w)
		close(w.updates)
		w.store.watchMu.Unlock()
	})
}

// offer replaces any undelivered state with st. Older versions are ignored.
// Must be called with watchMu held.
func (w *Watcher) offer(st *State) {
	if w.started && st.Version <= w.offered {
		return
	}
	w.started = true
	w.offered = st.Version

	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- st:
	default:
	}
}
