package source

import (
	"sync"

	"github.com/rickgao/pricestream/internal/model"
)

// recorder is an Emitter that records every callback.
type recorder struct {
	mu     sync.Mutex
	events []string
	ticks  []model.Tick
	errs   []error
}

func (r *recorder) Open() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "open")
}

func (r *recorder) Tick(t model.Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, t)
}

func (r *recorder) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "error")
	r.errs = append(r.errs, err)
}

func (r *recorder) Closed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "closed")
}

func (r *recorder) eventLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) tickLog() []model.Tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Tick(nil), r.ticks...)
}
