package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/pricestream/internal/holdings"
	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/store"
	"github.com/rickgao/pricestream/internal/valuation"
)

// PortfolioView is one valuation of the loaded holdings against the latest
// prices.
type PortfolioView struct {
	Summary       valuation.Summary      `json:"summary"`
	Status        model.ConnectionStatus `json:"status"`
	Version       uint64                 `json:"version"` // Store version the view was computed from
	HoldingsState holdings.LoaderState   `json:"holdingsState"`
	HoldingsError string                 `json:"holdingsError,omitempty"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// Portfolio keeps a PortfolioView current while it is open. Opening a
// portfolio attaches to the feed and triggers one holdings load.
type Portfolio struct {
	svc    *Service
	loader *holdings.Loader
	sub    *Subscription
	logger *slog.Logger

	views   chan PortfolioView
	refresh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	latest PortfolioView
	closed bool
}

// OpenPortfolio attaches to svc and starts loading holdings through loader.
func OpenPortfolio(ctx context.Context, svc *Service, loader *holdings.Loader, logger *slog.Logger) (*Portfolio, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sub, err := svc.Attach(ctx)
	if err != nil {
		return nil, err
	}

	p := &Portfolio{
		svc:     svc,
		loader:  loader,
		sub:     sub,
		logger:  logger.With("subscription", sub.ID),
		views:   make(chan PortfolioView, 1),
		refresh: make(chan struct{}, 1),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(2)
	go p.load()
	go p.run()

	return p, nil
}

// Views delivers recomputed views, coalesced to the latest. The channel is
// closed by Close.
func (p *Portfolio) Views() <-chan PortfolioView {
	return p.views
}

// Latest returns the most recently computed view.
func (p *Portfolio) Latest() PortfolioView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Reload fetches holdings again and recomputes the view.
func (p *Portfolio) Reload(ctx context.Context) error {
	_, err := p.loader.Reload(ctx)
	p.signal()
	return err
}

// Close detaches from the feed and stops recomputing.
func (p *Portfolio) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	close(p.views)

	return p.svc.Detach(ctx, p.sub)
}

func (p *Portfolio) load() {
	defer p.wg.Done()

	if _, err := p.loader.Load(p.ctx); err != nil {
		p.logger.Warn("holdings unavailable", "error", err)
	}
	p.signal()
}

func (p *Portfolio) signal() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

func (p *Portfolio) run() {
	defer p.wg.Done()

	var state *store.State
	for {
		select {
		case <-p.ctx.Done():
			return
		case st, ok := <-p.sub.Updates():
			if !ok {
				return
			}
			state = st
		case <-p.refresh:
			if state == nil {
				state = p.svc.Store().Snapshot()
			}
		}
		p.publish(p.compute(state))
	}
}

func (p *Portfolio) compute(st *store.State) PortfolioView {
	return PortfolioView{
		Summary:       valuation.Summarize(p.loader.Holdings(), st.Prices),
		Status:        st.Status,
		Version:       st.Version,
		HoldingsState: p.loader.State(),
		HoldingsError: p.loader.LastError(),
		UpdatedAt:     time.Now(),
	}
}

// publish replaces any undelivered view with v. run is the only sender.
func (p *Portfolio) publish(v PortfolioView) {
	p.mu.Lock()
	p.latest = v
	p.mu.Unlock()

	select {
	case p.views <- v:
		return
	default:
	}
	select {
	case <-p.views:
	default:
	}
	select {
	case p.views <- v:
	default:
	}
}
