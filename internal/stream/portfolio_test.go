package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pricestream/internal/holdings"
	"github.com/rickgao/pricestream/internal/model"
)

func position(symbol, qty, cost string) model.Holding {
	return model.Holding{
		Symbol:      symbol,
		Quantity:    decimal.RequireFromString(qty),
		AverageCost: decimal.RequireFromString(cost),
	}
}

func testLoader(p holdings.Provider) *holdings.Loader {
	return holdings.NewLoader(p, holdings.LoaderConfig{RetryDelay: 10 * time.Millisecond}, nil)
}

// awaitView reads views until match succeeds.
func awaitView(t *testing.T, p *Portfolio, match func(PortfolioView) bool) PortfolioView {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-p.Views():
			require.True(t, ok, "views closed")
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("no matching view; latest=%+v", p.Latest())
		}
	}
}

func TestPortfolio_ValuesAgainstLivePrices(t *testing.T) {
	svc, factory := newTestService(t)
	loader := testLoader(holdings.NewStaticProvider([]model.Holding{
		position("AAPL", "100", "150"),
		position("GOOGL", "10", "2800"),
	}))

	p, err := OpenPortfolio(context.Background(), svc, loader, nil)
	require.NoError(t, err)
	defer p.Close(context.Background())

	waitConnected(t, svc)
	factory.last().push("AAPL", "175")

	v := awaitView(t, p, func(v PortfolioView) bool {
		return v.HoldingsState == holdings.LoaderLoaded && v.Summary.Priced == 1
	})

	assert.Equal(t, "17500", v.Summary.TotalValue.String())
	assert.Equal(t, "2500", v.Summary.TotalPnl.String())
	assert.Equal(t, 1, v.Summary.Unpriced, "GOOGL has no price yet")
	require.Len(t, v.Summary.Items, 2)
	assert.Equal(t, "16.67", v.Summary.Items[0].DailyPnlPercent.Decimal.StringFixed(2))
	assert.False(t, v.Summary.Items[1].TotalValue.Valid)
	assert.Equal(t, model.StatusConnected, v.Status)
	assert.Empty(t, v.HoldingsError)

	factory.last().push("GOOGL", "2900")
	v = awaitView(t, p, func(v PortfolioView) bool { return v.Summary.Priced == 2 })
	assert.Equal(t, "46500", v.Summary.TotalValue.String())
	assert.Equal(t, "3500", v.Summary.TotalPnl.String())
	assert.Equal(t, v, p.Latest())
}

func TestPortfolio_HoldingsFailureAndReload(t *testing.T) {
	svc, _ := newTestService(t)

	var healthy atomic.Bool
	var calls atomic.Int64
	provider := holdings.ProviderFunc(func(ctx context.Context) ([]model.Holding, error) {
		calls.Add(1)
		if !healthy.Load() {
			return nil, errors.New("holdings service unavailable")
		}
		return []model.Holding{position("MSFT", "5", "400")}, nil
	})

	p, err := OpenPortfolio(context.Background(), svc, testLoader(provider), nil)
	require.NoError(t, err)
	defer p.Close(context.Background())

	v := awaitView(t, p, func(v PortfolioView) bool { return v.HoldingsState == holdings.LoaderFailed })
	assert.Equal(t, "holdings service unavailable", v.HoldingsError)
	assert.Empty(t, v.Summary.Items)
	assert.True(t, v.Summary.TotalValue.IsZero())
	assert.Equal(t, int64(2), calls.Load(), "one retry after the first failure")

	healthy.Store(true)
	require.NoError(t, p.Reload(context.Background()))

	v = awaitView(t, p, func(v PortfolioView) bool { return v.HoldingsState == holdings.LoaderLoaded })
	require.Len(t, v.Summary.Items, 1)
	assert.Equal(t, "MSFT", v.Summary.Items[0].Symbol)
	assert.Empty(t, v.HoldingsError)
}

func TestPortfolio_CloseDetaches(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := OpenPortfolio(context.Background(), svc, testLoader(holdings.NewStaticProvider(nil)), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Stats().Subscribers)

	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, 0, svc.Stats().Subscribers)
	assert.False(t, svc.Stats().Running)

	for range p.Views() {
	}
}

func TestPortfolio_OpenAfterShutdown(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Shutdown(context.Background()))

	_, err := OpenPortfolio(context.Background(), svc, testLoader(holdings.NewStaticProvider(nil)), nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPortfolio_ServiceShutdownEndsViews(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := OpenPortfolio(context.Background(), svc, testLoader(holdings.NewStaticProvider(nil)), nil)
	require.NoError(t, err)

	require.NoError(t, svc.Shutdown(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
}
