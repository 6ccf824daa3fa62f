package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pricestream/internal/batch"
	"github.com/rickgao/pricestream/internal/config"
	"github.com/rickgao/pricestream/internal/connection"
	"github.com/rickgao/pricestream/internal/holdings"
	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/source"
	"github.com/rickgao/pricestream/internal/stream"
	"github.com/rickgao/pricestream/internal/watchlist"
)

func TestParsePrices(t *testing.T) {
	prices, err := parsePrices([]string{"AAPL=175", "msft=410.25", "AAPL=176"})
	require.NoError(t, err)
	assert.Len(t, prices, 2)
	assert.Equal(t, "176", prices["AAPL"].String())
	assert.Equal(t, "410.25", prices["MSFT"].String())

	for _, bad := range []string{"AAPL", "=1", "AAPL=abc", "AAPL=0", "AAPL=-1"} {
		_, err := parsePrices([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(config.LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	factory := source.NewFactory(source.Config{
		UseSynthetic: true,
		Synthetic:    source.SyntheticConfig{Interval: 5 * time.Millisecond, Symbols: []string{"AAPL"}},
	}, nil)
	svc := stream.NewService(stream.Config{
		Supervisor: connection.DefaultSupervisorConfig(),
		Batch:      batch.Config{FlushInterval: 10 * time.Millisecond},
	}, factory, nil)
	defer svc.Shutdown(context.Background())

	loader := holdings.NewLoader(holdings.NewStaticProvider(holdings.DemoHoldings()), holdings.DefaultLoaderConfig(), nil)
	portfolio, err := stream.OpenPortfolio(context.Background(), svc, loader, nil)
	require.NoError(t, err)
	defer portfolio.Close(context.Background())

	favorites := watchlist.New(watchlist.NewMemoryBackend(), "test", nil)
	_, err = favorites.Toggle(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := svc.Store().Price("AAPL")
		return ok && svc.Status() == model.StatusConnected
	}, 2*time.Second, 5*time.Millisecond)

	server := httptest.NewServer(newHandler(svc, portfolio, favorites, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status     string                     `json:"status"`
		Components map[string]json.RawMessage `json:"components"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Contains(t, string(health.Components["feed"]), `"status":"connected"`)

	resp2, err := http.Get(server.URL + "/debug/prices")
	require.NoError(t, err)
	defer resp2.Body.Close()

	var prices struct {
		Status    string   `json:"status"`
		Symbols   []string `json:"symbols"`
		Watchlist []string `json:"watchlist"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&prices))
	assert.Equal(t, []string{"AAPL"}, prices.Symbols)
	assert.Equal(t, []string{"AAPL"}, prices.Watchlist)
}

func TestHandler_UnhealthyWhenDisconnected(t *testing.T) {
	svc := stream.NewService(stream.DefaultConfig(), source.NewFactory(source.Config{UseSynthetic: true}, nil), nil)
	loader := holdings.NewLoader(holdings.NewStaticProvider(nil), holdings.DefaultLoaderConfig(), nil)
	portfolio, err := stream.OpenPortfolio(context.Background(), svc, loader, nil)
	require.NoError(t, err)
	require.NoError(t, portfolio.Close(context.Background()))

	rec := httptest.NewRecorder()
	newHandler(svc, portfolio, watchlist.New(watchlist.NewMemoryBackend(), "test", nil), nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"unhealthy"`))
}

func TestHandler_HoldingsReload(t *testing.T) {
	svc := stream.NewService(stream.DefaultConfig(), source.NewFactory(source.Config{UseSynthetic: true}, nil), nil)
	defer svc.Shutdown(context.Background())

	var healthy atomic.Bool
	provider := holdings.ProviderFunc(func(ctx context.Context) ([]model.Holding, error) {
		if !healthy.Load() {
			return nil, errors.New("holdings service unavailable")
		}
		return holdings.DemoHoldings(), nil
	})
	loader := holdings.NewLoader(provider, holdings.LoaderConfig{RetryDelay: time.Millisecond}, nil)
	portfolio, err := stream.OpenPortfolio(context.Background(), svc, loader, nil)
	require.NoError(t, err)
	defer portfolio.Close(context.Background())

	require.Eventually(t, func() bool {
		return loader.State() == holdings.LoaderFailed
	}, 2*time.Second, 5*time.Millisecond)

	handler := newHandler(svc, portfolio, watchlist.New(watchlist.NewMemoryBackend(), "test", nil), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/holdings/reload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/holdings/reload", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "holdings service unavailable")

	healthy.Store(true)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/holdings/reload", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, holdings.LoaderLoaded, loader.State())

	require.Eventually(t, func() bool {
		return portfolio.Latest().HoldingsState == holdings.LoaderLoaded
	}, 2*time.Second, 5*time.Millisecond)
}
