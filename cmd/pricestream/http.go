package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/stream"
	"github.com/rickgao/pricestream/internal/version"
	"github.com/rickgao/pricestream/internal/watchlist"
)

// newHandler creates the HTTP handler for health checks, debugging and
// holdings reloads.
func newHandler(svc *stream.Service, portfolio *stream.Portfolio, favorites *watchlist.Watchlist, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := svc.Stats()
		view := portfolio.Latest()

		health := struct {
			Status     string                 `json:"status"`
			Version    version.Info           `json:"version"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]interface{}),
		}

		health.Components["feed"] = map[string]interface{}{
			"status":          stats.Supervisor.Status,
			"generation":      stats.Supervisor.Generation,
			"dials":           stats.Supervisor.Dials,
			"failures":        stats.Supervisor.Failures,
			"ticks_forwarded": stats.Supervisor.TicksForwarded,
			"ticks_dropped":   stats.Supervisor.TicksDropped,
		}
		health.Components["batcher"] = map[string]interface{}{
			"flushes":   stats.Batch.Flushes,
			"coalesced": stats.Batch.TicksCoalesced,
			"discarded": stats.Batch.TicksDiscarded,
			"pending":   stats.Batch.Pending,
		}
		health.Components["holdings"] = map[string]interface{}{
			"state": view.HoldingsState,
			"error": view.HoldingsError,
		}

		switch {
		case stats.Supervisor.Status == model.StatusDisconnected:
			health.Status = "unhealthy"
		case stats.Supervisor.Status != model.StatusConnected:
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Debug("write health response", "error", err)
		}
	})

	mux.HandleFunc("/debug/prices", func(w http.ResponseWriter, r *http.Request) {
		st := svc.Store().Snapshot()

		symbols := make([]string, 0, len(st.Prices))
		for sym := range st.Prices {
			symbols = append(symbols, sym)
		}
		slices.Sort(symbols)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    st.Status,
			"version":   st.Version,
			"count":     len(symbols),
			"symbols":   symbols,
			"prices":    st.Prices,
			"watchlist": favorites.Symbols(),
		})
	})

	mux.HandleFunc("/debug/portfolio", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(portfolio.Latest())
	})

	mux.HandleFunc("/holdings/reload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := portfolio.Reload(r.Context()); err != nil {
			logger.Warn("holdings reload failed", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}
