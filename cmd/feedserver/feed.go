package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type feedConfig struct {
	Interval time.Duration
	Symbols  []string
	Garbage  float64 // Probability of sending a malformed message
}

// tickMessage is the wire shape read by the network source.
type tickMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// walker moves each symbol's price by up to ±1% per step.
type walker struct {
	rand   *rand.Rand
	prices map[string]decimal.Decimal
}

func newWalker(symbols []string, r *rand.Rand) *walker {
	w := &walker{rand: r, prices: make(map[string]decimal.Decimal, len(symbols))}
	for _, sym := range symbols {
		w.prices[sym] = decimal.NewFromFloat(100 + r.Float64()*900).Round(2)
	}
	return w
}

// step advances one random symbol and returns its new price.
func (w *walker) step(symbols []string) tickMessage {
	sym := symbols[w.rand.Intn(len(symbols))]
	change := decimal.NewFromFloat((w.rand.Float64() - 0.5) * 0.02)
	next := w.prices[sym].Mul(decimal.NewFromInt(1).Add(change)).Round(2)
	if !next.IsPositive() {
		next = decimal.RequireFromString("0.01")
	}
	w.prices[sym] = next
	return tickMessage{Symbol: sym, Price: next.InexactFloat64()}
}

type feedHandler struct {
	cfg    feedConfig
	logger *slog.Logger
	ctx    context.Context
}

func (h *feedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := h.logger.With("remote", r.RemoteAddr)
	logger.Info("client connected")

	// The read loop answers pings and notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	r2 := rand.New(rand.NewSource(time.Now().UnixNano()))
	walk := newWalker(h.cfg.Symbols, r2)

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-h.ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case <-gone:
			logger.Info("client disconnected", "sent", sent)
			return
		case <-ticker.C:
			var payload []byte
			if r2.Float64() < h.cfg.Garbage {
				payload = []byte(`{"symbol":"","price":"garbage"}`)
			} else {
				payload, _ = json.Marshal(walk.step(h.cfg.Symbols))
			}

			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Warn("write failed", "error", err)
				return
			}
			sent++
		}
	}
}
