package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/pricestream/internal/connection"
	"github.com/rickgao/pricestream/internal/model"
)

// ErrMalformedTick is returned by ParseTick for messages that are not valid
// ticks.
var ErrMalformedTick = errors.New("malformed tick")

// wireTick is the inbound message shape.
type wireTick struct {
	Symbol string   `json:"symbol"`
	Price  *float64 `json:"price"`
}

// ParseTick decodes one feed message. The symbol must be a non-empty string
// and the price a finite positive number.
func ParseTick(data []byte, at time.Time) (model.Tick, error) {
	var w wireTick
	if err := json.Unmarshal(data, &w); err != nil {
		return model.Tick{}, fmt.Errorf("%w: %v", ErrMalformedTick, err)
	}
	if w.Symbol == "" {
		return model.Tick{}, fmt.Errorf("%w: missing symbol", ErrMalformedTick)
	}
	if w.Price == nil {
		return model.Tick{}, fmt.Errorf("%w: missing price", ErrMalformedTick)
	}
	if p := *w.Price; math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return model.Tick{}, fmt.Errorf("%w: price %v", ErrMalformedTick, p)
	}

	return model.Tick{
		Symbol:     w.Symbol,
		Price:      decimal.NewFromFloat(*w.Price),
		ObservedAt: at,
	}, nil
}

// NetworkStats provides statistics about a network source.
type NetworkStats struct {
	State     connection.SourceState
	Received  int64 // Messages read from the socket
	Malformed int64 // Messages dropped by ParseTick
	Dropped   int64 // Frames dropped by the client because the buffer was full
}

// Network reads ticks from a WebSocket feed. It never writes to the socket.
type Network struct {
	cfg    connection.ClientConfig
	logger *slog.Logger

	mu     sync.Mutex
	state  connection.SourceState
	client connection.Client
	cancel context.CancelFunc

	received  atomic.Int64
	malformed atomic.Int64
}

// NewNetwork creates a network source for cfg.URL.
func NewNetwork(cfg connection.ClientConfig, logger *slog.Logger) *Network {
	if logger == nil {
		logger = slog.Default()
	}
	return &Network{
		cfg:    cfg,
		logger: logger.With("url", cfg.URL),
	}
}

// Start dials the endpoint in the background.
func (n *Network) Start(ctx context.Context, emit connection.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != connection.SourceIdle {
		return
	}
	n.state = connection.SourceOpening

	ctx, n.cancel = context.WithCancel(ctx)
	n.client = connection.NewClient(n.cfg, n.logger)
	go n.run(ctx, n.client, emit)
}

// Close tears down the connection if it is open or still handshaking.
func (n *Network) Close() error {
	n.mu.Lock()
	prev := n.state
	if prev == connection.SourceClosed {
		n.mu.Unlock()
		return nil
	}
	n.state = connection.SourceClosed
	client := n.client
	if n.cancel != nil {
		n.cancel()
	}
	n.mu.Unlock()

	if prev == connection.SourceIdle || client == nil {
		return nil
	}
	return client.Close()
}

// State returns the current lifecycle state.
func (n *Network) State() connection.SourceState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Stats returns current statistics.
func (n *Network) Stats() NetworkStats {
	n.mu.Lock()
	state, client := n.state, n.client
	n.mu.Unlock()

	stats := NetworkStats{
		State:     state,
		Received:  n.received.Load(),
		Malformed: n.malformed.Load(),
	}
	if client != nil {
		stats.Dropped = client.Stats().Dropped
	}
	return stats
}

func (n *Network) run(ctx context.Context, client connection.Client, emit connection.Emitter) {
	if err := client.Connect(ctx); err != nil {
		if n.closedByOwner(ctx) {
			return
		}
		n.fail(client, emit, fmt.Errorf("dial: %w", err))
		return
	}

	if !n.transition(connection.SourceOpening, connection.SourceOpen) {
		return
	}
	n.logger.Info("feed connected")
	emit.Open()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-client.Frames():
			n.received.Add(1)
			t, err := ParseTick(msg.Data, msg.ReceivedAt)
			if err != nil {
				n.malformed.Add(1)
				n.logger.Debug("dropping message", "error", err)
				continue
			}
			emit.Tick(t)

		case err := <-client.Err():
			if n.closedByOwner(ctx) {
				return
			}
			n.fail(client, emit, err)
			return
		}
	}
}

// fail reports a transport failure followed by the close.
func (n *Network) fail(client connection.Client, emit connection.Emitter, err error) {
	n.mu.Lock()
	n.state = connection.SourceClosed
	n.mu.Unlock()

	client.Close()

	n.logger.Warn("feed failed", "error", err)
	emit.Error(err)
	emit.Closed()
}

func (n *Network) transition(from, to connection.SourceState) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != from {
		return false
	}
	n.state = to
	return true
}

func (n *Network) closedByOwner(ctx context.Context) bool {
	return ctx.Err() != nil || n.State() == connection.SourceClosed
}
