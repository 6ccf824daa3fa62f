package main

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pricestream/internal/source"
)

func TestWalker_StaysPositive(t *testing.T) {
	symbols := []string{"AAPL", "MSFT"}
	w := newWalker(symbols, rand.New(rand.NewSource(1)))

	for i := 0; i < 1000; i++ {
		msg := w.step(symbols)
		assert.Contains(t, symbols, msg.Symbol)
		assert.Greater(t, msg.Price, 0.0)
	}
}

func TestFeedHandler_SendsParsableTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := &feedHandler{
		cfg:    feedConfig{Interval: 5 * time.Millisecond, Symbols: []string{"AAPL", "GOOGL"}},
		logger: slog.Default(),
		ctx:    ctx,
	}
	server := httptest.NewServer(h)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 5; i++ {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		tick, err := source.ParseTick(data, time.Now())
		require.NoError(t, err)
		assert.Contains(t, []string{"AAPL", "GOOGL"}, tick.Symbol)
		assert.True(t, tick.Price.IsPositive())
	}
}

func TestFeedHandler_Garbage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := &feedHandler{
		cfg:    feedConfig{Interval: 5 * time.Millisecond, Symbols: []string{"AAPL"}, Garbage: 1},
		logger: slog.Default(),
		ctx:    ctx,
	}
	server := httptest.NewServer(h)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	_, err = source.ParseTick(data, time.Now())
	assert.ErrorIs(t, err, source.ErrMalformedTick)
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, splitSymbols(" aapl, ,MSFT,"))
	assert.Empty(t, splitSymbols(""))
}

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func TestPublishKafka(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &recordingWriter{}
	cfg := feedConfig{Interval: 2 * time.Millisecond, Symbols: []string{"AAPL", "MSFT"}}

	done := make(chan error, 1)
	go func() {
		done <- publishKafka(ctx, w, cfg, rand.New(rand.NewSource(7)), slog.Default())
	}()

	require.Eventually(t, func() bool { return w.count() >= 5 }, time.Second, 2*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.True(t, w.closed)
	for _, m := range w.msgs {
		tick, err := source.ParseTick(m.Value, time.Now())
		require.NoError(t, err)
		assert.Equal(t, tick.Symbol, string(m.Key))
	}
}
