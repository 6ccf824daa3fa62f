// feedserver serves a random-walk tick feed over WebSocket for local testing.
// Usage: go run ./cmd/feedserver -addr :8765 [-kafka localhost:9092 -topic ticks]
//
// Point pricestream at it with:
//
//	PRICESTREAM_FEED_USE_SYNTHETIC_SOURCE=false
//	PRICESTREAM_FEED_ENDPOINT_URL=ws://localhost:8765/ticks
//
// or, with -kafka, at kafka://localhost:9092/ticks.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/pricestream/internal/config"
)

func main() {
	addr := flag.String("addr", ":8765", "listen address")
	interval := flag.Duration("interval", 250*time.Millisecond, "time between ticks per connection")
	symbols := flag.String("symbols", strings.Join(config.DefaultSymbols, ","), "comma-separated symbols")
	garbage := flag.Float64("garbage", 0, "fraction of malformed messages to send (0-1)")
	brokers := flag.String("kafka", "", "comma-separated Kafka brokers; also publish ticks to -topic")
	topic := flag.String("topic", "ticks", "Kafka topic for -kafka")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	if len(splitSymbols(*symbols)) == 0 {
		logger.Error("no symbols configured")
		os.Exit(1)
	}

	feed := &feedHandler{
		cfg: feedConfig{
			Interval: *interval,
			Symbols:  splitSymbols(*symbols),
			Garbage:  *garbage,
		},
		logger: logger,
		ctx:    ctx,
	}

	if *brokers != "" {
		go func() {
			w := newKafkaWriter(*brokers, *topic)
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			logger.Info("publishing to kafka", "brokers", *brokers, "topic", *topic)
			if err := publishKafka(ctx, w, feed.cfg, r, logger); err != nil {
				logger.Error("kafka publisher failed", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/ticks", feed)

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("feed server listening", "addr", *addr, "path", "/ticks", "interval", *interval)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("feed server stopped")
}

// upgrader is shared by all connections.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func splitSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(s, ",") {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
