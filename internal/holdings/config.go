package holdings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/pricestream/internal/config"
	"github.com/rickgao/pricestream/internal/database"
)

// NewProvider builds the provider selected by cfg. The returned cleanup
// function releases any connections the provider holds.
func NewProvider(ctx context.Context, cfg config.HoldingsConfig, logger *slog.Logger) (Provider, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() {}

	switch cfg.Source {
	case config.HoldingsSourceStatic, "":
		return NewStaticProvider(DemoHoldings()), noop, nil

	case config.HoldingsSourceFile:
		return NewFileProvider(cfg.Path), noop, nil

	case config.HoldingsSourceHTTP:
		return NewHTTPProvider(cfg.URL,
			WithTimeout(cfg.Timeout),
			WithLogger(logger.With("component", "holdings_http")),
		), noop, nil

	case config.HoldingsSourcePostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect holdings database: %w", err)
		}
		return NewPostgresProvider(pool, cfg.Table), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown holdings source %q", cfg.Source)
	}
}
