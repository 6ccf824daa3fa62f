package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/pricestream/internal/holdings"
	"github.com/rickgao/pricestream/internal/report"
	"github.com/rickgao/pricestream/internal/source"
	"github.com/rickgao/pricestream/internal/stream"
	"github.com/rickgao/pricestream/internal/version"
	"github.com/rickgao/pricestream/internal/watchlist"
)

type streamCmd struct {
	refresh  time.Duration
	currency string
}

func (*streamCmd) Name() string     { return "stream" }
func (*streamCmd) Synopsis() string { return "value the portfolio against the live feed" }
func (*streamCmd) Usage() string {
	return `stream [-refresh <duration>] [-currency <code>]

  Connects to the price feed, loads holdings and prints the portfolio
  valuation whenever it changes. Watchlisted symbols are marked with *.
  Serves /health, /debug/prices, /debug/portfolio and POST /holdings/reload
  when http.addr is set.
`
}

func (c *streamCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.refresh, "refresh", time.Second, "minimum time between printed reports")
	f.StringVar(&c.currency, "currency", report.DefaultCurrency, "display currency, 3-letter code")
}

func (c *streamCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}

	srcCfg := source.FromConfig(cfg)
	logger.Info("starting pricestream",
		"version", version.Version,
		"commit", version.Commit,
		"source", srcCfg.Kind(),
		"endpoint", cfg.Feed.EndpointURL,
		"holdings", cfg.Holdings.Source,
	)

	provider, cleanup, err := holdings.NewProvider(ctx, cfg.Holdings, logger)
	if err != nil {
		logger.Error("failed to create holdings provider", "error", err)
		return subcommands.ExitFailure
	}
	defer cleanup()
	loader := holdings.NewLoader(provider, holdings.LoaderConfig{RetryDelay: cfg.Holdings.RetryDelay}, logger.With("component", "holdings"))

	backend, err := watchlist.NewBackend(cfg.Watchlist)
	if err != nil {
		logger.Error("failed to create watchlist backend", "error", err)
		return subcommands.ExitFailure
	}
	defer backend.Close()
	favorites := watchlist.New(backend, cfg.Watchlist.Key, logger)
	if err := favorites.Load(ctx); err != nil {
		logger.Warn("watchlist unavailable, starting empty", "error", err)
	}

	svc := stream.NewService(stream.FromConfig(cfg), source.NewFactory(srcCfg, logger), logger)
	portfolio, err := stream.OpenPortfolio(ctx, svc, loader, logger)
	if err != nil {
		logger.Error("failed to open portfolio", "error", err)
		return subcommands.ExitFailure
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.render(gctx, portfolio, favorites)
	})

	if cfg.HTTP.Addr != "" {
		server := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           newHandler(svc, portfolio, favorites, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting health server", "addr", cfg.HTTP.Addr)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := portfolio.Close(shutdownCtx); err != nil {
		logger.Warn("portfolio close", "error", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Warn("stream shutdown", "error", err)
	}

	if runErr != nil {
		logger.Error("pricestream failed", "error", runErr)
		return subcommands.ExitFailure
	}
	logger.Info("pricestream stopped")
	return subcommands.ExitSuccess
}

// render prints the latest view at most once per refresh interval.
func (c *streamCmd) render(ctx context.Context, p *stream.Portfolio, favorites *watchlist.Watchlist) error {
	refresh := c.refresh
	if refresh <= 0 {
		refresh = time.Second
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	opts := report.Options{Currency: c.currency, Favorite: favorites.Contains}

	var (
		latest  stream.PortfolioView
		pending bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-p.Views():
			if !ok {
				return nil
			}
			latest, pending = v, true
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			if err := printView(os.Stdout, latest, opts); err != nil {
				return err
			}
		}
	}
}

func printView(w io.Writer, v stream.PortfolioView, opts report.Options) error {
	fmt.Fprintf(w, "\n## Portfolio at %s (feed %s, holdings %s)\n\n",
		v.UpdatedAt.Format(time.TimeOnly), v.Status, v.HoldingsState)
	if v.HoldingsError != "" {
		fmt.Fprintf(w, "Holdings unavailable: %s\n", v.HoldingsError)
		return nil
	}
	return report.Summary(w, v.Summary, opts)
}
