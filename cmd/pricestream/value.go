package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pricestream/internal/holdings"
	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/report"
	"github.com/rickgao/pricestream/internal/valuation"
)

type valueCmd struct {
	file     string
	currency string
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "value holdings against given prices" }
func (*valueCmd) Usage() string {
	return `value [-holdings <file>] [-currency <code>] SYMBOL=PRICE...

  Values the holdings once against the prices given on the command line.
  Holdings come from the file given with -holdings, or from the configured
  holdings source. Symbols without a price are listed with n/a.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "holdings", "", "holdings file (YAML or JSON); overrides the configured source")
	f.StringVar(&c.currency, "currency", report.DefaultCurrency, "display currency, 3-letter code")
}

func (c *valueCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	prices, err := parsePrices(f.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	cfg, logger, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}

	var provider holdings.Provider = holdings.NewFileProvider(c.file)
	if c.file == "" {
		p, cleanup, err := holdings.NewProvider(ctx, cfg.Holdings, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating holdings provider: %v\n", err)
			return subcommands.ExitFailure
		}
		defer cleanup()
		provider = p
	}

	loader := holdings.NewLoader(provider, holdings.LoaderConfig{RetryDelay: cfg.Holdings.RetryDelay}, logger)
	list, err := loader.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading holdings: %v\n", err)
		return subcommands.ExitFailure
	}

	summary := valuation.Summarize(list, prices)
	if err := report.Summary(os.Stdout, summary, report.Options{Currency: c.currency}); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// parsePrices parses SYMBOL=PRICE arguments. Later arguments win.
func parsePrices(args []string) (model.PriceSnapshot, error) {
	prices := make(model.PriceSnapshot, len(args))
	for _, arg := range args {
		sym, raw, ok := strings.Cut(arg, "=")
		if !ok || sym == "" {
			return nil, fmt.Errorf("invalid price %q, want SYMBOL=PRICE", arg)
		}
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %w", sym, err)
		}
		if !p.IsPositive() {
			return nil, fmt.Errorf("price for %s must be positive", sym)
		}
		prices[strings.ToUpper(sym)] = p
	}
	return prices, nil
}
