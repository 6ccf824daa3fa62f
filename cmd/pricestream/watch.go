package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/rickgao/pricestream/internal/watchlist"
)

type watchCmd struct{}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "toggle or list watchlisted symbols" }
func (*watchCmd) Usage() string {
	return `watch [SYMBOL...]

  Toggles each SYMBOL in the watchlist, then prints the watchlist.
  Without arguments it only prints the watchlist.
`
}

func (*watchCmd) SetFlags(*flag.FlagSet) {}

func (*watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}

	backend, err := watchlist.NewBackend(cfg.Watchlist)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer backend.Close()

	w := watchlist.New(backend, cfg.Watchlist.Key, logger)
	if err := w.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading watchlist: %v\n", err)
		return subcommands.ExitFailure
	}

	for _, arg := range f.Args() {
		sym := strings.ToUpper(arg)
		on, err := w.Toggle(ctx, sym)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error toggling %s: %v\n", sym, err)
			return subcommands.ExitFailure
		}
		if on {
			fmt.Printf("+ %s\n", sym)
		} else {
			fmt.Printf("- %s\n", sym)
		}
	}

	symbols := w.Symbols()
	if len(symbols) == 0 {
		fmt.Println("Watchlist is empty.")
		return subcommands.ExitSuccess
	}
	fmt.Printf("Watchlist: %s\n", strings.Join(symbols, ", "))
	return subcommands.ExitSuccess
}
