// pricestream values a portfolio against a live price feed.
//
// Usage:
//
//	pricestream [-config pricestream.yaml] <command> [flags] [args]
//
// Configuration is read from the YAML file (optional), then .env, then
// PRICESTREAM_* environment variables, e.g.:
//
//	PRICESTREAM_FEED_ENDPOINT_URL=wss://feed.example.com/ticks
//	PRICESTREAM_FEED_USE_SYNTHETIC_SOURCE=false
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "", "path to config file (defaults apply when empty)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&streamCmd{}, "")
	commander.Register(&valueCmd{}, "")
	commander.Register(&watchCmd{}, "")
	commander.Register(&versionCmd{}, "")

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	status := commander.Execute(ctx)
	cancel()
	os.Exit(int(status))
}
