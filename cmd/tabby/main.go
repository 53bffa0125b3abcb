package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/five82/tabby/internal/app"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override tabby config path (optional)")
	prefsPath := flag.String("prefs", "", "override preferences path (optional)")
	refreshSeconds := flag.Int("refresh", 0, "background refresh interval in seconds (optional, overrides config)")
	query := flag.String("query", "", "start with this breed search (optional)")
	listOnly := flag.Bool("list", false, "print matching breeds and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Query:      *query,
		ListOnly:   *listOnly,
		Version:    version,
	}
	if refresh := *refreshSeconds; refresh > 0 {
		opts.RefreshEvery = time.Duration(refresh) * time.Second
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "tabby: %v\n", err)
		return 1
	}
	return 0
}
