// Command repricer runs the automated repricing engine against a mock
// inventory. Real deployments supply their own ListingProvider and
// PriceApplier; this binary exists to run the engine end to end with the
// built-in offer source.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skuflow/repricer/internal/app"
	"github.com/skuflow/repricer/internal/config"
	"github.com/skuflow/repricer/internal/inventory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := app.NewLogger(os.Getenv("REPRICER_LOG_LEVEL"))

	inv := inventory.NewMemoryInventory()
	a, err := app.New(cfg, app.Deps{
		Provider: inv,
		Applier:  inv,
		Identity: inventory.DefaultIdentity(),
	}, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
