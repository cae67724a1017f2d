// Command forestloss prepares the ministry forest catalog, joins it with the
// Global Forest Change rasters and trains the loss-year classifier.
//
// Usage:
//
//	forestloss clean
//	forestloss counties
//	forestloss join
//	forestloss train
//	forestloss run --config forestloss.toml
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
