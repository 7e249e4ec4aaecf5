// Package main is the entry point for the release announcement mailer.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shineum/release-announcer/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	root := newRootCommand(defaultStreams())
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, pipeline.ErrHalted) {
			slog.Error("announce failed", "error", err)
		}
		stop()
		os.Exit(1)
	}
}
