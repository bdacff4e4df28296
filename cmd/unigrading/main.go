// Command unigrading serves the course library.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dalemusser/unigrading/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, bootstrap.Hooks); err != nil {
		// WAFFLE owns the configured logger; this one only reports a failed boot.
		logger, _ := zap.NewProduction()
		logger.Fatal("unigrading exited", zap.Error(err))
	}
}
