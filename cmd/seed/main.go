// Command seed populates the database with a demo account and sample todos
// for local development.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/OriginalCade/todo-app/internal/api"
	"github.com/OriginalCade/todo-app/internal/config"
	"github.com/OriginalCade/todo-app/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	ctx := context.Background()

	srv, err := api.NewServer(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("init server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			appLogger.Error("close resources failed", slog.String("error", err.Error()))
		}
	}()

	if err := srv.SeedDemoData(ctx); err != nil {
		appLogger.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	appLogger.Info("seeding complete")
}
