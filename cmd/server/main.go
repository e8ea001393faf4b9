// Package main implements the entry point for the notify-api server, the
// asynchronous notification pipeline behind the todo application: REST API,
// RabbitMQ publisher and consumers, and the periodic scan scheduler.
package main

import (
	"context"
	"log"

	"github.com/phrazzld/notify-api/internal/config"
	"github.com/phrazzld/notify-api/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.Setup(cfg.Server)
	logg.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	ctx := context.Background()

	app, err := newApplication(ctx, cfg, logg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
