package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"automl/internal"
	"automl/internal/config"
	"automl/internal/container"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Observability.LogLevel))
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize container: %v", err)
		os.Exit(1)
	}
	defer c.Shutdown(context.Background())

	srv := c.ServingServer()
	if err := srv.Load(ctx); err != nil {
		// Keep serving; /predict answers 503 until a model is registered and reloaded.
		logger.Warn("Could not load model: %v", err)
	}

	if err := srv.Run(ctx, ":"+cfg.Server.Port, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("Server failed: %v", err)
		stop()
		os.Exit(1)
	}
}
