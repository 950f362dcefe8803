package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-pulse/src/config"
	"market-pulse/src/feed"
	"market-pulse/src/grpc_control"
	"market-pulse/src/logger"
	"market-pulse/src/rest"
	"market-pulse/src/serializers"
	"market-pulse/src/store"
)

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.Name, cfg.LogLevel)
	defer appLogger.Sync()

	// Quote store shared by the feed and every client-facing surface
	quoteStore := store.NewQuoteStore(cfg.Feed.SparklineSamples, time.Duration(cfg.Feed.SparklineIntervalSec)*time.Second)

	// Feed connector (live or simulated, decided by credential presence)
	connector, err := feed.NewConnector(cfg, appLogger, quoteStore)
	if err != nil {
		appLogger.Critical("failed to create feed connector: %v", err)
		os.Exit(1)
	}
	if err := connector.Start(); err != nil {
		appLogger.Critical("failed to start feed connector: %v", err)
		os.Exit(1)
	}
	defer connector.Stop()

	// REST + SSE server
	restServer := rest.NewServer(cfg, appLogger, quoteStore, connector, serializers.NewJSONSerializer())
	restErr := restServer.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := restServer.Stop(ctx); err != nil {
			appLogger.Error("rest shutdown error: %v", err)
		}
	}()

	// gRPC control plane (health service tracking the feed)
	controlService, err := grpc_control.NewGRPCService(cfg, appLogger, connector.Status)
	if err != nil {
		appLogger.Critical("failed to create control service: %v", err)
		os.Exit(1)
	}
	if err := controlService.Start(); err != nil {
		appLogger.Critical("failed to start control service: %v", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		controlService.Stop(ctx)
	}()

	appLogger.Info("market pulse running. REST API: :%d, gRPC: %s:%d",
		cfg.Port, cfg.GRPC_Host, cfg.GRPC_Port)
	appLogger.Info("Press Ctrl+C to stop.")

	// Wait for shutdown signal or a dead REST listener
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		appLogger.Info("shutting down...")
	case err := <-restErr:
		if err != nil {
			appLogger.Critical("rest server error: %v", err)
		}
	}
}
