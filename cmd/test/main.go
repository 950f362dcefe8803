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
	"market-pulse/src/logger"
	"market-pulse/src/serializers"
	"market-pulse/src/sessions"
	"market-pulse/src/store"
	"market-pulse/src/utils"
)

// Console harness: runs the simulated feed and prints the event stream a
// client session would receive, without binding any ports.
func main() {
	symbolsFlag := flag.String("symbols", "AAPL,MSFT,TSLA", "comma-separated symbols to stream")
	flag.Parse()

	cfg := config.NewDefaultConfig("market-pulse-test")
	cfg.Feed.APIKey = ""

	appLogger := logger.NewLogger(cfg.Name, "debug")
	defer appLogger.Sync()

	quoteStore := store.NewQuoteStore(cfg.Feed.SparklineSamples, time.Duration(cfg.Feed.SparklineIntervalSec)*time.Second)

	connector, err := feed.NewConnector(cfg, appLogger, quoteStore)
	if err != nil {
		fmt.Printf("Error creating connector: %v\n", err)
		os.Exit(1)
	}
	if err := connector.Start(); err != nil {
		fmt.Printf("Error starting connector: %v\n", err)
		os.Exit(1)
	}
	defer connector.Stop()

	symbols := utils.SplitSymbols(*symbolsFlag)
	connector.EnsureSubscribed(symbols)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	session := sessions.NewSession(quoteStore, serializers.NewJSONSerializer(), appLogger, symbols)
	if err := session.Run(ctx, &consoleEmitter{}); err != nil {
		appLogger.Error("session error: %v", err)
	}

	appLogger.Info("shutting down...")
}

// consoleEmitter prints each session event to stdout.
type consoleEmitter struct{}

func (e *consoleEmitter) Emit(event string, payload []byte) error {
	fmt.Printf("[%s] %s %s\n", time.Now().Format("15:04:05.000"), event, payload)
	return nil
}
