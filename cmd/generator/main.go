package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/generator/internal/generator"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/config"
)

var basePrices = map[string]float64{
	"AAPL": 150.0, "GOOG": 2800.0, "TSLA": 700.0, "AMZN": 3400.0,
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	creator := generator.NewTopicCreator(logger, generator.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 5 * time.Second}}, generator.RealClock{})
	creator.Ensure(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{}, // same symbol, same partition
		// Optimization: Send batches to reduce network IO
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}

	gen := generator.NewStockGenerator(logger, writer, cfg.Generator.Tickers, basePrices,
		cfg.Generator.Interval, generator.NewRealRand(), generator.RealClock{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		gen.Run(ctx)
		close(done)
	}()

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()
	<-done

	// Async writer buffers; Close flushes it
	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
