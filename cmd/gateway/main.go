package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/gateway/internal/gateway"
	"github.com/kothawaleganesh/signalr-stock-demo/cmd/gateway/internal/hub"
	"github.com/kothawaleganesh/signalr-stock-demo/cmd/gateway/internal/repository"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/config"
)

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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	feed := repository.NewRedisFeed(rdb)

	// Dependency Injection: Hub depends on the PriceFeed Interface
	wsHub := hub.NewHub(feed, cfg.Hub.Event, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := wsHub.Run(ctx); err != nil {
			logger.Error("Price feed stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: gateway.NewHandler(cfg.Server.Path, cfg.Server.AllowedOrigins, wsHub, logger),
	}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.Server.Port), zap.String("path", cfg.Server.Path))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	srv.Shutdown(shutdownCtx)
	wsHub.Shutdown()
	cancel()

	if err := feed.Close(); err != nil {
		logger.Error("Error closing Redis", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
