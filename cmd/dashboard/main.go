package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/dashboard/internal/dashboard"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/config"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/signalr"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// stdout belongs to the dashboard, diagnostics go to stderr
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	client := signalr.NewClient(cfg.Hub, logger)
	client.OnStateChange(func(from, to signalr.State) {
		logger.Info("Hub state", zap.Stringer("from", from), zap.Stringer("to", to))
	})

	term := dashboard.NewTerminal(os.Stdout, logger)
	view := dashboard.NewView(client, cfg.Hub.Event, term.Draw, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	view.Mount()
	<-stop

	logger.Info("Shutdown signal received")
	view.Unmount()
	view.Wait()
	logger.Info("Shutdown Complete")
}
