package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandroruanova/review-insights-service/internal/app"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/queue"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log := logger.Initialize(cfg.Environment, cfg.LogLevel).With(slog.String("service", "worker"))
	cfg.LogConfig()

	if err := run(cfg, log); err != nil {
		log.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	application, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer application.Close()

	server, err := queue.NewAsynqServer(&cfg.Queue, log)
	if err != nil {
		return err
	}
	application.WorkerHandlers().Register(server)

	periodic, err := queue.NewPeriodicScheduler(&cfg.Queue, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(); err != nil {
		return err
	}
	if err := periodic.Start(); err != nil {
		server.Shutdown()
		return err
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	periodic.Shutdown()
	server.Shutdown()
	return nil
}
