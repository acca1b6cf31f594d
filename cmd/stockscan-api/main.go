// StockScanner API — HTTP API истории runs и ручного запуска.
//
// С RABBITMQ_URL ручной запуск публикуется в runs.requested и
// выполняется scheduler. Без брокера run выполняется в этом процессе.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/StockScanner/internal/api"
	"github.com/shaiso/StockScanner/internal/app"
	"github.com/shaiso/StockScanner/internal/config"
	"github.com/shaiso/StockScanner/internal/mq"
	"github.com/shaiso/StockScanner/internal/pipeline"
	"github.com/shaiso/StockScanner/internal/telemetry"
	"github.com/shaiso/StockScanner/internal/trigger"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("stockscan-api")
	logger.Info("starting stockscan-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var dispatcher api.Dispatcher
	var runner *pipeline.Runner

	if cfg.AMQPURL != "" {
		conn, err := mq.Dial(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		dispatcher = mq.NewPublisher(conn, logger)
		logger.Info("manual dispatch through RabbitMQ")
	} else {
		runner, err = a.NewRunner(nil)
		if err != nil {
			logger.Error("failed to create runner", "error", err)
			os.Exit(1)
		}
		dispatcher = trigger.New(trigger.Config{
			Schedule: a.Schedule,
			Launcher: runner,
			Logger:   logger,
		})
		logger.Warn("RABBITMQ_URL is empty, manual runs execute in this process")
	}

	handler := api.NewHandler(api.Config{
		Runs:       a.Store,
		Dispatcher: dispatcher,
		Schedule:   a.Schedule,
		Logger:     logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", cfg.APIAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if runner != nil {
		if err := runner.Shutdown(shutdownCtx); err != nil {
			logger.Error("runs did not finish before shutdown", "error", err)
		}
	}

	logger.Info("stopped")
}
