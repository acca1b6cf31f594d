// StockScanner Scheduler — выполняет pipeline сканера.
//
// Scheduler:
//   - Срабатывает по cron-расписанию (по умолчанию "0 12 * * 1-5", UTC)
//   - Принимает ручные запуски из RabbitMQ (runs.requested)
//   - Выполняет run: проверка квоты, затем запуск сканера
//   - Публикует итог в runs.finished
//   - Отдаёт API, /healthz и /metrics
//
// При нескольких репликах тики расписания обрабатывает только лидер.
package main

import (
	"context"
	"errors"
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
	logger := telemetry.SetupLogger("stockscan-scheduler")
	logger.Info("starting stockscan-scheduler")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if missing := cfg.Secrets.Missing(); len(missing) > 0 {
		logger.Warn("secrets are not configured", "missing", missing)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// RabbitMQ
	var mqConn *mq.Connection
	var notifier pipeline.Notifier
	if cfg.AMQPURL != "" {
		mqConn, err = mq.Dial(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer mqConn.Close()

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		logger.Info("RabbitMQ connected", "topology", mq.TopologyInfo())
		notifier = mq.NewPublisher(mqConn, logger)
	} else {
		logger.Warn("RABBITMQ_URL is empty, manual dispatch only through this process API")
	}

	runner, err := a.NewRunner(notifier)
	if err != nil {
		logger.Error("failed to create runner", "error", err)
		os.Exit(1)
	}

	dispatcher := trigger.New(trigger.Config{
		Schedule: a.Schedule,
		Launcher: runner,
		Leader:   a.Gate,
		CatchUp:  cfg.CatchUpWindow,
		Logger:   logger,
	})

	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatcher stopped", "error", err)
			cancel()
		}
	}()

	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   mq.QueueRunsRequested,
			Handler: mq.RunRequestedHandler(runner),
		})
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "error", err)
				cancel()
			}
		}()
	}

	// HTTP: API (ручной запуск в процессе) + /healthz + /metrics
	handler := api.NewHandler(api.Config{
		Runs:       a.Store,
		Dispatcher: dispatcher,
		Schedule:   a.Schedule,
		Logger:     logger,
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.SchedulerAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", cfg.SchedulerAddr, "next_due", dispatcher.NextDue())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "active_runs", runner.ActiveRuns())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	// Активные run дорабатывают до конца.
	runCtx, runCancel := context.WithTimeout(context.Background(), cfg.ScannerTimeout+cfg.InstallTimeout)
	defer runCancel()
	if err := runner.Shutdown(runCtx); err != nil {
		logger.Error("runs did not finish before shutdown", "error", err)
	}

	logger.Info("stopped")
}
