// Scriptum Scheduler — daemon контент-пайплайна.
//
// По расписанию запускает цикл прогона: захватывает подготовленные
// строки таблицы, прогоняет их через писателя и модератора, при
// необходимости генерирует изображение и записывает результат
// обратно в строку.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkoval/scriptum/internal/cli"
	"github.com/nkoval/scriptum/internal/config"
	"github.com/nkoval/scriptum/internal/events"
	"github.com/nkoval/scriptum/internal/schedule"
	"github.com/nkoval/scriptum/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting scriptum-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings, err := config.Load()
	if err != nil {
		logger.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	if len(settings.Schedule) == 0 {
		logger.Error("SCHEDULE_CONFIG is empty, nothing to schedule")
		os.Exit(1)
	}

	// События опциональны: без брокера воркер полноценно работает
	var publisher *events.Publisher
	if settings.RabbitURL != "" {
		conn, err := events.Dial(settings.RabbitURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, events disabled", "error", err)
		} else {
			defer conn.Close()
			publisher = events.NewPublisher(conn, logger)
		}
	}

	runner, err := cli.BuildRunner(ctx, settings, publisher, logger)
	if err != nil {
		logger.Error("failed to build the processing pipeline", "error", err)
		os.Exit(1)
	}

	driver, err := schedule.NewDriver(settings.Schedule, runner.RunTabs, logger)
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", settings.SchedulerPort)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	if err := driver.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("scriptum-scheduler stopped")
}
