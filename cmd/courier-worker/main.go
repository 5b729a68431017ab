// Courier Worker — гарантированная доставка HTTP-запросов.
//
// Воркер:
//   - Захватывает батчи готовых requests из Postgres (row-level locks)
//   - Выполняет доставку через HTTP-транспорт
//   - Классифицирует исход и двигает состояние (completed/failed/waiting)
//   - Продвигает waiting-строки обратно в ready (sweeper)
//
// Воркеры масштабируются горизонтально против одной БД.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courierhq/courier/internal/config"
	"github.com/courierhq/courier/internal/monitor"
	"github.com/courierhq/courier/internal/repo"
	"github.com/courierhq/courier/internal/seal"
	"github.com/courierhq/courier/internal/telemetry"
	"github.com/courierhq/courier/internal/transport"
	"github.com/courierhq/courier/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting courier-worker")

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if !cfg.Enabled {
		logger.Info("courier is disabled, exiting")
		return
	}

	// graceful shutdown: SIGTERM и SIGQUIT; цикл в полёте доводится до конца
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, "")
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// Шифрование чувствительных заголовков
	sealer, err := seal.New(cfg.SealKey, nil)
	if err != nil {
		logger.Error("invalid seal key", "error", err)
		os.Exit(1)
	}
	if !sealer.Enabled() {
		logger.Warn("header sealing disabled, sensitive headers stored in plaintext")
	}

	// Репозитории
	requestRepo := repo.NewRequestRepo(pool, sealer)
	logRepo := repo.NewLogRepo(pool)

	// Монитор глубины очереди
	mon := monitor.New(requestRepo, logger)
	if err := mon.Start(); err != nil {
		logger.Error("failed to start monitor", "error", err)
		os.Exit(1)
	}
	defer mon.Stop()

	// Воркер
	w, err := worker.New(worker.Config{
		Store:          requestRepo,
		Logs:           logRepo,
		Transport:      transport.NewHTTPTransport(cfg.Timeout(), cfg.KeepAlive),
		BatchSize:      cfg.BatchSize,
		TickInterval:   cfg.TickInterval(),
		MaxRetries:     cfg.MaximumNumberOfRetries,
		RetryBaseDelay: cfg.RetryBaseDelay(),
		RetryMaxDelay:  cfg.RetryMaxDelay(),
		PauseDelay:     cfg.PauseDelay(),
		UseDBReconnect: cfg.UseDBReconnect,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("failed to construct worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Цикл доставки; выходит после завершения тика при сигнале
	if err := w.Run(ctx); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}

	logger.Info("courier-worker stopped")
}
