package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courierhq/courier/internal/telemetry"
	"github.com/courierhq/courier/internal/transport"
)

// Значения конфигурации по умолчанию.
const (
	defaultBatchSize      = 100
	defaultTickInterval   = 2_000_000 * time.Microsecond
	defaultMaxRetries     = 10
	defaultRetryBaseDelay = 5 * time.Second
	defaultRetryMaxDelay  = time.Hour
	defaultPauseDelay     = time.Minute

	// errorPenalty — сон после ошибки цикла, чтобы не заливать лог.
	errorPenalty = 5 * time.Second
)

// Worker — долгоживущий процесс доставки requests.
//
// Каждый тик воркер:
//   - опционально проверяет соединение с БД
//   - не чаще раза в секунду продвигает waiting-строки в ready (sweeper)
//   - захватывает батч готовых строк и обрабатывает их последовательно
//   - досыпает остаток тика
//
// Параллелизм достигается запуском нескольких экземпляров против
// одного хранилища: row-level блокировки делают это безопасным.
// Внутри батча строки обрабатываются последовательно в порядке
// (priority, id).
type Worker struct {
	store     Store
	logs      LogStore
	transport transport.Transport

	batchSize      int
	tickInterval   time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	pauseDelay     time.Duration
	useDBReconnect bool

	// id — 8-символьный тег экземпляра в логах.
	id     string
	logger *slog.Logger
	gate   *secondGate
	now    func() time.Time
}

// Config — конфигурация Worker.
type Config struct {
	Store     Store
	Logs      LogStore
	Transport transport.Transport

	// BatchSize — строк за цикл (default: 100).
	BatchSize int

	// TickInterval — минимальный период цикла (default: 2s).
	TickInterval time.Duration

	// MaxRetries — лимит retry до failed (default: 10).
	MaxRetries int

	// RetryBaseDelay, RetryMaxDelay — база и потолок
	// экспоненциального backoff (default: 5s, 1h).
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// PauseDelay — отсрочка при неожиданной ошибке процессора (default: 1m).
	PauseDelay time.Duration

	// UseDBReconnect — ping хранилища каждый тик (default: false).
	UseDBReconnect bool

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
//
// Отсутствующее хранилище, журнал или транспорт и отрицательный
// размер батча — фатальные ошибки конструирования.
func New(cfg Config) (*Worker, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	if cfg.Logs == nil {
		return nil, ErrNoLogStore
	}
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadBatchSize, cfg.BatchSize)
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	retryBaseDelay := cfg.RetryBaseDelay
	if retryBaseDelay <= 0 {
		retryBaseDelay = defaultRetryBaseDelay
	}

	retryMaxDelay := cfg.RetryMaxDelay
	if retryMaxDelay <= 0 {
		retryMaxDelay = defaultRetryMaxDelay
	}

	pauseDelay := cfg.PauseDelay
	if pauseDelay <= 0 {
		pauseDelay = defaultPauseDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()[:8]

	return &Worker{
		store:          cfg.Store,
		logs:           cfg.Logs,
		transport:      cfg.Transport,
		batchSize:      batchSize,
		tickInterval:   tickInterval,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		pauseDelay:     pauseDelay,
		useDBReconnect: cfg.UseDBReconnect,
		id:             id,
		logger:         telemetry.WithWorkerID(logger, id),
		gate:           newSecondGate(nil),
		now:            time.Now,
	}, nil
}

// ID возвращает тег экземпляра.
func (w *Worker) ID() string {
	return w.id
}

// Run выполняет цикл воркера до отмены ctx.
//
// Сигнал завершения наблюдается только между циклами: цикл в полёте
// всегда доводится до конца, иначе утекли бы pending-блокировки.
// SIGKILL вне контракта — восстановление застрявших строк
// выполняется оператором через admin unlock.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		"batch_size", w.batchSize,
		"tick_interval", w.tickInterval,
		"max_retries", w.maxRetries,
	)

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return nil
		}

		start := time.Now()

		// Цикл не прерывается отменой ctx: только таймауты транспорта.
		cycleCtx := context.WithoutCancel(ctx)
		if err := w.cycle(cycleCtx); err != nil {
			w.logger.Error("cycle failed", "error", err)
			w.sleep(ctx, errorPenalty)
			continue
		}

		elapsed := time.Since(start)
		telemetry.CycleDuration.Observe(elapsed.Seconds())

		if remaining := w.tickInterval - elapsed; remaining > 0 {
			w.sleep(ctx, remaining)
		}
	}
}

// cycle выполняет один тик: ping, sweep, claim, process.
func (w *Worker) cycle(ctx context.Context) error {
	if w.useDBReconnect {
		if err := w.store.Ping(ctx); err != nil {
			return fmt.Errorf("ping store: %w", err)
		}
	}

	if w.gate.TryEnter() {
		promoted, err := w.store.PromoteWaiting(ctx)
		if err != nil {
			return fmt.Errorf("promote waiting: %w", err)
		}
		if promoted > 0 {
			telemetry.Promoted.Add(float64(promoted))
			w.logger.Debug("promoted waiting requests", "count", promoted)
		}
	}

	claimStart := time.Now()
	ids, err := w.store.ClaimReadyBatch(ctx, w.batchSize)
	w.observeClaim(time.Since(claimStart))
	if err != nil {
		return fmt.Errorf("claim batch: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	w.logger.Debug("claimed batch", "count", len(ids))

	requests, err := w.store.Load(ctx, ids)
	if err != nil {
		return fmt.Errorf("load claimed requests: %w", err)
	}

	for i := range requests {
		w.process(ctx, &requests[i])
	}
	return nil
}

// observeClaim пишет длительность claim-транзакции в метрику и лог.
// Долгий захват — признак contention или отсутствующего индекса.
func (w *Worker) observeClaim(d time.Duration) {
	telemetry.ClaimDuration.Observe(d.Seconds())

	switch {
	case d >= 80*time.Second:
		w.logger.Error("batch claim critically slow", "duration", d)
	case d >= 60*time.Second:
		w.logger.Warn("batch claim slow", "duration", d)
	case d >= 30*time.Second:
		w.logger.Info("batch claim took long", "duration", d)
	}
}

// sleep ждёт d или отмену ctx (что наступит раньше).
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
