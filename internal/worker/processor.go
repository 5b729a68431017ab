package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/courierhq/courier/internal/domain"
	"github.com/courierhq/courier/internal/telemetry"
	"github.com/courierhq/courier/internal/transport"
)

// process обрабатывает одну захваченную строку.
//
// Ошибка или паника обработки переводит строку в waiting с короткой
// отсрочкой («пауза»), а не в failed — оператор может вмешаться,
// не теряя request. Блокировка снимается безусловно.
func (w *Worker) process(ctx context.Context, req *domain.Request) {
	logger := telemetry.WithRequestID(w.logger, req.ID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("processor panic, pausing request", "panic", rec)
			w.pause(ctx, req, logger)
		}
		if err := w.store.Unlock(ctx, req.ID); err != nil {
			logger.Error("failed to unlock request", "error", err)
		}
	}()

	if err := w.deliver(ctx, req, logger); err != nil {
		logger.Error("processing failed, pausing request", "error", err)
		w.pause(ctx, req, logger)
	}
}

// deliver выполняет одну попытку доставки и записывает её результат.
func (w *Worker) deliver(ctx context.Context, req *domain.Request, logger *slog.Logger) error {
	outcome := w.transport.Send(ctx, req)
	kind := outcome.Kind()
	telemetry.Attempts.WithLabelValues(kind.String()).Inc()

	if err := w.logs.Append(ctx, attemptLog(req.ID, outcome)); err != nil {
		return err
	}

	info := domain.AttemptInfo{WallMs: outcome.WallMs, CPUMs: outcome.CPUMs}

	switch {
	case kind == transport.KindSuccessful:
		logger.Info("request completed",
			"code", outcome.Code,
			"attempt", req.RetryCount+1,
			"wall_ms", outcome.WallMs,
		)
		return w.store.Complete(ctx, req.ID, info)

	case !outcome.Retryable(req.RetryInconsistent):
		// Неповторяемый исход: попытка состоялась и считается.
		info.CountAttempt = true
		logger.Warn("request failed",
			"code", outcome.Code,
			"outcome", kind.String(),
			"retry_count", req.RetryCount+1,
		)
		return w.store.Fail(ctx, req.ID, info)

	case req.RetryCount >= w.maxRetries:
		// Лимит исчерпан до этой попытки: счётчик не растёт.
		logger.Warn("retries exhausted",
			"code", outcome.Code,
			"retry_count", req.RetryCount,
			"max_retries", w.maxRetries,
		)
		return w.store.Fail(ctx, req.ID, info)

	default:
		info.CountAttempt = true
		delay := backoffDelay(w.retryBaseDelay, w.retryMaxDelay, req.RetryFactor, req.RetryCount)
		retryAt := w.now().Add(delay)
		logger.Info("request deferred",
			"code", outcome.Code,
			"outcome", kind.String(),
			"retry_count", req.RetryCount+1,
			"retry_at", retryAt,
		)
		return w.store.Defer(ctx, req.ID, retryAt, info)
	}
}

// pause откладывает строку на pauseDelay без учёта попытки.
func (w *Worker) pause(ctx context.Context, req *domain.Request, logger *slog.Logger) {
	retryAt := w.now().Add(w.pauseDelay)
	if err := w.store.Defer(ctx, req.ID, retryAt, domain.AttemptInfo{}); err != nil {
		logger.Error("failed to pause request", "error", err)
	}
}

// attemptLog строит запись журнала из исхода попытки.
// Для исходов без ответа (0, −1) тело и заголовки — NULL.
func attemptLog(requestID int64, outcome transport.Outcome) *domain.RequestLog {
	return &domain.RequestLog{
		RequestID:       requestID,
		ResponseCode:    outcome.Code,
		ResponseBody:    outcome.Body,
		ResponseHeaders: outcome.Headers,
	}
}

// backoffDelay вычисляет задержку перед retry.
//
// delay = base · factor^retryCount, с потолком max. Потолок проверяется
// на каждом умножении, чтобы не переполниться.
func backoffDelay(base, max time.Duration, factor, retryCount int) time.Duration {
	if factor < domain.DefaultRetryFactor {
		factor = domain.DefaultRetryFactor
	}

	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= time.Duration(factor)
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
