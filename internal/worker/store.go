package worker

import (
	"context"
	"time"

	"github.com/courierhq/courier/internal/domain"
)

// Store — семантические операции хранилища requests, нужные воркеру.
//
// Реализуется repo.RequestRepo; тесты используют in-memory реализацию.
// Все переходы атомарны: каждый UPDATE сохраняет инварианты
// pending⇔locked и waiting⇔retry_at сам по себе.
type Store interface {
	// Ping проверяет соединение (вызывается каждый тик при useDbReconnect).
	Ping(ctx context.Context) error

	// ClaimReadyBatch атомарно переводит до limit готовых строк в pending
	// со штампом блокировки и возвращает их ids в порядке (priority, id).
	ClaimReadyBatch(ctx context.Context, limit int) ([]int64, error)

	// Load возвращает полные строки по ids в порядке (priority, id).
	Load(ctx context.Context, ids []int64) ([]domain.Request, error)

	// Complete/Fail/Defer — атомарные переходы состояния,
	// снимающие блокировку и записывающие тайминги попытки.
	Complete(ctx context.Context, id int64, info domain.AttemptInfo) error
	Fail(ctx context.Context, id int64, info domain.AttemptInfo) error
	Defer(ctx context.Context, id int64, retryAt time.Time, info domain.AttemptInfo) error

	// Unlock безусловно снимает штамп блокировки.
	Unlock(ctx context.Context, id int64) error

	// PromoteWaiting продвигает строки с истёкшим retry_at в ready.
	PromoteWaiting(ctx context.Context) (int64, error)
}

// LogStore — append-only журнал попыток доставки.
// Реализуется repo.LogRepo.
type LogStore interface {
	Append(ctx context.Context, log *domain.RequestLog) error
}
