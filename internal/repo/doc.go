// Package repo реализует доступ к Postgres.
//
// Репозитории — тонкие структуры над *pgxpool.Pool с inline SQL.
// RequestRepo экспонирует семантические операции очереди доставки:
//
//   - ClaimReadyBatch — атомарный захват батча готовых строк
//     (SELECT ... FOR UPDATE SKIP LOCKED + UPDATE в pending)
//   - Complete / Fail / Defer — переходы состояния; каждый UPDATE
//     снимает блокировку и выставляет retry_at атомарно, так что
//     инварианты pending⇔locked и waiting⇔retry_at держатся
//     на уровне отдельного statement
//   - PromoteWaiting — set-based sweep строк с истёкшим retry_at
//   - Abandon / AdminUnlock / RetryNow — административные действия
//
// LogRepo ведёт append-only журнал попыток доставки.
//
// Claim-транзакция повторяется до 5 раз при deadlock (40P01)
// и serialization failure (40001); см. tx.go.
package repo
