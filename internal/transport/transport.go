package transport

import (
	"context"
	"net/http"

	"github.com/courierhq/courier/internal/domain"
)

// Kind — классификация исхода одной попытки доставки.
type Kind int

const (
	// KindSuccessful — HTTP-статус в [200, 299].
	KindSuccessful Kind = iota

	// KindClientError — статус в [400, 499]. Неповторяемый.
	KindClientError

	// KindServerError — статус в [500, 599]. Повторяемый.
	KindServerError

	// KindOtherStatus — любой другой статус (1xx, 3xx). Повторяемый.
	KindOtherStatus

	// KindTimedOut — connection-level таймаут, код 0. Повторяемый.
	KindTimedOut

	// KindInconsistent — ни ответа, ни connection-ошибки, код −1.
	// Повторяемый только при retry_inconsistent=true.
	KindInconsistent
)

// String возвращает метку исхода (используется в логах и метриках).
func (k Kind) String() string {
	switch k {
	case KindSuccessful:
		return "successful"
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindOtherStatus:
		return "other_status"
	case KindTimedOut:
		return "timed_out"
	case KindInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// Outcome — результат одной попытки доставки.
//
// Code содержит HTTP-статус либо сентинел: 0 — таймаут, −1 — inconsistent.
// Body и Headers равны nil для исходов без ответа.
type Outcome struct {
	Code    int
	Body    *string
	Headers http.Header

	// WallMs, CPUMs — измерения попытки.
	WallMs float64
	CPUMs  float64
}

// Kind классифицирует исход ровно в один из шести классов.
func (o Outcome) Kind() Kind {
	switch {
	case o.Code == domain.CodeTimedOut:
		return KindTimedOut
	case o.Code == domain.CodeInconsistent:
		return KindInconsistent
	case o.Code >= 200 && o.Code <= 299:
		return KindSuccessful
	case o.Code >= 400 && o.Code <= 499:
		return KindClientError
	case o.Code >= 500 && o.Code <= 599:
		return KindServerError
	default:
		return KindOtherStatus
	}
}

// Retryable возвращает true, если после такого исхода допустима
// ещё одна попытка. Для inconsistent решение зависит от флага строки.
func (o Outcome) Retryable(retryInconsistent bool) bool {
	switch o.Kind() {
	case KindServerError, KindOtherStatus, KindTimedOut:
		return true
	case KindInconsistent:
		return retryInconsistent
	default:
		return false
	}
}

// Transport выполняет одну попытку доставки request.
//
// Send никогда не возвращает ошибку: любой сбой HTTP-клиента
// отображается в Outcome с кодом-сентинелом (0 или −1).
// Таймаут обеспечивается самим транспортом.
type Transport interface {
	Send(ctx context.Context, req *domain.Request) Outcome
}
