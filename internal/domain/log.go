package domain

import (
	"net/http"
	"time"
)

// Коды-сентинелы для попыток без HTTP-ответа.
const (
	// CodeTimedOut — connection-level таймаут.
	CodeTimedOut = 0

	// CodeInconsistent — транспорт не вернул ничего пригодного:
	// ни ответа, ни connection-ошибки.
	CodeInconsistent = -1
)

// RequestLog — запись об одной попытке доставки (append-only).
//
// На каждый request приходится по одной строке на попытку;
// порядок строк соответствует хронологии попыток.
type RequestLog struct {
	// ID — идентификатор записи.
	ID int64 `json:"id"`

	// RequestID — ссылка на родительский request.
	RequestID int64 `json:"request_id"`

	// ResponseCode — HTTP-код ответа либо сентинел (0, −1).
	ResponseCode int `json:"response_code"`

	// ResponseBody — тело ответа. NULL для inconsistent-исходов.
	ResponseBody *string `json:"response_body,omitempty"`

	// ResponseHeaders — заголовки ответа (JSON на диске).
	// NULL для inconsistent-исходов.
	ResponseHeaders http.Header `json:"response_headers,omitempty"`

	// CreatedAt — время попытки.
	CreatedAt time.Time `json:"created_at"`
}
