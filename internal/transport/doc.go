// Package transport выполняет отдельные попытки HTTP-доставки.
//
// Центральный контракт — интерфейс Transport:
//
//	type Transport interface {
//	    Send(ctx context.Context, req *domain.Request) Outcome
//	}
//
// Send не возвращает ошибок: результат всегда Outcome,
// классифицируемый в один из шести исходов (Kind):
//
//	successful   2xx
//	client_error 4xx — неповторяемый
//	server_error 5xx — повторяемый
//	other_status 1xx/3xx — повторяемый
//	timed_out    connection-level таймаут, код 0 — повторяемый
//	inconsistent нет ни ответа, ни таймаута, код −1 —
//	             повторяемый только при retry_inconsistent=true
//
// Реализация HTTPTransport строится на net/http: таймаут через context,
// keep-alive через http.Transport, измерение wall/cpu времени попытки.
package transport
