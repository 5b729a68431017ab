// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Воркер использует единый формат логирования и экспортирует
// метрики на /metrics endpoint.
package telemetry
