// Package domain содержит доменные сущности Courier.
//
// Основные типы:
//   - Request — персистентное намерение выполнить HTTP-запрос;
//     проходит состояния ready → pending → {completed, failed, waiting}.
//   - RequestLog — append-only запись об одной попытке доставки.
//   - RequestState — перечисление состояний с проверкой терминальности.
//
// Инварианты, которые поддерживают переходы MarkX():
//   - locked_at != NULL ⇔ state = pending
//   - retry_at != NULL ⇔ state = waiting
//   - терминальные состояния (completed, failed, abandoned) поглощающие
//   - retry_count монотонно не убывает
//
// Сущности не знают ни о БД, ни о транспорте — это чистые типы,
// используемые воркером, репозиториями и тестами.
package domain
