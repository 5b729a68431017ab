// Package worker реализует цикл доставки requests.
//
// # Обзор
//
// Worker — долгоживущий процесс, который дренирует очередь requests
// из общего реляционного хранилища. Воркер отвечает за:
//
//   - Захват батча готовых строк (claim: ready → pending + блокировка)
//   - Последовательную обработку батча в порядке (priority, id)
//   - Классификацию исхода каждой попытки и переход состояния
//   - Retry с экспоненциальным backoff через состояние waiting
//   - Sweep: продвижение waiting-строк с истёкшим retry_at в ready,
//     не чаще раза в секунду на воркер
//   - Кооперативное завершение по сигналу
//
// Воркеры масштабируются горизонтально: несколько процессов работают
// с одним хранилищем, координируясь только row-level блокировками
// (SELECT ... FOR UPDATE SKIP LOCKED на стороне store). Потоков внутри
// процесса нет — один цикл, последовательная обработка.
//
// # Цикл (тик)
//
//  1. Опциональный ping БД (useDbReconnect)
//  2. Sweep через secondGate (не чаще раза в секунду)
//  3. ClaimReadyBatch → Load → process для каждой строки
//  4. Сон до конца тика
//
// Ошибка цикла логируется, следующий тик начинается после
// 5-секундной штрафной паузы. Цикл в полёте никогда не прерывается
// сигналом — иначе утекли бы pending-блокировки; сигнал наблюдается
// между циклами.
//
// # Обработка строки
//
// Транспорт возвращает Outcome, классифицируемый в один из шести
// исходов. Дальше:
//
//   - successful → completed
//   - client_error, inconsistent при retry_inconsistent=false → failed
//     (попытка считается: retry_count+1)
//   - повторяемый исход при retry_count ≥ max_retries → failed
//     (без инкремента: лимит был исчерпан ранее)
//   - повторяемый исход иначе → waiting, retry_count+1,
//     retry_at = now + base · factor^retry_count (потолок 1 час)
//
// Каждая попытка даёт ровно одну запись в request_logs (код 0 —
// таймаут, −1 — inconsistent). Неожиданная ошибка процессора ставит
// строку на паузу (waiting с короткой отсрочкой), а не в failed.
// Блокировка снимается безусловно в конце обработки.
//
// # Восстановление
//
// Строка может остаться в pending, если воркер умер посреди цикла
// (SIGKILL). Автоматического reaping нет — это защита от двойной
// доставки, когда исходный воркер просто медленный. Восстановление —
// административное действие (admin unlock в CLI).
package worker
