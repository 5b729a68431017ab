package domain

import (
	"time"
)

// DefaultRetryFactor — основание экспоненциального backoff по умолчанию.
const DefaultRetryFactor = 2

// Request — намерение выполнить один HTTP-запрос.
//
// Request создаётся внешним кодом в состоянии ready и дальше
// мутируется только воркером (claim → обработка → переход состояния)
// и административными действиями (abandon, manual unlock).
// Строки никогда не удаляются.
type Request struct {
	// ID — монотонный идентификатор (BIGSERIAL).
	ID int64 `json:"id"`

	// Priority — приоритет внутри батча: меньше значение — раньше обработка.
	Priority int `json:"priority"`

	// URL — адрес доставки.
	URL string `json:"url"`

	// Method — HTTP-метод (GET, POST, ...).
	Method string `json:"method"`

	// Headers — заголовки запроса. На диске хранятся как JSON;
	// чувствительные значения (Authorization, Cookie) — зашифрованными.
	Headers map[string]string `json:"headers,omitempty"`

	// Payload — тело запроса (JSON-текст).
	Payload string `json:"payload,omitempty"`

	// State — текущее состояние доставки.
	State RequestState `json:"state"`

	// StateChangedAt — время последнего перехода состояния.
	StateChangedAt time.Time `json:"state_changed_at"`

	// RetryAt — самый ранний момент возврата в ready.
	// NULL всегда, кроме state=waiting.
	RetryAt *time.Time `json:"retry_at,omitempty"`

	// RetryCount — количество завершённых попыток доставки,
	// не закончившихся completed. Монотонно не убывает.
	RetryCount int `json:"retry_count"`

	// RetryFactor — основание экспоненты backoff (default 2).
	RetryFactor int `json:"retry_factor"`

	// RetryInconsistent — если false, inconsistent-исходы транспорта
	// (код −1) фатальны, а не повторяемы.
	RetryInconsistent bool `json:"retry_inconsistent"`

	// LockedAt — штамп блокировки. Не NULL ⇔ state=pending.
	LockedAt *time.Time `json:"locked_at,omitempty"`

	// CompletedAt — время успешного завершения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// AbandonedAt — время отказа оператором.
	AbandonedAt *time.Time `json:"abandoned_at,omitempty"`

	// TimingsWallMs, TimingsCPUMs — измерения последней попытки.
	TimingsWallMs float64 `json:"timings_wall_ms"`
	TimingsCPUMs  float64 `json:"timings_cpu_ms"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// AttemptInfo — результат одной попытки доставки для операций store.
type AttemptInfo struct {
	// WallMs, CPUMs — измерения попытки; пишутся в timings_* колонки.
	WallMs float64
	CPUMs  float64

	// CountAttempt — увеличивает ли попытка retry_count.
	CountAttempt bool
}

// IsFinished возвращает true, если request в терминальном состоянии.
func (r *Request) IsFinished() bool {
	return r.State.IsTerminal()
}

// IsLocked возвращает true, если строка удерживается воркером.
func (r *Request) IsLocked() bool {
	return r.LockedAt != nil
}

// MarkPending захватывает request: state=pending + штамп блокировки.
func (r *Request) MarkPending(now time.Time) {
	r.State = StatePending
	r.StateChangedAt = now
	r.LockedAt = &now
}

// MarkCompleted фиксирует успешную доставку.
func (r *Request) MarkCompleted(now time.Time, info AttemptInfo) {
	r.State = StateCompleted
	r.StateChangedAt = now
	r.CompletedAt = &now
	r.RetryAt = nil
	r.LockedAt = nil
	r.applyAttempt(info)
}

// MarkFailed фиксирует вердикт системы: доставка не состоится.
func (r *Request) MarkFailed(now time.Time, info AttemptInfo) {
	r.State = StateFailed
	r.StateChangedAt = now
	r.RetryAt = nil
	r.LockedAt = nil
	r.applyAttempt(info)
}

// MarkWaiting откладывает request до retryAt.
func (r *Request) MarkWaiting(now, retryAt time.Time, info AttemptInfo) {
	r.State = StateWaiting
	r.StateChangedAt = now
	r.RetryAt = &retryAt
	r.LockedAt = nil
	r.applyAttempt(info)
}

// MarkReady возвращает request в очередь (sweeper или admin unlock).
func (r *Request) MarkReady(now time.Time) {
	r.State = StateReady
	r.StateChangedAt = now
	r.RetryAt = nil
	r.LockedAt = nil
}

// MarkAbandoned — внешнее действие оператора.
// Возвращает false для строк в терминальном состоянии.
func (r *Request) MarkAbandoned(now time.Time) bool {
	if r.State.IsTerminal() {
		return false
	}
	r.State = StateAbandoned
	r.StateChangedAt = now
	r.AbandonedAt = &now
	r.RetryAt = nil
	r.LockedAt = nil
	return true
}

// Unlock снимает штамп блокировки, не трогая состояние.
func (r *Request) Unlock() {
	r.LockedAt = nil
}

func (r *Request) applyAttempt(info AttemptInfo) {
	r.TimingsWallMs = info.WallMs
	r.TimingsCPUMs = info.CPUMs
	if info.CountAttempt {
		r.RetryCount++
	}
}
