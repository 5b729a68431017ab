package domain

// RequestState — состояние доставки request.
//
// Жизненный цикл:
//
//	ready → pending → completed
//	              ↘ failed
//	              ↘ waiting → ready (после retry_at)
//	(любое нетерминальное) → abandoned (действие оператора)
type RequestState string

const (
	// StateReady — request готов к немедленному захвату воркером.
	StateReady RequestState = "ready"

	// StatePending — request захвачен воркером и обрабатывается в текущем цикле.
	// Пара (state=pending, locked_at != NULL) — это блокировка строки.
	StatePending RequestState = "pending"

	// StateWaiting — request ожидает retry_at перед следующей попыткой.
	StateWaiting RequestState = "waiting"

	// StateCompleted — доставка успешно завершена.
	StateCompleted RequestState = "completed"

	// StateFailed — вердикт системы: retry исчерпаны или статус неповторяемый.
	StateFailed RequestState = "failed"

	// StateAbandoned — решение оператора: доставка прекращена вручную.
	StateAbandoned RequestState = "abandoned"
)

// IsTerminal возвращает true, если состояние финальное.
// Из терминального состояния переходов нет.
func (s RequestState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateAbandoned:
		return true
	default:
		return false
	}
}

// States перечисляет все состояния (для метрик и валидации CLI-фильтров).
func States() []RequestState {
	return []RequestState{
		StateReady,
		StatePending,
		StateWaiting,
		StateCompleted,
		StateFailed,
		StateAbandoned,
	}
}

// ParseState парсит строку в RequestState.
// Возвращает пустое значение для неизвестной строки.
func ParseState(s string) RequestState {
	for _, state := range States() {
		if string(state) == s {
			return state
		}
	}
	return ""
}
