package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrClaimFailed — SELECT нашёл кандидатов, но UPDATE не затронул
	// ни одной строки (гонка проиграна другому воркеру).
	ErrClaimFailed = errors.New("claim failed")

	// ErrInvalidState — операция невозможна в текущем состоянии строки.
	ErrInvalidState = errors.New("invalid state")
)
