package worker

import "errors"

// Ошибки воркера.
var (
	// ErrNoStore — воркер создан без хранилища.
	ErrNoStore = errors.New("store is required")

	// ErrNoLogStore — воркер создан без журнала попыток.
	ErrNoLogStore = errors.New("log store is required")

	// ErrNoTransport — воркер создан без транспорта.
	ErrNoTransport = errors.New("transport is required")

	// ErrBadBatchSize — недопустимый размер батча.
	ErrBadBatchSize = errors.New("invalid batch size")
)
