package config

import "errors"

// ErrInvalidConfig — конфигурация содержит невозможное значение.
// Обнаруживается при старте и фатальна.
var ErrInvalidConfig = errors.New("invalid configuration")
