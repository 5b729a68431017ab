package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Значения по умолчанию.
const (
	DefaultBatchSize             = 100
	DefaultMicroSecondsToWait    = 2_000_000
	DefaultTimeoutInSeconds      = 5
	DefaultMaxRetries            = 10
	DefaultRetryBaseDelaySeconds = 5
	DefaultRetryMaxDelaySeconds  = 3600
	DefaultPauseDelaySeconds     = 60
)

// Config — конфигурация воркера Courier.
//
// Заполняется из переменных окружения COURIER_* с разумными
// значениями по умолчанию и валидируется при старте: невозможные
// комбинации фатальны.
type Config struct {
	// Enabled — если false, воркеры не стартуют.
	Enabled bool

	// BatchSize — количество строк, захватываемых за цикл.
	BatchSize int

	// MicroSecondsToWait — минимальный период цикла в микросекундах.
	MicroSecondsToWait int

	// TimeoutInSeconds — таймаут HTTP-транспорта.
	TimeoutInSeconds int

	// MaximumNumberOfRetries — лимит retry до перехода в failed.
	MaximumNumberOfRetries int

	// KeepAlive — передаётся транспорту.
	KeepAlive bool

	// UseDBReconnect — проверять соединение с БД каждый тик.
	UseDBReconnect bool

	// RetryBaseDelaySeconds — базовая задержка экспоненциального backoff.
	RetryBaseDelaySeconds int

	// RetryMaxDelaySeconds — потолок backoff.
	RetryMaxDelaySeconds int

	// PauseDelaySeconds — короткая задержка при неожиданной ошибке
	// процессора (строка ставится на паузу, а не в failed).
	PauseDelaySeconds int

	// SealKey — hex-ключ шифрования заголовков (пусто — выключено).
	SealKey string
}

// FromEnv читает конфигурацию из окружения.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Enabled:                envBool("COURIER_ENABLED", true),
		BatchSize:              envInt("COURIER_BATCH_SIZE", DefaultBatchSize),
		MicroSecondsToWait:     envInt("COURIER_MICRO_SECONDS_TO_WAIT", DefaultMicroSecondsToWait),
		TimeoutInSeconds:       envInt("COURIER_TIMEOUT_IN_SECONDS", DefaultTimeoutInSeconds),
		MaximumNumberOfRetries: envInt("COURIER_MAXIMUM_NUMBER_OF_RETRIES", DefaultMaxRetries),
		KeepAlive:              envBool("COURIER_KEEP_ALIVE", true),
		UseDBReconnect:         envBool("COURIER_USE_DB_RECONNECT", true),
		RetryBaseDelaySeconds:  envInt("COURIER_RETRY_BASE_DELAY_SECONDS", DefaultRetryBaseDelaySeconds),
		RetryMaxDelaySeconds:   envInt("COURIER_RETRY_MAX_DELAY_SECONDS", DefaultRetryMaxDelaySeconds),
		PauseDelaySeconds:      envInt("COURIER_PAUSE_DELAY_SECONDS", DefaultPauseDelaySeconds),
		SealKey:                os.Getenv("COURIER_SEAL_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет невозможные комбинации.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MicroSecondsToWait <= 0 {
		return fmt.Errorf("%w: micro seconds to wait %d", ErrInvalidConfig, c.MicroSecondsToWait)
	}
	if c.TimeoutInSeconds <= 0 {
		return fmt.Errorf("%w: timeout %d", ErrInvalidConfig, c.TimeoutInSeconds)
	}
	if c.MaximumNumberOfRetries <= 0 {
		return fmt.Errorf("%w: maximum number of retries %d", ErrInvalidConfig, c.MaximumNumberOfRetries)
	}
	if c.RetryBaseDelaySeconds <= 0 {
		return fmt.Errorf("%w: retry base delay %d", ErrInvalidConfig, c.RetryBaseDelaySeconds)
	}
	if c.RetryMaxDelaySeconds < c.RetryBaseDelaySeconds {
		return fmt.Errorf("%w: retry max delay %d below base delay %d",
			ErrInvalidConfig, c.RetryMaxDelaySeconds, c.RetryBaseDelaySeconds)
	}
	if c.PauseDelaySeconds <= 0 {
		return fmt.Errorf("%w: pause delay %d", ErrInvalidConfig, c.PauseDelaySeconds)
	}
	return nil
}

// TickInterval возвращает период цикла как Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.MicroSecondsToWait) * time.Microsecond
}

// Timeout возвращает таймаут транспорта как Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutInSeconds) * time.Second
}

// RetryBaseDelay возвращает базовую задержку backoff как Duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySeconds) * time.Second
}

// RetryMaxDelay возвращает потолок backoff как Duration.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelaySeconds) * time.Second
}

// PauseDelay возвращает задержку паузы как Duration.
func (c *Config) PauseDelay() time.Duration {
	return time.Duration(c.PauseDelaySeconds) * time.Second
}

func envInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}
