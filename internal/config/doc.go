// Package config читает конфигурацию воркера из окружения.
//
// Распознаваемые переменные:
//
//	COURIER_ENABLED                    если false — воркеры не стартуют (true)
//	COURIER_BATCH_SIZE                 строк за цикл (100)
//	COURIER_MICRO_SECONDS_TO_WAIT      минимальный период цикла (2_000_000)
//	COURIER_TIMEOUT_IN_SECONDS         таймаут HTTP-транспорта (5)
//	COURIER_MAXIMUM_NUMBER_OF_RETRIES  лимит retry до failed (10)
//	COURIER_KEEP_ALIVE                 keep-alive транспорта (true)
//	COURIER_USE_DB_RECONNECT           ping БД каждый тик (true)
//	COURIER_RETRY_BASE_DELAY_SECONDS   база экспоненциального backoff (5)
//	COURIER_RETRY_MAX_DELAY_SECONDS    потолок backoff (3600)
//	COURIER_PAUSE_DELAY_SECONDS        пауза при ошибке процессора (60)
//	COURIER_SEAL_KEY                   hex-ключ шифрования заголовков (выкл.)
//
// Невозможные значения (нулевой батч, отрицательный таймаут)
// отлавливаются Validate() и фатальны при старте.
package config
