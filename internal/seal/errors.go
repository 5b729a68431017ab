package seal

import "errors"

// Ошибки шифрования заголовков.
var (
	// ErrBadKey — ключ не является 32-байтовой hex-строкой.
	ErrBadKey = errors.New("bad seal key")

	// ErrBadCiphertext — значение повреждено или зашифровано другим ключом.
	ErrBadCiphertext = errors.New("bad ciphertext")

	// ErrSealedWithoutKey — в БД встречено зашифрованное значение,
	// но ключ не сконфигурирован.
	ErrSealedWithoutKey = errors.New("sealed value but no key configured")
)
