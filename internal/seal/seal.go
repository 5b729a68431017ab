package seal

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// prefix помечает зашифрованные значения на диске.
const prefix = "sealed:"

// DefaultSensitiveHeaders — заголовки, значения которых шифруются по умолчанию.
func DefaultSensitiveHeaders() []string {
	return []string{"Authorization", "Proxy-Authorization", "Cookie", "Set-Cookie"}
}

// Sealer шифрует значения чувствительных заголовков перед записью в БД
// и расшифровывает при чтении. Остальные заголовки проходят без изменений.
//
// Пустой ключ выключает шифрование: SealHeaders и OpenHeaders
// становятся identity.
type Sealer struct {
	aead      cipher.AEAD
	sensitive map[string]struct{}
}

// New создаёт Sealer.
//
// hexKey — 64 hex-символа (32 байта) либо пустая строка (шифрование выключено).
// sensitive — список имён заголовков; nil — DefaultSensitiveHeaders.
func New(hexKey string, sensitive []string) (*Sealer, error) {
	if sensitive == nil {
		sensitive = DefaultSensitiveHeaders()
	}

	names := make(map[string]struct{}, len(sensitive))
	for _, name := range sensitive {
		names[http.CanonicalHeaderKey(name)] = struct{}{}
	}

	s := &Sealer{sensitive: names}
	if hexKey == "" {
		return s, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrBadKey, chacha20poly1305.KeySize, len(key))
	}

	// AEAD потокобезопасен, создаём один раз.
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	s.aead = aead

	return s, nil
}

// Enabled возвращает true, если шифрование включено.
func (s *Sealer) Enabled() bool {
	return s.aead != nil
}

// SealHeaders возвращает копию заголовков с зашифрованными
// значениями чувствительных ключей.
func (s *Sealer) SealHeaders(headers map[string]string) (map[string]string, error) {
	if !s.Enabled() || len(headers) == 0 {
		return headers, nil
	}

	out := make(map[string]string, len(headers))
	for key, val := range headers {
		if _, ok := s.sensitive[http.CanonicalHeaderKey(key)]; !ok {
			out[key] = val
			continue
		}
		sealed, err := s.sealValue(val)
		if err != nil {
			return nil, fmt.Errorf("seal header %q: %w", key, err)
		}
		out[key] = sealed
	}
	return out, nil
}

// OpenHeaders расшифровывает значения, помеченные префиксом sealed:.
func (s *Sealer) OpenHeaders(headers map[string]string) (map[string]string, error) {
	if len(headers) == 0 {
		return headers, nil
	}

	out := make(map[string]string, len(headers))
	for key, val := range headers {
		if !strings.HasPrefix(val, prefix) {
			out[key] = val
			continue
		}
		opened, err := s.openValue(val)
		if err != nil {
			return nil, fmt.Errorf("open header %q: %w", key, err)
		}
		out[key] = opened
	}
	return out, nil
}

func (s *Sealer) sealValue(plain string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) openValue(sealed string) (string, error) {
	if !s.Enabled() {
		return "", ErrSealedWithoutKey
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCiphertext, err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", ErrBadCiphertext
	}

	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCiphertext, err)
	}
	return string(plain), nil
}
