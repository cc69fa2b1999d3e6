// Package crypto derives the relay token signing key from the configured secret.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// Argon2KeyLen - длина выходного ключа в байтах
	Argon2KeyLen = 32
	// SaltSize - минимальный размер соли в байтах
	SaltSize = 16
)

// signingContext отделяет ключ подписи от других ключей, выведенных из того же секрета
const signingContext = "scenesync/token-signing"

var (
	// ErrEmptySecret is returned for an empty secret.
	ErrEmptySecret = errors.New("secret cannot be empty")
	// ErrShortSalt is returned for a salt shorter than SaltSize.
	ErrShortSalt = errors.New("salt is too short")
)

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateSaltBase64 генерирует соль и возвращает ее в Base64
func GenerateSaltBase64() (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// DeriveSigningKey derives the HMAC key of relay tokens from secret with
// Argon2id. The same secret and salt always give the same key, so every relay
// instance configured alike accepts the tokens of the others.
func DeriveSigningKey(secret string, salt []byte) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if len(salt) < SaltSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrShortSalt, len(salt), SaltSize)
	}

	input := append([]byte(secret), signingContext...)
	return argon2.IDKey(input, salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen), nil
}
