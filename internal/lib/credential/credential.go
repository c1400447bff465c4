// Package credential реализует демонстрационное хранение паролей пользователей портала.
//
// ВНИМАНИЕ: это не криптографический хэш. Digest — быстрая 32-битная функция
// перемешивания, оставленная ради совместимости с уже сохранёнными учётными записями.
// Для реальных систем используйте bcrypt/argon2 (см. пакет password).
//
// Поддерживаются три исторических формата хранения:
//   - голый digest:              "1a2b3c4d"
//   - пара "digest:salt":        "1a2b3c4d:k3j9x0ab"
//   - base64("digest:salt"):     каноническая форма
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Format определяет, в каком виде учётные данные лежат в хранилище.
type Format int

const (
	// FormatCanonical — base64("digest:salt").
	FormatCanonical Format = iota
	// FormatPair — открытая пара "digest:salt".
	FormatPair
	// FormatBare — только digest, соль пустая.
	FormatBare
)

const (
	saltLen      = 8
	saltAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// ErrUndecodable возвращается для пустых или нераспознаваемых учётных данных.
var ErrUndecodable = errors.New("credential: empty or undecodable")

// Credential — разобранные учётные данные.
type Credential struct {
	Digest string
	Salt   string
}

// Digest вычисляет 32-битный digest строки salt + ":" + password
// по UTF-16 кодовым единицам и возвращает его как 8 hex-символов.
func Digest(password, salt string) string {
	var h int32
	for _, u := range utf16.Encode([]rune(salt + ":" + password)) {
		h = 31*h + int32(u)
	}
	return fmt.Sprintf("%08x", uint32(h))
}

// NewSalt генерирует случайную соль из 8 символов base36.
func NewSalt() (string, error) {
	const op = "credential.NewSalt"
	buf := make([]byte, saltLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	for i, b := range buf {
		buf[i] = saltAlphabet[int(b)%len(saltAlphabet)]
	}
	return string(buf), nil
}

// Hash создаёт учётные данные для пароля со свежей солью в канонической форме.
func Hash(password string) (string, error) {
	salt, err := NewSalt()
	if err != nil {
		return "", err
	}
	return Encode(Credential{Digest: Digest(password, salt), Salt: salt}), nil
}

// Encode сериализует учётные данные в каноническую форму.
func Encode(c Credential) string {
	return base64.StdEncoding.EncodeToString([]byte(c.Digest + ":" + c.Salt))
}

// Parse распознаёт любой из трёх форматов хранения.
func Parse(stored string) (Credential, Format, error) {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return Credential{}, 0, ErrUndecodable
	}

	if raw, err := base64.StdEncoding.DecodeString(stored); err == nil {
		if d, s, ok := strings.Cut(string(raw), ":"); ok && isDigest(d) {
			return Credential{Digest: d, Salt: s}, FormatCanonical, nil
		}
	}

	if d, s, ok := strings.Cut(stored, ":"); ok {
		if !isDigest(d) {
			return Credential{}, 0, ErrUndecodable
		}
		return Credential{Digest: d, Salt: s}, FormatPair, nil
	}

	if isDigest(stored) {
		return Credential{Digest: stored}, FormatBare, nil
	}
	return Credential{}, 0, ErrUndecodable
}

// Matches сообщает, соответствует ли пароль учётным данным.
// Digest сравнивается численно: старые записи хранились без ведущих нулей.
func (c Credential) Matches(password string) bool {
	stored, err := strconv.ParseUint(c.Digest, 16, 32)
	if err != nil {
		return false
	}
	computed, err := strconv.ParseUint(Digest(password, c.Salt), 16, 32)
	if err != nil {
		return false
	}
	return stored == computed
}

func isDigest(s string) bool {
	if s == "" || len(s) > 8 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
