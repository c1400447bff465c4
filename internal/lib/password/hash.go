// Package password хэширует PIN оператора портала через bcrypt.
//
// Пароли пользователей портала хранятся в формате пакета credential;
// bcrypt используется только для учётной записи оператора.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch возвращается, если PIN не соответствует хэшу.
var ErrMismatch = errors.New("pin does not match")

// GetHash принимает PIN и возвращает его bcrypt‑хэш для конфигурации оператора.
func GetHash(pin string) (string, error) {
	const op = "password.GetHash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым PIN.
//
// Возвращает nil при совпадении, ErrMismatch при неверном PIN
// и обёрнутую ошибку bcrypt, если хэш повреждён.
func CompareHash(originalHash, pin string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(pin))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
