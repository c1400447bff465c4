package models

import (
	"errors"
	"regexp"
	"strings"
)

// ErrValidation — общий признак ошибок валидации, проверяется через errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError содержит перечень нарушений. Операция, вернувшая её,
// ничего не записала.
type ValidationError struct {
	Messages []string
}

// NewValidationError создаёт ошибку валидации из сообщений.
func NewValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Messages: msgs}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsEmail — базовая проверка адреса: что-то@что-то.что-то.
func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeEmail приводит адрес к ключу поиска.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
