// Package validate настраивает валидатор структур портала и переводит
// ошибки валидации в человеко-читаемые сообщения.
package validate

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/abo-portal/internal/models"
)

// New возвращает валидатор с зарегистрированным тегом mailbox
// (тот же шаблон email, что и в остальной системе).
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return models.IsEmail(fl.Field().String())
	})
	return v
}

// Messages переводит ошибки валидатора в сообщения.
func Messages(errs validator.ValidationErrors) []string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "mailbox":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s characters", err.Field(), err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return msgs
}

// Struct проверяет структуру и возвращает *models.ValidationError при нарушениях.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return models.NewValidationError(Messages(verrs)...)
	}
	return err
}
