// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков и перевода ошибок сервисов
// в HTTP-статусы.
package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/abo-portal/internal/lib/validate"
	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/auth"
	"github.com/magabrotheeeer/abo-portal/internal/services/subscription"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	return Error(strings.Join(validate.Messages(errs), ", "))
}

// known — ошибки, текст которых можно отдавать клиенту как есть.
var known = []struct {
	err    error
	status int
}{
	{auth.ErrDuplicateEmail, http.StatusConflict},
	{auth.ErrUnknownEmail, http.StatusUnauthorized},
	{auth.ErrInvalidPassword, http.StatusUnauthorized},
	{auth.ErrNoCredentialOnFile, http.StatusUnauthorized},
	{auth.ErrUserNotFound, http.StatusNotFound},
	{subscription.ErrNotFound, http.StatusNotFound},
	{subscription.ErrInvalidTransition, http.StatusConflict},
	{subscription.ErrNoRecordsSelected, http.StatusBadRequest},
	{subscription.ErrNoProof, http.StatusConflict},
}

// FromError переводит ошибку сервиса в HTTP-статус и ответ.
// Неизвестные ошибки скрываются за "internal error".
func FromError(err error) (int, Response) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity, Error(strings.Join(verr.Messages, ", "))
	}
	for _, k := range known {
		if errors.Is(err, k.err) {
			return k.status, Error(k.err.Error())
		}
	}
	return http.StatusInternalServerError, Error("internal error")
}
