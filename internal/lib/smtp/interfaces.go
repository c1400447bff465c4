// Package smtp отправляет уведомления портала обычными письмами через SMTP.
// Порт 465 использует неявный TLS, остальные порты STARTTLS.
package smtp

import (
	"context"
	"io"
)

// Client — часть *smtp.Client, которая нужна для отправки одного письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает авторизованную SMTP-сессию и знает адрес отправителя.
type Dialer interface {
	Dial(ctx context.Context) (Client, error)
	Sender() string
}
