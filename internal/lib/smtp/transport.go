package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/abo-portal/internal/config"
	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
)

const (
	implicitTLSPort = "465"
	dialTimeout     = 10 * time.Second
	fallbackSender  = "portal@localhost"
)

// Transport подключается к SMTP-серверу из конфигурации уведомлений.
type Transport struct {
	cfg config.Notification
	log *slog.Logger
}

// NewTransport создает новый экземпляр Transport.
func NewTransport(cfg config.Notification, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// Dial открывает соединение, включает TLS и проходит PLAIN-авторизацию,
// если задан smtp_user. Без TLS авторизация не выполняется.
func (t *Transport) Dial(ctx context.Context) (Client, error) {
	const op = "smtp.Dial"
	log := t.log.With(sl.Op(op), slog.String("host", t.cfg.SMTPHost))
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)
	tlsConfig := &tls.Config{
		ServerName: t.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Error("failed to dial SMTP server", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if t.cfg.SMTPPort == implicitTLSPort {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		log.Error("failed to create SMTP client", sl.Err(err))
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if t.cfg.SMTPPort != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return nil, t.abort(log, client, fmt.Errorf("%s: starttls: %w", op, err))
			}
		} else if t.cfg.SMTPUser != "" {
			return nil, t.abort(log, client, fmt.Errorf("%s: server does not support STARTTLS", op))
		}
	}

	if t.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return nil, t.abort(log, client, fmt.Errorf("%s: auth: %w", op, err))
		}
	}
	return client, nil
}

// Sender возвращает адрес отправителя: smtp_user либо адрес по умолчанию.
func (t *Transport) Sender() string {
	if t.cfg.SMTPUser != "" {
		return t.cfg.SMTPUser
	}
	return fallbackSender
}

func (t *Transport) abort(log *slog.Logger, client *smtp.Client, err error) error {
	log.Error("smtp handshake failed", sl.Err(err))
	if closeErr := client.Close(); closeErr != nil {
		log.Warn("failed to close client", sl.Err(closeErr))
	}
	return err
}
