package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
)

// Composer отправляет каждое уведомление отдельным письмом.
type Composer struct {
	dialer Dialer
	log    *slog.Logger
	now    func() time.Time
}

// NewComposer создаёт Composer поверх dialer.
func NewComposer(dialer Dialer, log *slog.Logger) *Composer {
	return &Composer{dialer: dialer, log: log, now: time.Now}
}

// Compose отправляет письмо to с темой subject. Доставка не подтверждается.
func (c *Composer) Compose(ctx context.Context, to, subject, body string) error {
	const op = "smtp.Compose"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Composer) send(ctx context.Context, to, subject, body string) error {
	from := c.dialer.Sender()
	msg := buildMessage(from, to, subject, body, c.now())

	client, err := c.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		c.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}
	if err := client.Rcpt(to); err != nil {
		c.log.Error("failed to set RCPT TO", slog.String("recipient", to), sl.Err(err))
		return err
	}

	wc, err := client.Data()
	if err != nil {
		c.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		c.log.Error("failed to write email body", sl.Err(err))
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		c.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}
	if err := client.Quit(); err != nil {
		c.log.Warn("failed to quit SMTP session", sl.Err(err))
	}

	c.log.Info("email sent", slog.String("to", to))
	return nil
}

// buildMessage собирает письмо text/plain в UTF-8. Тема кодируется по RFC 2047,
// переводы строк тела приводятся к CRLF.
func buildMessage(from, to, subject, body string, at time.Time) []byte {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + at.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"Content-Transfer-Encoding: 8bit",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body)
}
