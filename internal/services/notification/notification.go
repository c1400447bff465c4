// Package notification реализует входящие сообщения получателей портала:
// отправку, выборку, счётчик непрочитанных и отметку прочитанными.
// Сообщения пользователям не равны записям журнала заявки: журнал — для оператора,
// входящие — для клиента.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
	"github.com/magabrotheeeer/abo-portal/internal/metrics"
	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/storage/records"
)

// Composer передаёт подготовленное сообщение внешнему транспорту (почта, очередь).
// Подтверждение доставки не ожидается.
type Composer interface {
	Compose(ctx context.Context, to, subject, body string) error
}

// Service управляет списком сообщений.
type Service struct {
	mu       sync.Mutex
	store    *records.Store[models.Message]
	composer Composer
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewService создаёт сервис уведомлений. composer может быть nil.
func NewService(store *records.Store[models.Message], composer Composer, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		composer: composer,
		metrics:  m,
		log:      log,
	}
}

// Send добавляет сообщение во входящие получателя и передаёт его composer.
// Ошибка composer только логируется.
func (s *Service) Send(ctx context.Context, to, subject, body string) (models.Message, error) {
	const op = "notification.Send"
	if !models.IsEmail(to) {
		return models.Message{}, fmt.Errorf("%s: %w", op, models.NewValidationError("invalid recipient email"))
	}
	msg := models.Message{
		ID:             uuid.NewString(),
		RecipientEmail: models.NormalizeEmail(to),
		Subject:        subject,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}

	s.mu.Lock()
	list := s.store.Load(ctx)
	list = append(list, msg)
	err := s.store.Save(ctx, list)
	s.mu.Unlock()
	if err != nil {
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.NotificationSent()
	s.log.Info("message queued", slog.String("to", msg.RecipientEmail), slog.String("subject", subject))

	if s.composer != nil {
		if err := s.composer.Compose(ctx, msg.RecipientEmail, subject, body); err != nil {
			s.log.Warn("failed to compose outbound notification", sl.Op(op), sl.Err(err))
		}
	}
	return msg, nil
}

// InboxFor возвращает сообщения получателя, новые первыми.
func (s *Service) InboxFor(ctx context.Context, email string) []models.Message {
	key := models.NormalizeEmail(email)
	list := s.store.Load(ctx)
	out := make([]models.Message, 0)
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].RecipientEmail == key {
			out = append(out, list[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// UnreadCount возвращает число непрочитанных сообщений получателя.
func (s *Service) UnreadCount(ctx context.Context, email string) int {
	key := models.NormalizeEmail(email)
	n := 0
	for _, m := range s.store.Load(ctx) {
		if m.RecipientEmail == key && !m.Read {
			n++
		}
	}
	return n
}

// MarkAllRead отмечает все непрочитанные сообщения получателя прочитанными
// и возвращает их количество. Повторный вызов ничего не меняет.
func (s *Service) MarkAllRead(ctx context.Context, email string) (int, error) {
	const op = "notification.MarkAllRead"
	key := models.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.store.Load(ctx)
	changed := 0
	for i := range list {
		if list[i].RecipientEmail == key && !list[i].Read {
			list[i].Read = true
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.store.Save(ctx, list); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return changed, nil
}
