package inbox

import (
	"context"

	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/auth"
)

// Service описывает операции с входящими сообщениями.
type Service interface {
	InboxFor(ctx context.Context, email string) []models.Message
	UnreadCount(ctx context.Context, email string) int
	MarkAllRead(ctx context.Context, email string) (int, error)
}

// Users восстанавливает пользователя из сессии.
type Users interface {
	CurrentUser(ctx context.Context, sess auth.Session) *models.User
}
