package account

import (
	"context"

	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/auth"
)

// Service описывает операции с учётной записью.
type Service interface {
	Register(ctx context.Context, sess auth.Session, email, password, displayName string) (models.User, error)
	Login(ctx context.Context, sess auth.Session, email, password string) (models.User, error)
	Logout(ctx context.Context, sess auth.Session) error
	CurrentUser(ctx context.Context, sess auth.Session) *models.User
	UpdateDisplayName(ctx context.Context, userID, name string) (models.User, error)
}

// TokenMaker выпускает токен сессии.
type TokenMaker interface {
	GenerateToken(userID, email, role string) (string, error)
}

// Inbox отдаёт счётчик непрочитанных.
type Inbox interface {
	UnreadCount(ctx context.Context, email string) int
}
