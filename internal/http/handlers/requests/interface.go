package requests

import (
	"context"

	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/auth"
	"github.com/magabrotheeeer/abo-portal/internal/services/subscription"
)

// Service описывает операции клиента с заявками.
type Service interface {
	Create(ctx context.Context, owner *models.User, in subscription.CreateInput) (models.Request, error)
	Get(ctx context.Context, id string) (models.Request, error)
	ListForUser(ctx context.Context, u *models.User) []models.Request
	Withdraw(ctx context.Context, id, actor string) (models.Request, error)
	UploadProof(ctx context.Context, id, payload, mimetype, actor string) (models.Request, error)
	Plans() []models.Plan
}

// Users резолвит пользователя сессии.
type Users interface {
	CurrentUser(ctx context.Context, sess auth.Session) *models.User
}
