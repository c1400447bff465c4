package admin

import (
	"context"

	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/auth"
	"github.com/magabrotheeeer/abo-portal/internal/services/subscription"
)

// Requests описывает операции оператора над заявками.
type Requests interface {
	List(ctx context.Context, status models.Status) []models.Request
	Get(ctx context.Context, id string) (models.Request, error)
	Transition(ctx context.Context, id string, to models.Status, actor string) (models.Request, error)
	BulkApply(ctx context.Context, ids []string, p subscription.Patch, actor, label string) (subscription.BulkResult, error)
	VerifyProof(ctx context.Context, id, actor string) (models.Request, error)
	RejectProof(ctx context.Context, id, actor string) (models.Request, error)
	SetAccessLink(ctx context.Context, id, link, actor string) (models.Request, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, raw []byte) (int, error)
}

// Users описывает операции оператора над пользователями.
type Users interface {
	ListUsers(ctx context.Context) []models.User
	ExportUsers(ctx context.Context) ([]byte, error)
	AdminResetPassword(ctx context.Context, userID, newPassword string) error
	DeleteUser(ctx context.Context, sess auth.Session, userID string) error
}

// TokenMaker выпускает токен оператора.
type TokenMaker interface {
	GenerateToken(userID, email, role string) (string, error)
}
