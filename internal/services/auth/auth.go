// Package auth содержит логику регистрации, входа и сессий пользователей портала.
//
// Учётные данные хранятся в демонстрационном формате пакета credential;
// при успешном входе устаревшие форматы молча переписываются в канонический.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/abo-portal/internal/lib/credential"
	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
	"github.com/magabrotheeeer/abo-portal/internal/metrics"
	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/storage/records"
)

// MinPasswordLen — минимальная длина пароля.
const MinPasswordLen = 6

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUnknownEmail       = errors.New("unknown email")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrNoCredentialOnFile = errors.New("no credential on file, contact the operator")
	ErrUserNotFound       = errors.New("user not found")
)

// Session — указатель на текущего пользователя, передаваемый в операции явно.
type Session interface {
	UserID(ctx context.Context) (string, bool)
	SetUserID(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Service отвечает за пользователей и сессии.
type Service struct {
	mu      sync.Mutex
	users   *records.Store[models.User]
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(users *records.Store[models.User], m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		users:   users,
		metrics: m,
		log:     log,
	}
}

// Register создаёт пользователя и сразу открывает для него сессию.
func (s *Service) Register(ctx context.Context, sess Session, email, password, displayName string) (models.User, error) {
	const op = "auth.Register"
	email = models.NormalizeEmail(email)

	var msgs []string
	if !models.IsEmail(email) {
		msgs = append(msgs, "invalid email")
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		msgs = append(msgs, fmt.Sprintf("password must be at least %d characters", MinPasswordLen))
	}
	if len(msgs) > 0 {
		return models.User{}, fmt.Errorf("%s: %w", op, models.NewValidationError(msgs...))
	}

	cred, err := credential.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user := models.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: name,
		Credential:  cred,
	}

	s.mu.Lock()
	list := s.users.Load(ctx)
	if indexByEmail(list, email) >= 0 {
		s.mu.Unlock()
		return models.User{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
	}
	list = append(list, user)
	err = s.users.Save(ctx, list)
	s.mu.Unlock()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("user_id", user.ID))
	if err := sess.SetUserID(ctx, user.ID); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// Login проверяет пароль и открывает сессию. Учётные данные в старом формате
// переписываются в канонический.
func (s *Service) Login(ctx context.Context, sess Session, email, password string) (models.User, error) {
	const op = "auth.Login"
	email = models.NormalizeEmail(email)

	s.mu.Lock()
	list := s.users.Load(ctx)
	idx := indexByEmail(list, email)
	if idx < 0 {
		s.mu.Unlock()
		s.metrics.Login("unknown_email")
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUnknownEmail)
	}

	c, format, err := credential.Parse(list[idx].Credential)
	if err != nil {
		s.mu.Unlock()
		s.metrics.Login("no_credential")
		s.log.Warn("stored credential is unusable", sl.Op(op), slog.String("user_id", list[idx].ID))
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNoCredentialOnFile)
	}
	if !c.Matches(password) {
		s.mu.Unlock()
		s.metrics.Login("invalid_password")
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidPassword)
	}

	if format != credential.FormatCanonical {
		list[idx].Credential = credential.Encode(credential.Credential{
			Digest: credential.Digest(password, c.Salt),
			Salt:   c.Salt,
		})
		if err := s.users.Save(ctx, list); err != nil {
			s.log.Warn("failed to migrate credential", sl.Op(op), sl.Err(err))
		} else {
			s.log.Info("credential migrated to canonical form", slog.String("user_id", list[idx].ID))
		}
	}
	user := list[idx]
	s.mu.Unlock()

	if err := sess.SetUserID(ctx, user.ID); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Login("ok")
	return user, nil
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, sess Session) error {
	const op = "auth.Logout"
	if err := sess.Clear(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CurrentUser возвращает пользователя сессии или nil, если сессии нет
// или пользователь удалён.
func (s *Service) CurrentUser(ctx context.Context, sess Session) *models.User {
	id, ok := sess.UserID(ctx)
	if !ok {
		return nil
	}
	list := s.users.Load(ctx)
	if idx := indexByID(list, id); idx >= 0 {
		return &list[idx]
	}
	return nil
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context) []models.User {
	return s.users.Load(ctx)
}

// ExportUsers сериализует список пользователей. Импорт пользователей не поддерживается.
func (s *Service) ExportUsers(ctx context.Context) ([]byte, error) {
	return s.users.Export(ctx)
}

// AdminResetPassword задаёт новый пароль без проверки старого (действие оператора).
func (s *Service) AdminResetPassword(ctx context.Context, userID, newPassword string) error {
	const op = "auth.AdminResetPassword"
	if utf8.RuneCountInString(newPassword) < MinPasswordLen {
		return fmt.Errorf("%s: %w", op, models.NewValidationError(
			fmt.Sprintf("password must be at least %d characters", MinPasswordLen)))
	}
	cred, err := credential.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.users.Load(ctx)
	idx := indexByID(list, userID)
	if idx < 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	list[idx].Credential = cred
	if err := s.users.Save(ctx, list); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password reset by operator", slog.String("user_id", userID))
	return nil
}

// UpdateDisplayName меняет отображаемое имя; пустое имя сбрасывается на часть email до @.
func (s *Service) UpdateDisplayName(ctx context.Context, userID, name string) (models.User, error) {
	const op = "auth.UpdateDisplayName"
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.users.Load(ctx)
	idx := indexByID(list, userID)
	if idx < 0 {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(list[idx].Email, "@")
	}
	list[idx].DisplayName = name
	if err := s.users.Save(ctx, list); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return list[idx], nil
}

// DeleteUser удаляет пользователя и закрывает сессию, если она указывала на него.
// Заявки пользователя не удаляются.
func (s *Service) DeleteUser(ctx context.Context, sess Session, userID string) error {
	const op = "auth.DeleteUser"
	s.mu.Lock()
	list := s.users.Load(ctx)
	idx := indexByID(list, userID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	list = append(list[:idx], list[idx+1:]...)
	err := s.users.Save(ctx, list)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if sess != nil {
		if cur, ok := sess.UserID(ctx); ok && cur == userID {
			if err := sess.Clear(ctx); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}
	s.log.Info("user deleted", slog.String("user_id", userID))
	return nil
}

func indexByEmail(list []models.User, email string) int {
	for i := range list {
		if models.NormalizeEmail(list[i].Email) == email {
			return i
		}
	}
	return -1
}

func indexByID(list []models.User, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
