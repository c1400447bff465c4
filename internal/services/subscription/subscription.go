// Package subscription содержит жизненный цикл заявок на подписку: создание,
// смену статуса по таблице переходов, массовые операции, подтверждение оплаты
// и ссылку доступа.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/abo-portal/internal/lib/month"
	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
	"github.com/magabrotheeeer/abo-portal/internal/lib/validate"
	"github.com/magabrotheeeer/abo-portal/internal/metrics"
	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/storage/records"
)

const guestActor = "guest"

var (
	ErrNotFound          = errors.New("request not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoRecordsSelected = errors.New("no records selected")
	ErrNoProof           = errors.New("no proof of payment on file")
	ErrUnknownPlan       = errors.New("unknown plan")
)

// Notifier кладёт сообщение во входящие получателя.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) (models.Message, error)
}

// CreateInput — данные формы заявки.
type CreateInput struct {
	PlanID    string               `json:"plan" validate:"required"`
	Cycle     models.Cycle         `json:"cycle" validate:"required,oneof=monthly yearly"`
	Payment   models.PaymentMethod `json:"payment" validate:"required,oneof=bank-transfer cash"`
	StartDate string               `json:"startDate,omitempty"`
	models.Requester
}

// Patch — изменения для массовой операции. nil-поля не трогаются.
type Patch struct {
	Status      *models.Status
	AccessLink  *string
	NextBilling *time.Time
}

// BulkResult — итог массовой операции.
type BulkResult struct {
	Updated []models.Request `json:"updated"`
	Missing []string         `json:"missing"`
}

// Service управляет заявками.
type Service struct {
	mu            sync.Mutex
	store         *records.Store[models.Request]
	catalog       Catalog
	notifier      Notifier
	validate      *validator.Validate
	operatorEmail string
	metrics       *metrics.Metrics
	log           *slog.Logger
}

// NewService создает новый экземпляр Service. notifier может быть nil.
func NewService(
	store *records.Store[models.Request],
	catalog Catalog,
	notifier Notifier,
	operatorEmail string,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		store:         store,
		catalog:       catalog,
		notifier:      notifier,
		validate:      validate.New(),
		operatorEmail: operatorEmail,
		metrics:       m,
		log:           log,
	}
}

// Create сохраняет новую заявку. Для тарифов «скоро» создаётся предварительная запись.
// owner может быть nil (гость).
func (s *Service) Create(ctx context.Context, owner *models.User, in CreateInput) (models.Request, error) {
	const op = "subscription.Create"
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.StartDate = strings.TrimSpace(in.StartDate)

	if err := validate.Struct(s.validate, in); err != nil {
		return models.Request{}, fmt.Errorf("%s: %w", op, err)
	}
	plan, ok := s.catalog.Plan(in.PlanID)
	if !ok {
		return models.Request{}, fmt.Errorf("%s: %w: %w", op, ErrUnknownPlan,
			models.NewValidationError("unknown plan: "+in.PlanID))
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if in.StartDate != "" {
		parsed, err := month.ParseStart(in.StartDate)
		if err != nil {
			return models.Request{}, fmt.Errorf("%s: %w", op,
				models.NewValidationError("field StartDate must be a date in format 2006-01-02"))
		}
		start = parsed.UTC()
	}

	status := models.StatusPendingReview
	if plan.ComingSoon {
		status = models.StatusPreRegistration
	}
	r := models.Request{
		ID:          uuid.NewString(),
		PlanID:      plan.ID,
		Cycle:       in.Cycle,
		Price:       plan.PriceFor(in.Cycle),
		Status:      status,
		CreatedAt:   now,
		Requester:   in.Requester,
		Payment:     in.Payment,
		StartDate:   start,
		NextBilling: month.NextBilling(start, in.Cycle == models.CycleYearly),
	}
	actor := guestActor
	if owner != nil {
		id := owner.ID
		r.UserID = &id
		actor = owner.Email
	}
	r.Append(now, actor, "created")

	s.mu.Lock()
	list := s.store.Load(ctx)
	list = append(list, r)
	err := s.store.Save(ctx, list)
	s.mu.Unlock()
	if err != nil {
		return models.Request{}, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.RequestCreated(r.Status)
	s.log.Info("request created",
		slog.String("id", r.ID),
		slog.String("plan", r.PlanID),
		slog.String("status", string(r.Status)),
	)

	subject, body := inquiry(plan, r)
	s.notify(ctx, op, s.operatorEmail, subject, body)
	return r, nil
}

// Transition переводит заявку в новый статус по таблице переходов.
func (s *Service) Transition(ctx context.Context, id string, to models.Status, actor string) (models.Request, error) {
	return s.transition(ctx, "subscription.Transition", id, to, actor)
}

// Withdraw отзывает заявку, пока она не активирована.
func (s *Service) Withdraw(ctx context.Context, id, actor string) (models.Request, error) {
	return s.transition(ctx, "subscription.Withdraw", id, models.StatusWithdrawn, actor)
}

func (s *Service) transition(ctx context.Context, op, id string, to models.Status, actor string) (models.Request, error) {
	if !to.Valid() {
		return models.Request{}, fmt.Errorf("%s: %w", op, models.NewValidationError("unknown status: "+string(to)))
	}
	var from models.Status
	r, err := s.mutate(ctx, op, id, func(r *models.Request, now time.Time) error {
		from = r.Status
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		r.Status = to
		r.Append(now, actor, fmt.Sprintf("status %s -> %s", from, to))
		return nil
	})
	if err != nil {
		return models.Request{}, err
	}

	s.metrics.Transition(from, to)
	s.log.Info("status changed",
		slog.String("id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor", actor),
	)
	s.announce(ctx, op, r, from)
	return r, nil
}

// BulkApply применяет patch к набору заявок. Отсутствующие id пропускаются
// и возвращаются в Missing. Если хотя бы одна найденная заявка не может
// принять новый статус, не записывается ничего.
func (s *Service) BulkApply(ctx context.Context, ids []string, p Patch, actor, label string) (BulkResult, error) {
	const op = "subscription.BulkApply"
	if len(ids) == 0 {
		return BulkResult{}, fmt.Errorf("%s: %w", op, ErrNoRecordsSelected)
	}
	if p.Status != nil && !p.Status.Valid() {
		return BulkResult{}, fmt.Errorf("%s: %w", op, models.NewValidationError("unknown status: "+string(*p.Status)))
	}
	if label == "" {
		label = "bulk update"
	}

	s.mu.Lock()
	list := s.store.Load(ctx)
	pos := make(map[string]int, len(list))
	for i := range list {
		pos[list[i].ID] = i
	}

	res := BulkResult{Missing: []string{}}
	var targets []int
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		i, ok := pos[id]
		if !ok {
			res.Missing = append(res.Missing, id)
			continue
		}
		targets = append(targets, i)
	}

	if p.Status != nil {
		for _, i := range targets {
			if !CanTransition(list[i].Status, *p.Status) {
				s.mu.Unlock()
				return BulkResult{}, fmt.Errorf("%s: %w: %s is %s, cannot become %s",
					op, ErrInvalidTransition, list[i].ID, list[i].Status, *p.Status)
			}
		}
	}

	now := time.Now().UTC()
	from := make([]models.Status, len(targets))
	for n, i := range targets {
		from[n] = list[i].Status
		if p.Status != nil {
			list[i].Status = *p.Status
		}
		if p.AccessLink != nil {
			list[i].AccessLink = normalizeLink(*p.AccessLink)
		}
		if p.NextBilling != nil {
			list[i].NextBilling = p.NextBilling.UTC()
		}
		list[i].Append(now, actor, label)
	}

	if len(targets) > 0 {
		if err := s.store.Save(ctx, list); err != nil {
			s.mu.Unlock()
			return BulkResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	res.Updated = make([]models.Request, 0, len(targets))
	for _, i := range targets {
		res.Updated = append(res.Updated, list[i])
	}
	s.mu.Unlock()

	if len(res.Missing) > 0 {
		s.log.Warn("bulk update skipped missing records", slog.Any("missing", res.Missing))
	}
	s.log.Info("bulk update applied", slog.Int("updated", len(res.Updated)), slog.String("label", label))
	if p.Status != nil {
		for n, r := range res.Updated {
			s.metrics.Transition(from[n], r.Status)
			s.announce(ctx, op, r, from[n])
		}
	}
	return res, nil
}

// UploadProof сохраняет подтверждение оплаты (непроверенное). Статус не меняется.
func (s *Service) UploadProof(ctx context.Context, id, payload, mimetype, actor string) (models.Request, error) {
	const op = "subscription.UploadProof"
	if strings.TrimSpace(payload) == "" {
		return models.Request{}, fmt.Errorf("%s: %w", op, models.NewValidationError("proof payload is empty"))
	}
	return s.mutate(ctx, op, id, func(r *models.Request, now time.Time) error {
		if r.Status.Terminal() {
			return fmt.Errorf("%w: request is %s", ErrInvalidTransition, r.Status)
		}
		r.Proof = &models.Proof{Payload: payload, Mimetype: mimetype}
		r.Append(now, actor, "proof uploaded")
		return nil
	})
}

// VerifyProof отмечает подтверждение оплаты проверенным.
func (s *Service) VerifyProof(ctx context.Context, id, actor string) (models.Request, error) {
	const op = "subscription.VerifyProof"
	r, err := s.mutate(ctx, op, id, func(r *models.Request, now time.Time) error {
		if r.Proof == nil {
			return ErrNoProof
		}
		r.Proof.Verified = true
		r.Append(now, actor, "proof verified")
		return nil
	})
	if err != nil {
		return models.Request{}, err
	}
	if r.Status == models.StatusActive {
		name := planName(s.catalog, r.PlanID)
		s.notify(ctx, op, r.Email, "Zugang freigeschaltet: "+name,
			fmt.Sprintf("Hallo %s,\n\ndein Nachweis wurde geprüft. Die Zugangsdaten findest du in deinem Konto.", r.Name))
	}
	return r, nil
}

// RejectProof удаляет подтверждение оплаты, чтобы клиент загрузил новое.
func (s *Service) RejectProof(ctx context.Context, id, actor string) (models.Request, error) {
	const op = "subscription.RejectProof"
	r, err := s.mutate(ctx, op, id, func(r *models.Request, now time.Time) error {
		if r.Proof == nil {
			return ErrNoProof
		}
		r.Proof = nil
		r.Append(now, actor, "proof rejected")
		return nil
	})
	if err != nil {
		return models.Request{}, err
	}
	name := planName(s.catalog, r.PlanID)
	s.notify(ctx, op, r.Email, "Nachweis abgelehnt: "+name,
		fmt.Sprintf("Hallo %s,\n\ndein Nachweis konnte nicht bestätigt werden. Bitte lade einen neuen hoch.", r.Name))
	return r, nil
}

// SetAccessLink задаёт или (пустой строкой) убирает ссылку доступа.
func (s *Service) SetAccessLink(ctx context.Context, id, link, actor string) (models.Request, error) {
	const op = "subscription.SetAccessLink"
	return s.mutate(ctx, op, id, func(r *models.Request, now time.Time) error {
		r.AccessLink = normalizeLink(link)
		action := "access link updated"
		if r.AccessLink == nil {
			action = "access link cleared"
		}
		r.Append(now, actor, action)
		return nil
	})
}

// Delete удаляет заявку без следа (действие оператора).
func (s *Service) Delete(ctx context.Context, id string) error {
	const op = "subscription.Delete"
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.store.Load(ctx)
	idx := indexByID(list, id)
	if idx < 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	list = append(list[:idx], list[idx+1:]...)
	if err := s.store.Save(ctx, list); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("request deleted", slog.String("id", id))
	return nil
}

// Get возвращает заявку по id.
func (s *Service) Get(ctx context.Context, id string) (models.Request, error) {
	const op = "subscription.Get"
	list := s.store.Load(ctx)
	if idx := indexByID(list, id); idx >= 0 {
		return list[idx], nil
	}
	return models.Request{}, fmt.Errorf("%s: %w", op, ErrNotFound)
}

// List возвращает заявки, при непустом status только с этим статусом.
func (s *Service) List(ctx context.Context, status models.Status) []models.Request {
	list := s.store.Load(ctx)
	if status == "" {
		return list
	}
	out := make([]models.Request, 0, len(list))
	for _, r := range list {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// ListForUser возвращает заявки пользователя: по ссылке на него или по email.
func (s *Service) ListForUser(ctx context.Context, u *models.User) []models.Request {
	out := make([]models.Request, 0)
	if u == nil {
		return out
	}
	for _, r := range s.store.Load(ctx) {
		if r.OwnedBy(u) {
			out = append(out, r)
		}
	}
	return out
}

// Export сериализует все заявки.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	return s.store.Export(ctx)
}

// Import заменяет все заявки содержимым raw. При любой ошибке валидации
// текущие данные не меняются.
func (s *Service) Import(ctx context.Context, raw []byte) (int, error) {
	const op = "subscription.Import"
	list, err := records.ValidateRequests(raw)
	if err != nil {
		s.metrics.Import(false)
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if list == nil {
		list = []models.Request{}
	}

	s.mu.Lock()
	err = s.store.Save(ctx, list)
	s.mu.Unlock()
	if err != nil {
		s.metrics.Import(false)
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Import(true)
	s.log.Info("requests imported", slog.Int("count", len(list)))
	return len(list), nil
}

// Plans возвращает каталог тарифов.
func (s *Service) Plans() []models.Plan {
	return s.catalog.Plans()
}

// mutate выполняет read-modify-write одной заявки под мьютексом.
// Если fn вернула ошибку, ничего не записывается.
func (s *Service) mutate(ctx context.Context, op, id string, fn func(r *models.Request, now time.Time) error) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.store.Load(ctx)
	idx := indexByID(list, id)
	if idx < 0 {
		return models.Request{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err := fn(&list[idx], time.Now().UTC()); err != nil {
		return models.Request{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Save(ctx, list); err != nil {
		return models.Request{}, fmt.Errorf("%s: %w", op, err)
	}
	return list[idx], nil
}

// announce пишет клиенту о смене статуса.
func (s *Service) announce(ctx context.Context, op string, r models.Request, from models.Status) {
	subject, body, ok := statusNotice(planName(s.catalog, r.PlanID), r, from)
	if !ok {
		return
	}
	s.notify(ctx, op, r.Email, subject, body)
}

func (s *Service) notify(ctx context.Context, op, to, subject, body string) {
	if s.notifier == nil || strings.TrimSpace(to) == "" {
		return
	}
	if _, err := s.notifier.Send(ctx, to, subject, body); err != nil {
		s.log.Warn("failed to send notification", sl.Op(op), slog.String("to", to), sl.Err(err))
	}
}

func normalizeLink(link string) *string {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil
	}
	return &link
}

func indexByID(list []models.Request, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
