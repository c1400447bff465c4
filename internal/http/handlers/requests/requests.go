// Package requests реализует HTTP-обработчики клиентской части: каталог тарифов,
// подачу заявки (гостем или пользователем), список своих заявок, отзыв,
// загрузку подтверждения оплаты и выдачу ссылки доступа.
package requests

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/abo-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/abo-portal/internal/http/response"
	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
	"github.com/magabrotheeeer/abo-portal/internal/lib/validate"
	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/access"
	"github.com/magabrotheeeer/abo-portal/internal/services/subscription"
)

// ProofRequest — загружаемое подтверждение оплаты.
type ProofRequest struct {
	Payload  string `json:"payload" validate:"required"`
	Mimetype string `json:"mimetype" validate:"required"`
}

// Handler обрабатывает клиентские запросы по заявкам.
type Handler struct {
	log      *slog.Logger
	service  Service
	users    Users
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, users Users) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		users:    users,
		validate: validate.New(),
	}
}

// Plans возвращает каталог тарифов.
func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(h.service.Plans()))
}

// Create принимает заявку. С токеном пользователя заявка привязывается к нему.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.requests.Create"
	log := h.with(r, op)

	var in subscription.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	var owner *models.User
	if _, ok := middlewarectx.ClaimsFrom(r.Context()); ok {
		owner = h.users.CurrentUser(r.Context(), middlewarectx.SessionFrom(r.Context()))
	}

	req, err := h.service.Create(r.Context(), owner, in)
	if err != nil {
		log.Error("failed to create request", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	log.Info("request accepted", slog.String("id", req.ID), slog.Bool("guest", owner == nil))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(redact(req)))
}

// Mine возвращает заявки текущего пользователя.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	list := h.service.ListForUser(r.Context(), user)
	for i := range list {
		list[i] = redact(list[i])
	}
	render.JSON(w, r, response.StatusOKWithData(list))
}

// Withdraw отзывает заявку пользователя.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.requests.Withdraw"
	log := h.with(r, op)

	user, req, ok := h.owned(w, r, log)
	if !ok {
		return
	}
	updated, err := h.service.Withdraw(r.Context(), req.ID, user.Email)
	if err != nil {
		log.Warn("withdraw failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(redact(updated)))
}

// UploadProof сохраняет подтверждение оплаты.
func (h *Handler) UploadProof(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.requests.UploadProof"
	log := h.with(r, op)

	var body ProofRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	user, req, ok := h.owned(w, r, log)
	if !ok {
		return
	}
	updated, err := h.service.UploadProof(r.Context(), req.ID, body.Payload, body.Mimetype, user.Email)
	if err != nil {
		log.Warn("proof upload failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(redact(updated)))
}

// Access возвращает ссылку доступа либо подсказку, чего не хватает.
func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.requests.Access"
	log := h.with(r, op)

	_, req, ok := h.owned(w, r, log)
	if !ok {
		return
	}
	render.JSON(w, r, response.StatusOKWithData(access.Disclose(req)))
}

// owned загружает заявку из URL и проверяет, что она принадлежит пользователю.
// Чужая заявка отдаётся как несуществующая.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*models.User, models.Request, bool) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return nil, models.Request{}, false
	}
	req, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && !req.OwnedBy(user) {
		log.Warn("request belongs to another user", slog.String("id", req.ID))
		err = subscription.ErrNotFound
	}
	if err != nil {
		h.fail(w, r, err)
		return nil, models.Request{}, false
	}
	return user, req, true
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := h.users.CurrentUser(r.Context(), middlewarectx.SessionFrom(r.Context()))
	if user == nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("session expired"))
		return nil, false
	}
	return user, true
}

// redact скрывает ссылку доступа, пока она не разрешена к показу.
func redact(r models.Request) models.Request {
	if !access.Visible(r) {
		r.AccessLink = nil
	}
	return r
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := response.FromError(err)
	render.Status(r, status)
	render.JSON(w, r, resp)
}

func (h *Handler) with(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}
