// Package admin реализует HTTP-обработчики панели оператора: вход по PIN,
// просмотр и смену статусов заявок, массовые операции, проверку подтверждений
// оплаты, ссылки доступа, экспорт и импорт данных, управление пользователями.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/abo-portal/internal/config"
	"github.com/magabrotheeeer/abo-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/abo-portal/internal/http/response"
	"github.com/magabrotheeeer/abo-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/abo-portal/internal/lib/month"
	"github.com/magabrotheeeer/abo-portal/internal/lib/password"
	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
	"github.com/magabrotheeeer/abo-portal/internal/lib/validate"
	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/subscription"
)

// MaxImportSize — предельный размер тела запроса импорта.
const MaxImportSize = 10 << 20

const operatorActor = "operator"

// LoginRequest — вход оператора.
type LoginRequest struct {
	Email string `json:"email" validate:"required"`
	Pin   string `json:"pin" validate:"required"`
}

// TransitionRequest — смена статуса одной заявки.
type TransitionRequest struct {
	Status models.Status `json:"status" validate:"required"`
}

// BulkRequest — массовая операция. Пустые поля не меняются.
type BulkRequest struct {
	IDs         []string       `json:"ids"`
	Status      *models.Status `json:"status,omitempty"`
	AccessLink  *string        `json:"accessLink,omitempty"`
	NextBilling *string        `json:"nextBilling,omitempty"`
	Label       string         `json:"label,omitempty"`
}

// AccessLinkRequest — новая ссылка доступа; пустая строка убирает ссылку.
type AccessLinkRequest struct {
	AccessLink string `json:"accessLink"`
}

// PasswordRequest — новый пароль пользователя.
type PasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// Handler обрабатывает запросы оператора.
type Handler struct {
	log      *slog.Logger
	requests Requests
	users    Users
	tokens   TokenMaker
	operator config.Operator
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, requests Requests, users Users, tokens TokenMaker, operator config.Operator) *Handler {
	return &Handler{
		log:      log,
		requests: requests,
		users:    users,
		tokens:   tokens,
		operator: operator,
		validate: validate.New(),
	}
}

// Login проверяет email и PIN оператора и возвращает токен с ролью operator.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.Login"
	log := h.with(r, op)

	var req LoginRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if h.operator.PinHash == "" || !strings.EqualFold(strings.TrimSpace(req.Email), h.operator.Email) {
		log.Warn("operator login rejected")
		h.unauthorized(w, r)
		return
	}
	if err := password.CompareHash(h.operator.PinHash, req.Pin); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			log.Error("failed to compare pin hash", sl.Err(err))
		}
		log.Warn("operator login rejected")
		h.unauthorized(w, r)
		return
	}

	token, err := h.tokens.GenerateToken("", h.operator.Email, jwt.RoleOperator)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	log.Info("operator logged in")
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"token": token}))
}

// List возвращает все заявки либо только с указанным в ?status= статусом.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("unknown status: "+string(status)))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(h.requests.List(r.Context(), status)))
}

// Get возвращает заявку целиком, включая журнал и подтверждение оплаты.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(req))
}

// Transition меняет статус одной заявки.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.Transition"
	log := h.with(r, op)

	var req TransitionRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	updated, err := h.requests.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, h.actor(r))
	if err != nil {
		log.Warn("transition failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(updated))
}

// Bulk применяет изменения к набору заявок.
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.Bulk"
	log := h.with(r, op)

	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	patch := subscription.Patch{Status: req.Status, AccessLink: req.AccessLink}
	if req.NextBilling != nil {
		t, err := month.ParseStart(*req.NextBilling)
		if err != nil {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("field NextBilling must be a date in format "+month.DateLayout))
			return
		}
		patch.NextBilling = &t
	}

	res, err := h.requests.BulkApply(r.Context(), req.IDs, patch, h.actor(r), req.Label)
	if err != nil {
		log.Warn("bulk update failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

// VerifyProof подтверждает загруженное подтверждение оплаты.
func (h *Handler) VerifyProof(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.VerifyProof"
	updated, err := h.requests.VerifyProof(r.Context(), chi.URLParam(r, "id"), h.actor(r))
	h.reply(w, r, op, updated, err)
}

// RejectProof отклоняет подтверждение оплаты.
func (h *Handler) RejectProof(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.RejectProof"
	updated, err := h.requests.RejectProof(r.Context(), chi.URLParam(r, "id"), h.actor(r))
	h.reply(w, r, op, updated, err)
}

// SetAccessLink задаёт ссылку доступа заявки.
func (h *Handler) SetAccessLink(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.SetAccessLink"
	log := h.with(r, op)

	var req AccessLinkRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	updated, err := h.requests.SetAccessLink(r.Context(), chi.URLParam(r, "id"), req.AccessLink, h.actor(r))
	h.reply(w, r, op, updated, err)
}

// Delete удаляет заявку.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.Delete"
	log := h.with(r, op)

	id := chi.URLParam(r, "id")
	if err := h.requests.Delete(r.Context(), id); err != nil {
		log.Warn("delete failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	log.Info("request deleted", slog.String("id", id))
	render.JSON(w, r, response.StatusOKWithData(nil))
}

// Export отдаёт все заявки JSON-файлом.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.Export"
	raw, err := h.requests.Export(r.Context())
	h.attachment(w, r, op, "requests", raw, err)
}

// Import заменяет все заявки содержимым тела запроса.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.Import"
	log := h.with(r, op)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImportSize))
	if err != nil {
		log.Error("failed to read import body", sl.Err(err))
		render.Status(r, http.StatusRequestEntityTooLarge)
		render.JSON(w, r, response.Error("import file is too large"))
		return
	}
	n, err := h.requests.Import(r.Context(), raw)
	if err != nil {
		log.Warn("import rejected", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	log.Info("import applied", slog.Int("count", n))
	render.JSON(w, r, response.StatusOKWithData(map[string]int{"imported": n}))
}

// Users возвращает пользователей без учётных данных.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	list := h.users.ListUsers(r.Context())
	views := make([]models.UserView, 0, len(list))
	for _, u := range list {
		views = append(views, u.View())
	}
	render.JSON(w, r, response.StatusOKWithData(views))
}

// ExportUsers отдаёт пользователей JSON-файлом.
func (h *Handler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.ExportUsers"
	raw, err := h.users.ExportUsers(r.Context())
	h.attachment(w, r, op, "users", raw, err)
}

// ResetPassword задаёт пользователю новый пароль.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.ResetPassword"
	log := h.with(r, op)

	var req PasswordRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if err := h.users.AdminResetPassword(r.Context(), chi.URLParam(r, "id"), req.Password); err != nil {
		log.Warn("password reset failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(nil))
}

// DeleteUser удаляет пользователя. Его заявки остаются.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.DeleteUser"
	log := h.with(r, op)

	if err := h.users.DeleteUser(r.Context(), nil, chi.URLParam(r, "id")); err != nil {
		log.Warn("user delete failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(nil))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return false
	}
	return true
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request, op string, updated models.Request, err error) {
	if err != nil {
		h.with(r, op).Warn("operation failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(updated))
}

func (h *Handler) attachment(w http.ResponseWriter, r *http.Request, op, name string, raw []byte, err error) {
	if err != nil {
		h.with(r, op).Error("export failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	filename := fmt.Sprintf("%s-%s.json", name, time.Now().UTC().Format(month.DateLayout))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		h.with(r, op).Error("failed to write export", sl.Err(err))
	}
}

// actor — кто записывается в журнал заявки.
func (h *Handler) actor(r *http.Request) string {
	if claims, ok := middlewarectx.ClaimsFrom(r.Context()); ok && claims.Email != "" {
		return claims.Email
	}
	return operatorActor
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error("invalid operator credentials"))
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
