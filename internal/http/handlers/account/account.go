// Package account реализует HTTP-обработчики регистрации, входа и профиля пользователя.
//
// После регистрации или входа клиент получает JWT; сессия сервисного слоя
// восстанавливается из токена на каждый запрос.
package account

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/abo-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/abo-portal/internal/http/response"
	"github.com/magabrotheeeer/abo-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
	"github.com/magabrotheeeer/abo-portal/internal/lib/validate"
	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/session"
)

// RegisterRequest — входные данные регистрации.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,mailbox"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName,omitempty"`
}

// LoginRequest — входные данные входа.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateRequest — изменение профиля.
type UpdateRequest struct {
	DisplayName string `json:"displayName"`
}

// Handler обрабатывает запросы учётной записи.
type Handler struct {
	log      *slog.Logger
	service  Service
	tokens   TokenMaker
	inbox    Inbox
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, tokens TokenMaker, inbox Inbox) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		tokens:   tokens,
		inbox:    inbox,
		validate: validate.New(),
	}
}

// Register регистрирует пользователя и возвращает токен.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.Register"
	log := h.with(r, op)

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	sess := session.NewMemory("")
	user, err := h.service.Register(r.Context(), sess, req.Email, req.Password, req.DisplayName)
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	h.respondWithToken(w, r, log, user, http.StatusCreated)
}

// Login проверяет учётные данные и возвращает токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.Login"
	log := h.with(r, op)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	sess := session.NewMemory("")
	user, err := h.service.Login(r.Context(), sess, req.Email, req.Password)
	if err != nil {
		log.Warn("login failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	log.Info("login success", slog.String("user_id", user.ID))
	h.respondWithToken(w, r, log, user, http.StatusOK)
}

// Me возвращает профиль текущего пользователя и число непрочитанных сообщений.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.Me"
	log := h.with(r, op)

	user := h.service.CurrentUser(r.Context(), middlewarectx.SessionFrom(r.Context()))
	if user == nil {
		log.Warn("session user not found")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("session expired"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":   user.View(),
		"unread": h.inbox.UnreadCount(r.Context(), user.Email),
	}))
}

// Update меняет отображаемое имя.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.Update"
	log := h.with(r, op)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	user := h.service.CurrentUser(r.Context(), middlewarectx.SessionFrom(r.Context()))
	if user == nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("session expired"))
		return
	}
	updated, err := h.service.UpdateDisplayName(r.Context(), user.ID, req.DisplayName)
	if err != nil {
		log.Error("failed to update profile", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(updated.View()))
}

// Logout закрывает сессию. Токен остаётся у клиента и просто отбрасывается им.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.Logout"
	log := h.with(r, op)

	if err := h.service.Logout(r.Context(), middlewarectx.SessionFrom(r.Context())); err != nil {
		log.Error("logout failed", sl.Err(err))
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(nil))
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, log *slog.Logger, user models.User, status int) {
	token, err := h.tokens.GenerateToken(user.ID, user.Email, jwt.RoleUser)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.Status(r, status)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token": token,
		"user":  user.View(),
	}))
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
