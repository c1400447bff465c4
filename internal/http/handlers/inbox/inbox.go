// Package inbox реализует HTTP-обработчики входящих сообщений.
// Пользователь читает сообщения на свой email, оператор на адрес из токена.
package inbox

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/abo-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/abo-portal/internal/http/response"
	"github.com/magabrotheeeer/abo-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
)

// Handler обрабатывает запросы к входящим.
type Handler struct {
	log     *slog.Logger
	service Service
	users   Users
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, users Users) *Handler {
	return &Handler{log: log, service: service, users: users}
}

// List возвращает сообщения получателя, новые первыми, и число непрочитанных.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	email, ok := h.recipient(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"messages": h.service.InboxFor(r.Context(), email),
		"unread":   h.service.UnreadCount(r.Context(), email),
	}))
}

// MarkRead отмечает все сообщения получателя прочитанными.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.inbox.MarkRead"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email, ok := h.recipient(w, r)
	if !ok {
		return
	}
	n, err := h.service.MarkAllRead(r.Context(), email)
	if err != nil {
		log.Error("failed to mark messages read", sl.Err(err))
		status, resp := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, resp)
		return
	}
	log.Debug("messages marked read", slog.Int("count", n))
	render.JSON(w, r, response.StatusOKWithData(map[string]int{"marked": n}))
}

func (h *Handler) recipient(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middlewarectx.ClaimsFrom(r.Context())
	if ok && claims.Role == jwt.RoleOperator && claims.Email != "" {
		return claims.Email, true
	}
	user := h.users.CurrentUser(r.Context(), middlewarectx.SessionFrom(r.Context()))
	if user == nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("session expired"))
		return "", false
	}
	return user.Email, true
}
