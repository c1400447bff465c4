// Package middlewarectx содержит HTTP middleware портала: проверку JWT,
// ограничение по роли и ограничение частоты запросов.
//
// JWTMiddleware проверяет токен в заголовке Authorization и кладёт его claims
// в контекст запроса. Сессия пользователя для сервисов строится из claims
// на каждый запрос.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/abo-portal/internal/http/response"
	"github.com/magabrotheeeer/abo-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
	"github.com/magabrotheeeer/abo-portal/internal/session"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// Claims — ключ для claims токена в контексте.
const Claims Key = "claims"

// TokenParser проверяет токен и возвращает его claims.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// JWTMiddleware возвращает HTTP middleware, который требует валидный JWT в заголовке Authorization.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return jwtMiddleware(parser, log, false)
}

// OptionalJWTMiddleware пропускает запросы без заголовка Authorization,
// но отклоняет запросы с невалидным токеном.
func OptionalJWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return jwtMiddleware(parser, log, true)
}

func jwtMiddleware(parser TokenParser, log *slog.Logger, optional bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && optional {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			claims, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), Claims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole пропускает только запросы с токеном указанной роли.
func RequireRole(role string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok || claims.Role != role {
				log.Warn("access denied",
					slog.String("required_role", role),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFrom достаёт claims токена из контекста.
func ClaimsFrom(ctx context.Context) (*jwt.CustomClaims, bool) {
	claims, ok := ctx.Value(Claims).(*jwt.CustomClaims)
	return claims, ok && claims != nil
}

// SessionFrom строит сессию пользователя из claims запроса.
// Без токена или для оператора сессия пустая.
func SessionFrom(ctx context.Context) *session.Memory {
	claims, ok := ClaimsFrom(ctx)
	if !ok || claims.Role != jwt.RoleUser {
		return session.NewMemory("")
	}
	return session.NewMemory(claims.UserID)
}
