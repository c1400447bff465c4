package portal

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/abo-portal/internal/config"
	"github.com/magabrotheeeer/abo-portal/internal/http/handlers/account"
	"github.com/magabrotheeeer/abo-portal/internal/http/handlers/admin"
	"github.com/magabrotheeeer/abo-portal/internal/http/handlers/inbox"
	"github.com/magabrotheeeer/abo-portal/internal/http/handlers/requests"
	"github.com/magabrotheeeer/abo-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/abo-portal/internal/lib/jwt"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services, tokens *jwt.MakerImpl, gatherer prometheus.Gatherer) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	accountHandler := account.New(logger, svc.Auth, tokens, svc.Notifications)
	requestsHandler := requests.New(logger, svc.Subscriptions, svc.Auth)
	inboxHandler := inbox.New(logger, svc.Notifications, svc.Auth)
	adminHandler := admin.New(logger, svc.Subscriptions, svc.Auth, tokens, cfg.Operator)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/plans", requestsHandler.Plans)
		r.Post("/register", accountHandler.Register)
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(cfg.LoginRate, cfg.LoginBurst, logger))
			r.Post("/login", accountHandler.Login)
			r.Post("/operator/login", adminHandler.Login)
		})
		r.With(middlewarectx.OptionalJWTMiddleware(tokens, logger)).Post("/requests", requestsHandler.Create)

		// Пользователь
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokens, logger))
			r.Use(middlewarectx.RequireRole(jwt.RoleUser, logger))
			r.Get("/me", accountHandler.Me)
			r.Patch("/me", accountHandler.Update)
			r.Post("/logout", accountHandler.Logout)
			r.Get("/requests/mine", requestsHandler.Mine)
			r.Post("/requests/{id}/withdraw", requestsHandler.Withdraw)
			r.Post("/requests/{id}/proof", requestsHandler.UploadProof)
			r.Get("/requests/{id}/access", requestsHandler.Access)
			r.Get("/inbox", inboxHandler.List)
			r.Post("/inbox/read", inboxHandler.MarkRead)
		})

		// Оператор
		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokens, logger))
			r.Use(middlewarectx.RequireRole(jwt.RoleOperator, logger))
			r.Get("/requests", adminHandler.List)
			r.Post("/requests/bulk", adminHandler.Bulk)
			r.Get("/requests/{id}", adminHandler.Get)
			r.Delete("/requests/{id}", adminHandler.Delete)
			r.Post("/requests/{id}/transition", adminHandler.Transition)
			r.Post("/requests/{id}/proof/verify", adminHandler.VerifyProof)
			r.Post("/requests/{id}/proof/reject", adminHandler.RejectProof)
			r.Put("/requests/{id}/access-link", adminHandler.SetAccessLink)
			r.Get("/export", adminHandler.Export)
			r.Post("/import", adminHandler.Import)
			r.Get("/users", adminHandler.Users)
			r.Get("/users/export", adminHandler.ExportUsers)
			r.Post("/users/{id}/password", adminHandler.ResetPassword)
			r.Delete("/users/{id}", adminHandler.DeleteUser)
			r.Get("/inbox", inboxHandler.List)
			r.Post("/inbox/read", inboxHandler.MarkRead)
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
