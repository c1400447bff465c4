// Package portal собирает приложение: хранилище, сервисы, отправку уведомлений и HTTP-сервер.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/abo-portal/internal/config"
	"github.com/magabrotheeeer/abo-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/abo-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/abo-portal/internal/lib/sl"
	"github.com/magabrotheeeer/abo-portal/internal/lib/smtp"
	"github.com/magabrotheeeer/abo-portal/internal/metrics"
	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/auth"
	"github.com/magabrotheeeer/abo-portal/internal/services/notification"
	"github.com/magabrotheeeer/abo-portal/internal/services/subscription"
	"github.com/magabrotheeeer/abo-portal/internal/storage/kv"
	"github.com/magabrotheeeer/abo-portal/internal/storage/records"
)

const (
	amqpRetries = 5
	amqpDelay   = 2 * time.Second
)

// Services — сервисы портала, общие для всех обработчиков.
type Services struct {
	Auth          *auth.Service
	Subscriptions *subscription.Service
	Notifications *notification.Service
}

// App — HTTP-приложение портала.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	closers []io.Closer
}

// New открывает хранилище, поднимает сервисы и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "portal.New"

	store, err := kv.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var closers []io.Closer
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}

	composer, extra, err := newComposer(cfg.Notification, logger)
	if err != nil {
		closeAll(closers, logger)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	closers = append(closers, extra...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	svc := NewServices(store, cfg, composer, m, logger)
	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, svc, tokens, registry)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	logger.Info("portal initialized",
		slog.String("storage", cfg.Backend),
		slog.String("composer", cfg.Composer),
		slog.Int("plans", len(cfg.Plans)),
	)
	return &App{
		server:  srv,
		logger:  logger,
		closers: closers,
	}, nil
}

// NewServices создаёт сервисы поверх одного хранилища ключ-значение.
func NewServices(store kv.Store, cfg *config.Config, composer notification.Composer, m *metrics.Metrics, logger *slog.Logger) Services {
	notifications := notification.NewService(
		records.New[models.Message](store, records.KeyMessages, logger), composer, m, logger)
	return Services{
		Auth: auth.NewService(records.New[models.User](store, records.KeyUsers, logger), m, logger),
		Subscriptions: subscription.NewService(
			records.New[models.Request](store, records.KeyRequests, logger),
			subscription.NewCatalog(cfg.Plans),
			notifications,
			cfg.Operator.Email,
			m,
			logger,
		),
		Notifications: notifications,
	}
}

// newComposer выбирает транспорт исходящих уведомлений по notification.composer.
func newComposer(cfg config.Notification, logger *slog.Logger) (notification.Composer, []io.Closer, error) {
	const op = "portal.newComposer"
	switch cfg.Composer {
	case "", "log":
		return notification.NewLogComposer(logger), nil, nil
	case "rabbitmq":
		conn, err := rabbitmq.Connect(cfg.AMQPURL, amqpRetries, amqpDelay)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.NotificationQueues(cfg.RoutingKey))
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return rabbitmq.NewComposer(ch, cfg.Exchange, cfg.RoutingKey), []io.Closer{amqpCloser{ch}, amqpCloser{conn}}, nil
	case "smtp":
		return smtp.NewComposer(smtp.NewTransport(cfg, logger), logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("%s: unknown composer %q", op, cfg.Composer)
	}
}

// amqpCloser приводит Close каналов и соединений amqp к io.Closer.
type amqpCloser struct {
	c interface{ Close() error }
}

func (a amqpCloser) Close() error {
	if err := a.c.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		closeAll(a.closers, a.logger)
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		closeAll(a.closers, a.logger)
		return err
	}
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("failed to close resource", sl.Err(err))
		}
	}
}
