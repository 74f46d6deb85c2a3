// Package apiaggregator собирает зависимости и запускает HTTP-сервер агрегатора.
package apiaggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/api-aggregator/internal/apiclient"
	"github.com/magabrotheeeer/api-aggregator/internal/cache"
	"github.com/magabrotheeeer/api-aggregator/internal/config"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/jwt"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/sl"
	"github.com/magabrotheeeer/api-aggregator/internal/migrations"
	"github.com/magabrotheeeer/api-aggregator/internal/rabbitmq"
	"github.com/magabrotheeeer/api-aggregator/internal/registry"
	"github.com/magabrotheeeer/api-aggregator/internal/services/account"
	"github.com/magabrotheeeer/api-aggregator/internal/services/aggregator"
	"github.com/magabrotheeeer/api-aggregator/internal/services/subscription"
	"github.com/magabrotheeeer/api-aggregator/internal/storage"
)

type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *storage.Storage
	cache    *cache.Cache
	amqpConn *amqp.Connection
	amqpCh   *amqp.Channel
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "apiaggregator.New"
	app := &App{logger: logger}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.db = db
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg, err := registry.Load(cfg.RegistryPath, cfg.DefaultTimeout)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("service registry loaded", slog.Int("services", reg.Len()))

	var (
		accountCache account.Cache
		editorCache  subscription.Cache
		readCache    aggregator.Cache
	)
	if cfg.AddressRedis != "" {
		app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		accountCache, editorCache, readCache = app.cache, app.cache, app.cache
	} else {
		logger.Warn("redis address is empty, config cache disabled")
	}

	var events account.Events
	if cfg.RabbitMQ.URL != "" {
		app.amqpConn, err = rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.Retries, cfg.RetryDelay)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.amqpCh, err = rabbitmq.SetupChannel(app.amqpConn, cfg.Exchange, rabbitmq.GetAccountQueues())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		events = rabbitmq.NewAccountEvents(app.amqpCh, cfg.Exchange)
	} else {
		logger.Warn("rabbitmq url is empty, account events disabled")
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	accountService := account.NewService(db, jwtMaker, accountCache, events, logger)
	editorService := subscription.NewService(db, editorCache, reg, logger)
	aggregatorService := aggregator.NewService(db, readCache, cfg.CacheTTL, reg,
		apiclient.NewClient(&http.Client{}), cfg.MaxParallel, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Accounts:   accountService,
		Editor:     editorService,
		Aggregator: aggregatorService,
		Registry:   reg,
		Health:     db,
	})

	// Запрос /data ждёт самый медленный сервис, поэтому таймаут записи не меньше его таймаута.
	writeTimeout := max(cfg.TimeoutHTTP, reg.MaxTimeout()+5*time.Second)
	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: writeTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Handler возвращает корневой обработчик сервера.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

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
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.amqpCh != nil {
		if err := a.amqpCh.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis client", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", sl.Err(err))
		}
	}
}
