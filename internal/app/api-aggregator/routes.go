package apiaggregator

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/magabrotheeeer/api-aggregator/docs"
	"github.com/magabrotheeeer/api-aggregator/internal/http/handlers/account/cancel"
	"github.com/magabrotheeeer/api-aggregator/internal/http/handlers/account/me"
	"github.com/magabrotheeeer/api-aggregator/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/api-aggregator/internal/http/handlers/auth/signup"
	"github.com/magabrotheeeer/api-aggregator/internal/http/handlers/health"
	"github.com/magabrotheeeer/api-aggregator/internal/http/handlers/subscription/data"
	"github.com/magabrotheeeer/api-aggregator/internal/http/handlers/subscription/modify"
	"github.com/magabrotheeeer/api-aggregator/internal/http/handlers/subscription/show"
	"github.com/magabrotheeeer/api-aggregator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/api-aggregator/internal/metrics"
	"github.com/magabrotheeeer/api-aggregator/internal/registry"
)

// AccountService объединяет операции аккаунта, нужные маршрутам.
type AccountService interface {
	signup.Service
	login.Service
	cancel.Service
	middlewarectx.Service
}

// EditorService объединяет чтение и изменение настроек подписок.
type EditorService interface {
	show.Service
	modify.Service
}

// Services — зависимости HTTP-слоя.
type Services struct {
	Accounts   AccountService
	Editor     EditorService
	Aggregator data.Service
	Registry   *registry.Registry
	Health     health.Checker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.InstrumentHandler,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/signup", signup.New(logger, s.Accounts).ServeHTTP)
		r.Post("/login", login.New(logger, s.Accounts).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Accounts, logger))
			r.Get("/me", me.New(logger).ServeHTTP)
			r.Get("/modify", show.New(logger, s.Editor, s.Registry.Names()).ServeHTTP)
			r.Post("/modify", modify.New(logger, s.Editor).ServeHTTP)
			r.Get("/data", data.New(logger, s.Aggregator).ServeHTTP)
			r.Post("/cancel", cancel.New(logger, s.Accounts).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, s.Health).ServeHTTP)
	r.Handle("/metrics", metrics.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
