package lifecycle

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/magabrotheeeer/mealkit-lifecycle/docs"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/config"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/health"
	orderlist "github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/order/list"
	orderread "github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/order/read"
	subcancel "github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/subscription/cancel"
	freezecancel "github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/subscription/freeze/cancel"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/subscription/freeze/schedule"
	subread "github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg config.HTTPServer, engine *Engine,
	parser middlewarectx.TokenParser, db health.Pinger, gatherer prometheus.Gatherer) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(parser, logger))
		r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst))

		r.Get("/orders", orderlist.New(logger, engine.Orders).ServeHTTP)
		r.Get("/orders/{id}", orderread.New(logger, engine.Orders).ServeHTTP)

		r.Get("/subscriptions/{id}", subread.New(logger, engine.Subscriptions).ServeHTTP)
		r.Post("/subscriptions/{id}/cancel", subcancel.New(logger, engine.Subscriptions, engine.Clock).ServeHTTP)
		r.Post("/subscriptions/{id}/freezes", schedule.New(logger, engine.Subscriptions, engine.Clock).ServeHTTP)
		r.Delete("/subscriptions/{id}/freezes/{freezeID}", freezecancel.New(logger, engine.Subscriptions, engine.Clock).ServeHTTP)
	})
}
