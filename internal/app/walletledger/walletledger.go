// Package walletledger собирает сервис кошельков: потребитель очереди возвратов
// и HTTP API начислений и баланса.
package walletledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/config"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/health"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/wallet/balance"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/handlers/wallet/credit"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/jwt"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/rabbitmq"
	walletservice "github.com/magabrotheeeer/mealkit-lifecycle/internal/services/wallet"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/storage/repository"
)

// App представляет приложение кошельков.
type App struct {
	server        *http.Server
	conn          *amqp.Connection
	ch            *amqp.Channel
	walletService *walletservice.Service
	concurrency   int
	db            *repository.Storage
	logger        *slog.Logger
}

// RegisterRoutes регистрирует маршруты сервиса кошельков.
// Начисления принимаются без токена: маршрут доступен только во внутренней сети.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc *walletservice.Service, parser middlewarectx.TokenParser, db health.Pinger) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)
	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Route("/api/v1/wallet", func(r chi.Router) {
		r.Post("/credits", credit.New(logger, svc).ServeHTTP)
		r.With(middlewarectx.JWTMiddleware(parser, logger)).Get("/balance", balance.New(logger, svc).ServeHTTP)
	})
}

// New подключает хранилище и RabbitMQ. Миграции применяет основной сервис,
// поэтому здесь только ожидание готовности схемы.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err := waitForDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.WalletExchange, rabbitmq.WalletQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	svc := walletservice.NewService(db, logger)
	router := chi.NewRouter()
	RegisterRoutes(router, logger, svc, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), db.DB)

	return &App{
		server: &http.Server{
			Addr:         cfg.AddressHTTP,
			Handler:      router,
			ReadTimeout:  cfg.TimeoutHTTP,
			WriteTimeout: cfg.TimeoutHTTP,
			IdleTimeout:  cfg.IdleTimeout,
		},
		conn:          conn,
		ch:            ch,
		walletService: svc,
		concurrency:   cfg.RabbitMQ.Concurrency,
		db:            db,
		logger:        logger,
	}, nil
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		if err := repository.CheckDatabaseReady(db); err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает потребителя очереди возвратов и HTTP-сервер до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	consumeCtx, stopConsume := context.WithCancel(ctx)
	defer stopConsume()

	consumer := rabbitmq.NewConsumer(a.ch, rabbitmq.RefundQueue, a.concurrency, a.logger)
	handler := func(ctx context.Context, msg rabbitmq.Message) error {
		return a.walletService.HandleRefundMessage(ctx, msg.Body)
	}
	if err := consumer.Start(consumeCtx, handler); err != nil {
		a.logger.Error("failed to start refund consumer", sl.Err(err))
		closeResources(a.ch, a.conn, a.logger)
		_ = a.db.Close()
		return err
	}
	a.logger.Info("refund consumer started", slog.String("queue", rabbitmq.RefundQueue))

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

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	a.logger.Info("wallet-ledger shutting down gracefully")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	stopConsume()
	consumer.Wait()
	closeResources(a.ch, a.conn, a.logger)
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	return runErr
}
