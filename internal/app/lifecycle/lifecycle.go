// Package lifecycle собирает HTTP-приложение движка жизненного цикла: маршруты,
// фоновый планировщик, gRPC health-сервер и корректную остановку.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/config"
	grpcserver "github.com/magabrotheeeer/mealkit-lifecycle/internal/grpc/server"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/jwt"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/migrations"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/services/scheduler"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App представляет основное приложение.
type App struct {
	server    *http.Server
	grpc      *grpcserver.HealthServer
	grpcAddr  string
	scheduler *scheduler.Scheduler
	engine    *Engine
	db        *repository.Storage
	logger    *slog.Logger
}

// WaitForDB ждёт, пока база ответит и миграции будут применены.
func WaitForDB(db *repository.Storage, attempts int, delay time.Duration) error {
	var err error
	for range attempts {
		if err = repository.CheckDatabaseReady(db); err == nil {
			return nil
		}
		time.Sleep(delay)
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New подключает хранилище, применяет миграции и собирает зависимости.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = WaitForDB(db, 10, 3*time.Second); err != nil {
		_ = db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine, err := NewEngine(ctx, cfg, db, reg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.HTTPServer, engine, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), db.DB, reg)

	app := &App{
		server: &http.Server{
			Addr:         cfg.AddressHTTP,
			Handler:      router,
			ReadTimeout:  cfg.TimeoutHTTP,
			WriteTimeout: cfg.TimeoutHTTP,
			IdleTimeout:  cfg.IdleTimeout,
		},
		scheduler: engine.NewScheduler(cfg.Scheduler),
		engine:    engine,
		db:        db,
		logger:    logger,
	}
	if cfg.GRPCServer.AddressGRPC != "" {
		app.grpc = grpcserver.NewHealthServer(db.DB, logger)
		app.grpcAddr = cfg.GRPCServer.AddressGRPC
	}
	return app, nil
}

// Run запускает планировщик, HTTP и gRPC серверы и блокируется до отмены ctx.
// При остановке сначала перестают приниматься запросы, затем дожидается текущий тик.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	a.scheduler.Start(ctx)

	grpcCtx, stopGRPC := context.WithCancel(context.WithoutCancel(ctx))
	defer stopGRPC()
	if a.grpc != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			a.shutdown()
			return fmt.Errorf("app.lifecycle.Run: %w", err)
		}
		go func() {
			errCh <- a.grpc.Serve(grpcCtx, lis, 10*time.Second)
		}()
	}

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

	a.logger.Info("shutting down")
	stopGRPC()
	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
		runErr = errors.Join(runErr, err)
	}
	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	a.scheduler.Stop()
	a.engine.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
