// Package server реализует gRPC-сервер со стандартным протоколом health-проверок.
//
// Статус обслуживания выставляется по доступности базы данных, что позволяет
// оркестратору проверять сервис через grpc_health_probe.
package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
)

// ServiceName публикуется в протоколе health-проверок.
const ServiceName = "mealkit.lifecycle"

// Pinger проверяет соединение с хранилищем.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer отдаёт статус сервиса по gRPC.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	db         Pinger
	log        *slog.Logger
}

// NewHealthServer создает gRPC-сервер с зарегистрированными health и reflection сервисами.
func NewHealthServer(db Pinger, logger *slog.Logger) *HealthServer {
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)

	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{
		grpcServer: grpcServer,
		health:     hs,
		db:         db,
		log:        logger,
	}
}

// Probe один раз проверяет базу и выставляет статус.
func (s *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.db.PingContext(ctx); err != nil {
		s.log.Warn("database ping failed", sl.Err(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	return status
}

// Serve принимает соединения на lis и каждые interval обновляет статус,
// пока не будет отменён ctx. После отмены сервер останавливается с ожиданием активных вызовов.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gRPC health server listening", slog.String("address", lis.Addr().String()))
		errCh <- s.grpcServer.Serve(lis)
	}()

	s.Probe(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpcServer.GracefulStop()
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}
