package grpc

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"messenger-service/internal/logger"
	"messenger-service/internal/observability"
)

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

// Server exposes the gRPC health service. Each registered probe is reported
// as its own health service name.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	probes map[string]Probe
}

func NewServer(probes map[string]Probe) *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	h := health.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	reflection.Register(srv)

	return &Server{grpc: srv, health: h, probes: probes}
}

// Check runs every probe once and records the result.
func (s *Server) Check(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, probe := range s.probes {
		status := healthpb.HealthCheckResponse_SERVING
		if err := probe(ctx); err != nil {
			logger.Log.Warn("health probe failed", zap.String("service", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}

// Serve listens on addr until ctx is done, refreshing probe results every interval.
func (s *Server) Serve(ctx context.Context, addr string, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.Check(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				s.grpc.GracefulStop()
				return
			case <-ticker.C:
				s.Check(ctx)
			}
		}
	}()

	logger.Log.Info("grpc server listening", zap.String("addr", addr))
	return s.grpc.Serve(lis)
}
