// Package server exposes synced energy readings over gRPC.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/tejusbharadwaj/wattwatch/internal/config"
	middleware "github.com/tejusbharadwaj/wattwatch/internal/grpc/middlewares"
	"github.com/tejusbharadwaj/wattwatch/internal/logging"
)

// ConfigureGRPCServer builds a server without the middleware chain, for
// development and tests.
func ConfigureGRPCServer(repo EnergyQuerier, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	RegisterEnergyService(srv, NewEnergyService(repo))
	return srv
}

// SetupServer initializes the gRPC server with all middleware, the energy
// service and the health service. Collectors are registered on reg.
func SetupServer(repo EnergyQuerier, cfg config.ServerConfig, logger logrus.FieldLogger, reg prometheus.Registerer) (*grpc.Server, *HealthChecker, error) {
	logger = logging.OrDiscard(logger)

	metrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.ContextMiddleware, // Add request ID first
			middleware.NewRateLimitingInterceptor(cfg.RateLimit, cfg.RateLimitBurst),
			middleware.NewLoggingInterceptor(logger),
			metrics.Interceptor(),
		),
	)

	RegisterEnergyService(server, NewEnergyService(repo))

	health := NewHealthChecker()
	grpc_health_v1.RegisterHealthServer(server, health)
	health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	health.SetServingStatus(EnergyServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return server, health, nil
}
