package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/dasmlab/polyglot/pkg/translator"
)

// HealthServiceName is the gRPC health service name reflecting readiness.
// The empty service name reports the same status.
const HealthServiceName = "polyglot.Translator"

// DefaultHealthInterval is how often readiness is polled.
const DefaultHealthInterval = 5 * time.Second

// GRPCConfig configures a GRPCServer.
type GRPCConfig struct {
	Translator translator.Translator
	Port       int
	// Interval between readiness polls. Defaults to DefaultHealthInterval.
	Interval time.Duration
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// GRPCServer exposes grpc.health.v1 so orchestrators can probe readiness.
type GRPCServer struct {
	translator translator.Translator
	port       int
	interval   time.Duration
	logger     *logrus.Logger
	server     *grpc.Server
	health     *health.Server
}

// NewGRPCServer creates the gRPC server. Status starts as NOT_SERVING.
func NewGRPCServer(cfg GRPCConfig) *GRPCServer {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}

	opts := []grpc.ServerOption{
		grpc.Creds(insecure.NewCredentials()),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             15 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
		}),
	}
	s := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Reflection lets grpcurl list the health service.
	reflection.Register(s)

	return &GRPCServer{
		translator: cfg.Translator,
		port:       cfg.Port,
		interval:   cfg.Interval,
		logger:     cfg.Logger,
		server:     s,
		health:     healthServer,
	}
}

// Start listens on the configured port and polls readiness until ctx is done.
func (g *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", g.port, err)
	}
	go g.watch(ctx)

	g.logger.WithFields(logrus.Fields{
		"port": g.port,
	}).Info("gRPC health server listening")
	if err := g.server.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (g *GRPCServer) watch(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.updateHealth(ctx)
	for {
		select {
		case <-ticker.C:
			g.updateHealth(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// updateHealth sets the serving status from the translator's readiness.
func (g *GRPCServer) updateHealth(ctx context.Context) bool {
	ready := g.translator.ModelsLoaded(ctx)
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ready {
		status = grpc_health_v1.HealthCheckResponse_SERVING
		serviceAvailable.Set(1)
	} else {
		serviceAvailable.Set(0)
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(HealthServiceName, status)
	return ready
}

// Stop marks the server NOT_SERVING and stops it gracefully, forcing the
// stop once ctx expires.
func (g *GRPCServer) Stop(ctx context.Context) {
	g.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		g.logger.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		g.logger.Warn("Graceful shutdown timeout, forcing stop...")
		g.server.Stop()
	}
}
