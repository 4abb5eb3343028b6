// Package health serves the standard gRPC health protocol for orchestrator
// probes and shares its readiness check with the HTTP /healthz endpoint.
package health

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name probes may ask about in addition to "".
const ServiceName = "connectchat"

// Pinger is a dependency whose reachability decides readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// NewServer builds a health server that reports SERVING while p answers pings.
func NewServer(p Pinger, interval time.Duration, log zerolog.Logger, opts ...grpc.ServerOption) *Server {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	log = log.With().Str("component", "health").Logger()
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingUnaryInterceptor(log)))

	s := &Server{
		grpc:     grpc.NewServer(opts...),
		health:   health.NewServer(),
		pinger:   p,
		interval: interval,
		timeout:  2 * time.Second,
		log:      log,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// ServerOptions returns the TLS options for the gRPC listener. With no
// certificate configured it returns no options, unless requireTLS is set.
func ServerOptions(certFile, keyFile string, requireTLS bool) ([]grpc.ServerOption, error) {
	if certFile != "" && keyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(certFile, keyFile)
		if err != nil {
			return nil, err
		}
		return []grpc.ServerOption{grpc.Creds(creds)}, nil
	}
	if requireTLS {
		return nil, errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	return nil, nil
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Check pings the dependency once and updates the served status.
func (s *Server) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Run checks readiness every interval until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.Check(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Serve accepts gRPC connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return s.grpc.Serve(lis)
}

// Stop marks the service as not serving and drains connections.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func loggingUnaryInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug().
			Str("method", info.FullMethod).
			Dur("latency", time.Since(start)).
			Err(err).
			Msg("grpc call")
		return resp, err
	}
}
