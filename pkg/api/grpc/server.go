// Package grpc exposes the admin health surface over gRPC: a standard
// grpc_health_v1 health service plus reflection, so operators can probe a
// running sweep coordinator with grpcurl or a Kubernetes gRPC liveness
// probe. It carries no domain RPCs of its own; job inspection and
// triggering live on the REST admin surface in pkg/api/rest.
package grpc

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/efficomp/hpknn/pkg/config"
)

// Server is the admin gRPC server: health checking and reflection only.
type Server struct {
	config     *config.Config
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	startTime  time.Time
	shutdownMu sync.Mutex
	isShutdown bool
}

// NewServer creates the admin gRPC server from the run configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Server{
		config:    cfg,
		health:    health.NewServer(),
		startTime: time.Now(),
	}, nil
}

// SetServing marks the coordinator's overall health status. service "" is
// the server-wide status grpc_health_v1 clients check by default.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Start begins listening and serving in a background goroutine.
func (s *Server) Start() error {
	kaParams := keepalive.ServerParameters{
		MaxConnectionIdle: 15 * time.Second,
		MaxConnectionAge:  30 * time.Second,
		Time:              5 * time.Second,
		Timeout:           1 * time.Second,
	}

	s.grpcServer = grpc.NewServer(grpc.KeepaliveParams(kaParams))
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	addr := fmt.Sprintf("%s:%d", s.config.Admin.Host, s.config.Admin.GRPCPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	log.Printf("admin gRPC server listening on %s", addr)

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			log.Printf("admin gRPC server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, forcing a stop after 5 seconds.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	if s.isShutdown {
		return nil
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		s.grpcServer.Stop()
	}

	s.isShutdown = true
	return nil
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}
