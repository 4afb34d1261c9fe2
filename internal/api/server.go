package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/MS-092/DS-RM-FP/internal/config"
)

// Server hosts the controller service next to the standard health and
// reflection services.
type Server struct {
	grpc     *grpc.Server
	lis      net.Listener
	health   *health.Server
	drainFor time.Duration
}

// NewServer listens on cfg.Address. Call Start to begin serving.
func NewServer(cfg config.ServerConfig, service ControllerServer, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}
	return newServer(cfg, lis, service, opts...), nil
}

func newServer(cfg config.ServerConfig, lis net.Listener, service ControllerServer, opts ...grpc.ServerOption) *Server {
	grpc_prometheus.EnableHandlingTimeHistogram()
	gs := grpc.NewServer(append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, opts...)...)

	RegisterControllerServer(gs, service)
	grpc_prometheus.Register(gs)

	// The empty name answers probes for the whole process; ServiceName answers
	// probes that ask for the controller specifically.
	hs := health.NewServer()
	for _, name := range []string{"", ServiceName} {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{grpc: gs, lis: lis, health: hs, drainFor: cfg.GracefulTimeout}
}

// Start blocks serving RPCs. It returns nil once Shutdown has stopped the server.
func (s *Server) Start() error {
	if s.grpc == nil || s.lis == nil {
		return errors.New("grpc server not initialised")
	}
	if err := s.grpc.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown reports NOT_SERVING to health probes and drains in-flight calls.
// Calls still running when ctx ends, or after the configured graceful timeout
// when ctx has no deadline, are cut off. It reports whether the drain finished.
func (s *Server) Shutdown(ctx context.Context) bool {
	if s.grpc == nil {
		return true
	}
	s.health.Shutdown()

	if _, ok := ctx.Deadline(); !ok && s.drainFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.drainFor)
		defer cancel()
	}

	drained := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(drained)
	}()

	select {
	case <-drained:
		return true
	case <-ctx.Done():
		s.grpc.Stop()
		return false
	}
}

// Address is the bound listen address.
func (s *Server) Address() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}
