// Package handlers provides gRPC and HTTP server implementations for
// serving the DirectoryService, bridging the transport layer and business logic,
// translating between wire structs and domain models.
package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gartstein/dexapp/internal/directory/auth"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// ProtectedMethods lists the gRPC methods that require an authenticated caller.
func ProtectedMethods() []string {
	return []string{
		FullMethod("CreateCompany"),
		FullMethod("UpdateCompany"),
		FullMethod("AppendDeed"),
		FullMethod("DeleteCompany"),
	}
}

// Server holds references to both a gRPC server and an HTTP server.
type Server struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	gatewayConn  *grpc.ClientConn
	logger       *zap.Logger
	grpcEndpoint string
	httpEndpoint string
}

// NewServer constructs a Server with separate endpoints for gRPC and HTTP.
func NewServer(
	grpcPort int,
	httpPort int,
	logger *zap.Logger,
	grpcOpts ...grpc.ServerOption,
) *Server {
	return &Server{
		grpcServer: grpc.NewServer(grpcOpts...),
		httpServer: &http.Server{
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:       logger.Named("server"),
		grpcEndpoint: fmt.Sprintf(":%d", grpcPort),
		httpEndpoint: fmt.Sprintf(":%d", httpPort),
	}
}

// RegisterGRPCHandler registers the gRPC handler for the DirectoryService.
func (s *Server) RegisterGRPCHandler(h DirectoryServiceServer) {
	s.grpcServer.RegisterService(&ServiceDesc, h)
}

// RegisterHTTPGateway sets up the HTTP reverse-proxy with the specified dial
// options. reg is served on /metrics when non-nil.
func (s *Server) RegisterHTTPGateway(dialOpts []grpc.DialOption, jwtSecret string, reg prometheus.Gatherer) error {
	conn, err := grpc.NewClient("localhost"+s.grpcEndpoint, dialOpts...)
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}
	s.gatewayConn = conn

	handler, err := gatewayHandler(conn, jwtSecret, reg)
	if err != nil {
		_ = conn.Close()
		return err
	}
	s.httpServer.Handler = handler
	s.httpServer.Addr = s.httpEndpoint
	return nil
}

func gatewayHandler(conn grpc.ClientConnInterface, jwtSecret string, reg prometheus.Gatherer) (http.Handler, error) {
	mux, err := NewGatewayMux(conn, reg)
	if err != nil {
		return nil, err
	}
	return auth.HTTPMiddleware(mux, jwtSecret), nil
}

// Start runs the gRPC and HTTP servers concurrently, returning on the first error.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	wg.Add(2)
	errChan := make(chan error, 2)

	go func() {
		defer wg.Done()
		s.logger.Info("Starting gRPC server", zap.String("endpoint", s.grpcEndpoint))
		lis, err := net.Listen("tcp", s.grpcEndpoint)
		if err != nil {
			errChan <- fmt.Errorf("gRPC listen error: %w", err)
			return
		}
		if err := s.grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("gRPC serve error: %w", err)
		}
	}()

	go func() {
		defer wg.Done()
		if s.httpServer.Handler == nil {
			return
		}
		s.logger.Info("Starting HTTP server", zap.String("endpoint", s.httpEndpoint))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP serve error: %w", err)
		}
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down both gRPC and HTTP servers.
func (s *Server) Stop() {
	s.logger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if s.gatewayConn != nil {
		_ = s.gatewayConn.Close()
	}
	s.grpcServer.GracefulStop()

	s.logger.Info("Servers stopped")
}
