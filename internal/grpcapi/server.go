// Package grpcapi exposes the complexity estimator over gRPC.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fidde/codesnip/internal/complexity"
)

// MaxCodeBytes bounds the code accepted by Estimate.
const MaxCodeBytes = 100000

// Analyzer runs the estimator. *snippets.Service satisfies it.
type Analyzer interface {
	Analyze(code string) complexity.Estimate
}

// Server serves the codesnip.v1.Complexity service.
type Server struct {
	analyzer Analyzer
	logger   *slog.Logger
	server   *grpc.Server
	addr     string
}

// NewServer creates a new gRPC server.
func NewServer(addr string, analyzer Analyzer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		analyzer: analyzer,
		logger:   logger,
		addr:     addr,
	}

	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logCalls))
	s.server.RegisterService(&ComplexityServiceDesc, s)

	// Register reflection service for debugging with grpcurl
	reflection.Register(s.server)
	return s
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	err := s.server.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the gRPC server, forcing a stop if ctx
// expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}

// Estimate implements ComplexityServer.
func (s *Server) Estimate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	code := req.GetValue()
	if code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}
	if len(code) > MaxCodeBytes {
		return nil, status.Errorf(codes.InvalidArgument, "code exceeds %d bytes", MaxCodeBytes)
	}

	out, err := estimateStruct(s.analyzer.Analyze(code))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding estimate: %v", err)
	}
	return out, nil
}

// Classes implements ComplexityServer.
func (s *Server) Classes(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	classes := complexity.Classes()
	values := make([]*structpb.Value, 0, len(classes))
	for _, c := range classes {
		values = append(values, structpb.NewStringValue(string(c)))
	}
	return &structpb.ListValue{Values: values}, nil
}

// estimateStruct converts an estimate through its JSON form so the gRPC and
// REST surfaces share field names.
func estimateStruct(est complexity.Estimate) (*structpb.Struct, error) {
	raw, err := json.Marshal(est)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func (s *Server) logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("grpc call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, err
}
