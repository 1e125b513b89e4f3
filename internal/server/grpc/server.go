package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/rzbill/relay/internal/runtime"
	logpkg "github.com/rzbill/relay/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New constructs a gRPC server and registers the events and health services.
func New(rt *runtime.Runtime, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	s := &Server{rt: rt, health: health.NewServer(), logger: logger.With(logpkg.Component("grpc"))}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.logUnary)}, opts...)
	s.grpc = grpc.NewServer(opts...)
	RegisterEventsServer(s.grpc, &eventsSvc{rt: rt})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.logger.Info("grpc listening", logpkg.Str("addr", l.Addr().String()))
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watchHealth(hctx, s.rt, s.health)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	s.health.Shutdown()
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("rpc",
		logpkg.Str("method", info.FullMethod),
		logpkg.Str("code", status.Code(err).String()),
		logpkg.Dur("elapsed", time.Since(start)),
	)
	return resp, err
}

type eventsSvc struct {
	rt *runtime.Runtime
}

func (e *eventsSvc) defaultSchema(schema string) string {
	if schema != "" {
		return schema
	}
	if s := e.rt.Config().Schemas; len(s) > 0 {
		return s[0].Name
	}
	return ""
}

func (e *eventsSvc) Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
	rep, err := e.rt.Publish(ctx, e.defaultSchema(req.Schema), req.Route, req.Payload)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PublishResponse{Report: rep}, nil
}

func (e *eventsSvc) Recent(ctx context.Context, req *RecentRequest) (*RecentResponse, error) {
	if req.Route == "" {
		return nil, status.Error(codes.InvalidArgument, "route is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	entries, err := e.rt.Recent(e.defaultSchema(req.Schema), req.Route, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RecentResponse{Events: entries}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, runtime.ErrUnknownSchema):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, runtime.ErrInvalidEvent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, runtime.ErrJournalDisabled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}
