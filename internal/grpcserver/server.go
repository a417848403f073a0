package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"moviehub/internal/catalog"
	"moviehub/internal/ingest"
	"moviehub/pkg/logger"
)

// Cycles is the part of the scheduler the admin service drives.
type Cycles interface {
	Trigger(ctx context.Context) (ingest.CycleReport, bool, error)
	Last() (ingest.CycleReport, bool)
}

type Server struct {
	Cycles Cycles
	Repo   *catalog.Repo
}

func NewServer(cycles Cycles, repo *catalog.Repo) *Server {
	return &Server{Cycles: cycles, Repo: repo}
}

func (s *Server) TriggerCycle(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	report, joined, err := s.Cycles.Trigger(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		if errors.Is(err, ingest.ErrCycleLocked) {
			return nil, status.Error(codes.Aborted, "another process is running a cycle")
		}
		return nil, status.Errorf(codes.Unavailable, "cycle failed: %v", err)
	}
	return toStruct(map[string]any{"joined": joined, "report": report})
}

func (s *Server) LastCycle(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	report, ok := s.Cycles.Last()
	if !ok {
		return nil, status.Error(codes.NotFound, "no cycle has finished yet")
	}
	return toStruct(map[string]any{"report": report})
}

func (s *Server) ListGenres(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	genres, err := s.Repo.CountByGenre(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, "list genres failed")
	}
	return toStruct(map[string]any{"items": genres})
}

// toStruct converts v through its JSON form so field names match the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	return out, nil
}

// LoggingInterceptor logs each call with its status code and duration.
func LoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	log = logger.OrNop(log).With("component", "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		kv := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start).String()}
		if err != nil && code != codes.NotFound {
			log.Warn("rpc failed", append(kv, "error", err)...)
		} else {
			log.Info("rpc", kv...)
		}
		return resp, err
	}
}
