package main

import (
	"context"
	stdlog "log"
	"net"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"moviehub/internal/app"
	"moviehub/internal/grpcserver"
	"moviehub/internal/ingest"
)

// grpc-server exposes the admin service with its own scheduler. It may share the
// catalog with api-server or cmd/ingest: the pipeline's file lock lets only one of
// them run a cycle at a time, and the others skip theirs.
func main() {
	env, err := app.Bootstrap("grpc-server")
	if err != nil {
		stdlog.Fatalf("startup failed: %v", err)
	}
	defer env.Close()
	log := env.Log
	cfg := env.Config

	pipeline, err := env.Pipeline()
	if err != nil {
		log.Fatal("pipeline setup failed", "error", err)
	}
	scheduler := ingest.NewScheduler(pipeline, cfg.Ingest.Interval, log)

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("grpc listen failed", "addr", cfg.GRPCAddr, "error", err)
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(log)))
	grpcserver.RegisterAdminServer(grpcServer, grpcserver.NewServer(scheduler, env.Catalog))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go scheduler.Run(ctx)
	go func() {
		<-ctx.Done()
		log.Info("shutting down grpc server")
		scheduler.Stop()
		grpcServer.GracefulStop()
	}()

	log.Info("grpc server listening", "addr", cfg.GRPCAddr)
	if err := grpcServer.Serve(listener); err != nil {
		log.Error("grpc server stopped", "error", err)
	}
}
