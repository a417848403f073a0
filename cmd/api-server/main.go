package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"moviehub/internal/app"
	"moviehub/internal/auth"
	"moviehub/internal/events"
	"moviehub/internal/ingest"
	"moviehub/internal/server"
)

func main() {
	env, err := app.Bootstrap("api-server")
	if err != nil {
		stdlog.Fatalf("startup failed: %v", err)
	}
	defer env.Close()
	log := env.Log
	cfg := env.Config

	if cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	pipeline, err := env.Pipeline()
	if err != nil {
		log.Fatal("pipeline setup failed", "error", err)
	}
	hub := events.NewHub(log)
	var udpSrv *events.UDPServer
	if cfg.EventsUDP != "" && cfg.EventsUDP != "off" {
		udpSrv = events.NewUDPServer(cfg.EventsUDP, log)
		if err := udpSrv.Listen(); err != nil {
			log.Fatal("udp events listen failed", "addr", cfg.EventsUDP, "error", err)
		}
		pipeline.Events = events.Fanout{hub, udpSrv}
	} else {
		pipeline.Events = hub
	}
	scheduler := ingest.NewScheduler(pipeline, cfg.Ingest.Interval, log)

	router := server.NewRouter(server.Deps{
		DB:        env.DB,
		Catalog:   env.Catalog,
		Scheduler: scheduler,
		Hub:       hub,
		Tokens: auth.TokenService{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.JWTIssuer,
			Duration: cfg.Auth.JWTDuration,
		},
		AssetDir: cfg.Ingest.AssetDir,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tcpSrv := events.NewServer(cfg.EventsTCP, hub, log)
	// bind early so a port clash stops startup
	if err := tcpSrv.Listen(); err != nil {
		log.Fatal("events listen failed", "addr", cfg.EventsTCP, "error", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	if udpSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := udpSrv.Run(); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http api listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		log.Error("server error", "error", err)
	}

	// stops the scheduler; a cycle in flight ends at its next candidate boundary
	stop()
	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown error", "error", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Warn("tcp shutdown error", "error", err)
	}
	if udpSrv != nil {
		if err := udpSrv.Close(); err != nil {
			log.Warn("udp shutdown error", "error", err)
		}
	}

	wg.Wait()
	log.Info("servers stopped")
}
