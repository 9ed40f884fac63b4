package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saintplus-client/internal/shared/config"
	"saintplus-client/internal/shared/server"
	"saintplus-client/internal/shared/telemetry"
	"saintplus-client/internal/stubserver"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadStub()
	flush, err := telemetry.Init(telemetry.LogOptions{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := stubserver.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("stub build: %v", err)
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := app.StartWorker(ctx); err != nil && !errors.Is(err, context.Canceled) {
			telemetry.Error("stub.worker_stopped", map[string]any{"err": err})
		}
	}()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           server.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		telemetry.Info("stub.listening", map[string]any{"addr": srv.Addr, "public_url": cfg.PublicURL})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	telemetry.Info("stub.shutdown", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Warn("stub.shutdown_failed", map[string]any{"err": err})
	}
	<-workerDone
	if err := app.Close(); err != nil {
		telemetry.Warn("stub.close_failed", map[string]any{"err": err})
	}
}
