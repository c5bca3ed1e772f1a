package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/celsiusify/internal/adapter/fsm"
	otelAdapter "github.com/neomorfeo/celsiusify/internal/adapter/otel"
	riverAdapter "github.com/neomorfeo/celsiusify/internal/adapter/river"
	"github.com/neomorfeo/celsiusify/internal/adapter/sqlite"
	"github.com/neomorfeo/celsiusify/internal/app"
	"github.com/neomorfeo/celsiusify/internal/domain"

	handler "github.com/neomorfeo/celsiusify/internal/adapter/http"
)

const serviceName = "celsiusify"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", ":memory:")
	ledgerEnabled, err := strconv.ParseBool(envOrDefault("LEDGER_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("LEDGER_ENABLED: %w", err)
	}

	ctx := context.Background()

	// --- Telemetry ---
	otelCfg := otelAdapter.ConfigFromEnv()
	providers, err := otelAdapter.Setup(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown error: %v", err)
		}
	}()

	// --- Adapters (out) ---
	var (
		recorder domain.ConversionRecorder
		ledger   domain.ConversionLedger
	)
	if ledgerEnabled {
		db, err := otelAdapter.OpenDB(dbPath)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		repo, err := sqlite.NewFromDB(db)
		if err != nil {
			db.Close()
			return fmt.Errorf("database: %w", err)
		}
		defer repo.Close()

		ledger = otelAdapter.NewTracingLedger(repo)

		client, err := riverAdapter.Setup(ctx, db, ledger)
		if err != nil {
			return fmt.Errorf("river: %w", err)
		}
		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("river start: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Stop(stopCtx); err != nil {
				log.Printf("river stop error: %v", err)
			}
		}()

		traced, err := otelAdapter.NewTracingRecorder(riverAdapter.NewRecorder(client))
		if err != nil {
			return fmt.Errorf("recorder metrics: %w", err)
		}
		recorder = traced
	}

	// --- Application ---
	svc := app.Initialize(recorder, ledger)
	lifecycle := app.NewLifecycle(fsm.New())

	if recorder != nil {
		if err := otelAdapter.ObserveDropped(svc.Identifier(), svc.Dropped); err != nil {
			return fmt.Errorf("recorder metrics: %w", err)
		}
	}

	// Conversions reach the recorder from here, never from the request path.
	// Runs before the River client stops so the last batch is enqueued.
	recordCtx, stopRecording := context.WithCancel(ctx)
	recordDone := make(chan struct{})
	go func() {
		defer close(recordDone)
		svc.Run(recordCtx)
	}()
	defer func() {
		stopRecording()
		<-recordDone
	}()

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(otelCfg.ServiceName, otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig(serviceName, otelCfg.ServiceVersion))
	handler.Register(api, svc, lifecycle)

	// The identifier exists before the first request can be dispatched.
	if _, err := lifecycle.Fire(ctx, domain.EventInitialize); err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("%s %s listening on :%s", serviceName, svc.Identifier(), port)
		log.Printf("API docs: http://localhost:%s/docs", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-done:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Println("shutting down...")
	if _, err := lifecycle.Fire(ctx, domain.EventDrain); err != nil {
		log.Printf("lifecycle: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	log.Println("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
