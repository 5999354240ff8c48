package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/cosmocargo/project/internal/app/catalog"
	"github.com/cosmocargo/project/internal/app/chaos"
	"github.com/cosmocargo/project/internal/app/chaosapi"
	"github.com/cosmocargo/project/internal/app/settings"
	platformauth "github.com/cosmocargo/project/internal/platform/auth"
	"github.com/cosmocargo/project/internal/platform/dbpool"
	"github.com/cosmocargo/project/internal/platform/env"
	"github.com/cosmocargo/project/internal/platform/metrics"
	"github.com/cosmocargo/project/internal/platform/natsutil"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiAddr := env.String("CHAOS_API_ADDR", env.DefaultAPIAddr)
	uiOrigin := env.String("UI_ORIGIN", "http://localhost:3000")
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	jwtSecret := env.String("JWT_SECRET", "dev-insecure-change-me")
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	catalogRepo := catalog.NewPostgresRepository(pool)
	chaosRepo := chaos.NewPostgresRepository(pool)
	settingsStore := settings.NewStore(pool)
	if err := waitForSchema(runCtx, pool, catalogRepo, chaosRepo, settingsStore, 30*time.Second); err != nil {
		log.Fatal(err)
	}
	if err := catalogRepo.SeedDefaults(runCtx); err != nil {
		log.Fatal(err)
	}
	if env.Bool("SEED_DEMO_DATA", false) {
		if err := chaosRepo.SeedDemoShipments(runCtx, env.Int("SEED_DEMO_SHIPMENTS", 25)); err != nil {
			log.Fatal(err)
		}
	}

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), env.Duration("NATS_CONNECT_TIMEOUT", 20*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	cfg, err := loadSchedulerConfig(runCtx, settingsStore)
	if err != nil {
		log.Fatal(err)
	}

	catalogSvc := catalog.NewService(catalogRepo)
	publisher := natsutil.JetStreamPublisher{JS: client.JS}
	engine := chaos.NewEngine(catalogSvc, chaosRepo, publisher.Publish)
	scheduler := chaos.NewScheduler(engine, chaosRepo, cfg)
	go scheduler.Run(runCtx)

	handler := &chaosapi.Handler{
		Catalog:       catalogSvc,
		Engine:        engine,
		Config:        cfg,
		Shipments:     chaosRepo,
		Logs:          chaosRepo,
		Settings:      settingsStore,
		EnabledKey:    settings.KeyChaosEnabled,
		IntervalKey:   settings.KeyChaosIntervalSeconds,
		Auth:          platformauth.NewManager(jwtSecret, env.Duration("JWT_TTL", 24*time.Hour)),
		AllowedOrigin: uiOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), pool, client.Conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              apiAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("Chaos API listening on %s\n", apiAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("chaos-api graceful shutdown failed: %v", err)
	}
}

// loadSchedulerConfig reads persisted settings, falling back to
// environment defaults on first boot.
func loadSchedulerConfig(ctx context.Context, store *settings.Store) (*chaos.Config, error) {
	enabled, err := store.GetBool(ctx, settings.KeyChaosEnabled, env.Bool("CHAOS_ENABLED", true))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", settings.KeyChaosEnabled, err)
	}
	interval, err := store.GetInt(ctx, settings.KeyChaosIntervalSeconds, env.Int("CHAOS_INTERVAL_SECONDS", chaos.DefaultIntervalSeconds))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", settings.KeyChaosIntervalSeconds, err)
	}
	return chaos.NewConfig(enabled, interval), nil
}

func waitForSchema(ctx context.Context, pool *pgxpool.Pool, catalogRepo *catalog.PostgresRepository, chaosRepo *chaos.PostgresRepository, store *settings.Store, timeout time.Duration) error {
	ensure := func(attemptCtx context.Context) error {
		if err := pool.Ping(attemptCtx); err != nil {
			return err
		}
		if err := chaosRepo.EnsureSchema(attemptCtx); err != nil {
			return err
		}
		if err := catalogRepo.EnsureSchema(attemptCtx); err != nil {
			return err
		}
		return store.EnsureSchema(attemptCtx)
	}

	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = ensure(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for schema readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	if conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", conn.Status().String())
	}

	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
