package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"qrattend/internal/attendance"
	"qrattend/internal/audit"
	"qrattend/internal/auth"
	"qrattend/internal/config"
	"qrattend/internal/credential"
	"qrattend/internal/directory"
	"qrattend/internal/httpapi"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/ledger"
	"qrattend/internal/metrics"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	health := map[string]httpapi.HealthChecker{}

	var db *store.DB
	if cfg.UsesPostgres() {
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(ctx, db.Client); err != nil {
			return err
		}
		health["db"] = db
	}

	var rdb *store.Redis
	if cfg.UsesRedis() {
		rdb, err = store.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		health["redis"] = rdb
	}

	dir, err := buildDirectory(ctx, cfg, db)
	if err != nil {
		return err
	}

	var creds credential.Store
	switch cfg.CredentialStore {
	case "redis":
		creds = credential.NewRedisStore(rdb.Client, "", 0)
	case "memory":
		creds = credential.NewMemoryStore()
	default:
		return fmt.Errorf("unknown CREDENTIAL_BACKEND %q", cfg.CredentialStore)
	}

	var led ledger.Ledger
	switch cfg.LedgerBackend {
	case "postgres":
		led = ledger.NewPostgresLedger(db.Client, loc)
	case "memory":
		led = ledger.NewMemoryLedger(loc)
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedisQueue(rdb.Client, "")
	} else {
		mem := queue.NewInMemory(256)
		q = mem
		// Nothing else can read an in-process queue, so drain it here.
		go func() {
			_ = audit.Drain(ctx, mem, audit.LogSink{Logger: log.Default()}, log.Default())
		}()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	svc := attendance.NewService(dir, creds, led, credential.NewCodec(cfg.QRSigningKey), attendance.Options{
		TTL:     cfg.CredentialTTL,
		Metrics: m,
	})

	sweeper := credential.NewSweeper(creds, cfg.SweepInterval, log.Default(), m.AddSwept)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	users := auth.NewUsers(0)
	if cfg.SeedDemo {
		if err := auth.SeedDemo(users); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		log.Println("demo accounts seeded (admin, faculty, student)")
	}

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	limiter.OnLimited = m.IncRateLimited
	go limiter.Run(ctx, time.Minute)

	api := httpapi.New(httpapi.Deps{
		Service: svc,
		Users:   users,
		Signer: auth.Signer{
			Issuer:     cfg.JWTIssuer,
			Key:        []byte(cfg.JWTSigningKey),
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		Publisher:      audit.NewPublisher(q),
		Metrics:        m,
		Limiter:        limiter,
		Health:         health,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log.Default(),
		Production:     cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s (credentials=%s ledger=%s directory=%s queue=%s)",
			cfg.HTTPPort, cfg.CredentialStore, cfg.LedgerBackend, cfg.DirectoryStore, cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func buildDirectory(ctx context.Context, cfg config.App, db *store.DB) (directory.Directory, error) {
	switch cfg.DirectoryStore {
	case "postgres":
		dir := directory.NewPostgresDirectory(db.Client)
		if cfg.SeedDemo {
			for _, s := range directory.DemoRoster() {
				if err := dir.Upsert(ctx, s); err != nil {
					return nil, fmt.Errorf("seed students: %w", err)
				}
			}
		}
		return dir, nil
	case "memory":
		var roster []directory.Student
		if cfg.SeedDemo {
			roster = directory.DemoRoster()
		}
		return directory.NewMemoryDirectory(roster...), nil
	default:
		return nil, fmt.Errorf("unknown DIRECTORY_BACKEND %q", cfg.DirectoryStore)
	}
}
