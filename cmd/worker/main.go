package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"qrattend/internal/audit"
	"qrattend/internal/config"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

// Worker drains scan audit events from the Redis queue into Postgres.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}

	redisClient, err := store.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	defer redisClient.Close()

	var sink audit.Sink
	if cfg.UsesPostgres() {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()
		if err := store.Migrate(ctx, db.Client); err != nil {
			log.Fatalf("migrate failed: %v", err)
		}
		sink = audit.NewPostgresSink(db.Client)
		log.Println("writing scan audit to postgres")
	} else {
		sink = audit.LogSink{Logger: log.Default()}
		log.Println("no postgres configured, logging scan audit only")
	}

	q := queue.NewRedisQueue(redisClient.Client, "")

	log.Println("worker started, waiting for messages...")
	if err := audit.Drain(ctx, q, sink, log.Default()); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
	log.Println("worker stopped")
}
