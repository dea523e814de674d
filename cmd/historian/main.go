// cmd/historian/main.go drains finished games from the Redis history queue
// and persists them to PostgreSQL in batches.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/catchphrase/internal/cache"
	"github.com/jason-s-yu/catchphrase/internal/config"
	"github.com/jason-s-yu/catchphrase/internal/database"
	"github.com/jason-s-yu/catchphrase/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		logger.Fatal("historian needs both REDIS_ADDR and DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatalf("migrate: %v", err)
	}
	store, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer store.Close()

	queue := cache.NewHistoryQueue(rdb, cfg.HistoryQueue)
	logger.WithFields(logrus.Fields{
		"queue":      cfg.HistoryQueue,
		"batch_size": cfg.HistorianBatchSize,
		"flush":      cfg.HistorianFlush,
	}).Info("historian configured")

	historian.New(queue, store, cfg.HistorianBatchSize, cfg.HistorianFlush, logger).Run(ctx)
}
