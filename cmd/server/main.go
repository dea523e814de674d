// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/catchphrase/internal/auth"
	"github.com/jason-s-yu/catchphrase/internal/cache"
	"github.com/jason-s-yu/catchphrase/internal/config"
	"github.com/jason-s-yu/catchphrase/internal/database"
	"github.com/jason-s-yu/catchphrase/internal/game"
	"github.com/jason-s-yu/catchphrase/internal/handlers"
	"github.com/jason-s-yu/catchphrase/internal/words"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed := time.Now().UnixNano()
	var wordSource *words.Source
	if cfg.WordsDir != "" {
		wordSource, err = words.Load(cfg.WordsDir, seed)
		if err != nil {
			logger.Fatalf("load words from %s: %v", cfg.WordsDir, err)
		}
	} else {
		wordSource = words.Default(seed)
	}
	logger.Infof("loaded %d words", wordSource.Len())

	issuer, err := newIssuer(cfg)
	if err != nil {
		logger.Fatalf("session tokens: %v", err)
	}

	opts := game.Options{
		Words:           wordSource,
		Logger:          logger,
		Seed:            seed,
		MessageInterval: cfg.MessageInterval,
		Tokens:          issuer,
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		opts.History = cache.NewHistoryQueue(rdb, cfg.HistoryQueue)
		logger.Infof("publishing game history to redis list %s", cfg.HistoryQueue)
	} else {
		logger.Info("REDIS_ADDR not set, game history disabled")
	}

	var history handlers.HistoryStore
	if cfg.DatabaseURL != "" {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
		store, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer store.Close()
		history = store
	}

	reg := game.NewRegistry(opts)
	controller := game.NewController(reg, cfg.TickInterval)
	controllerDone := make(chan struct{})
	go func() {
		defer close(controllerDone)
		controller.Run(ctx)
	}()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.NewRouter(logger, reg, history),
		// Hijacked websocket connections are not tracked by Shutdown, so
		// every request inherits ctx and ends with it.
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server exited: %v", err)
		}
		stop()
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	<-controllerDone
	reg.Wait()
	logger.Info("server stopped")
}

func newIssuer(cfg *config.Config) (*auth.Issuer, error) {
	if cfg.TokenPrivateKey != "" && cfg.TokenPublicKey != "" {
		return auth.NewIssuerFromPath(cfg.TokenPrivateKey, cfg.TokenPublicKey, cfg.TokenTTL)
	}
	return auth.NewIssuer(cfg.TokenTTL)
}
