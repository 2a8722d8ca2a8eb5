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

	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/config"
	"github.com/uaifestas/festas-go/internal/database"
	"github.com/uaifestas/festas-go/internal/logger"
	"github.com/uaifestas/festas-go/internal/mailer"
	"github.com/uaifestas/festas-go/internal/notify"
	"github.com/uaifestas/festas-go/internal/redis"
	"github.com/uaifestas/festas-go/internal/server"
	"github.com/uaifestas/festas-go/internal/store"
	"github.com/uaifestas/festas-go/internal/store/memstore"
	"github.com/uaifestas/festas-go/internal/store/pgstore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zl, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, zl)
	if err != nil {
		zl.Error("failed to open store", zap.Error(err))
		return err
	}

	notifier, closeNotifier, err := openNotifier(ctx, cfg, zl)
	if err != nil {
		zl.Error("failed to set up notifications", zap.Error(err))
		return err
	}
	defer closeNotifier()

	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: server.New(cfg, st, notifier, zl),
	}

	go func() {
		<-ctx.Done()
		zl.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	zl.Info("API server starting",
		zap.String("port", cfg.APIPort),
		zap.String("store", cfg.StoreDriver),
		zap.String("notify", cfg.NotifyDriver),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Error("failed to start API server", zap.Error(err))
		return err
	}
	return nil
}

// openStore returns the configured store. The in-memory store is seeded
// with demo data since it starts empty on every run.
func openStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		st := memstore.New()
		if err := database.SeedData(ctx, st, zl); err != nil {
			return nil, err
		}
		return st, nil
	}

	db, err := database.Connect(cfg, zl)
	if err != nil {
		return nil, err
	}
	return pgstore.New(db), nil
}

// openNotifier returns the ticket dispatcher and a func that drains it.
func openNotifier(ctx context.Context, cfg *config.Config, zl *zap.Logger) (notify.Dispatcher, func(), error) {
	if cfg.NotifyDriver == "redis" {
		client := redis.NewClient(cfg)
		if err := client.Ping(ctx); err != nil {
			return nil, nil, err
		}
		return notify.NewQueue(client, cfg.RedisQueueKey), func() { client.Close() }, nil
	}

	sender := notify.NewSender(mailer.New(cfg, zl), cfg.MailSubject, zl)
	pool := notify.NewPool(sender, cfg.NotifyWorkers, cfg.NotifyQueueSize, zl)
	return pool, pool.Close, nil
}
