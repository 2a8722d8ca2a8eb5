package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/config"
	"github.com/uaifestas/festas-go/internal/logger"
	"github.com/uaifestas/festas-go/internal/mailer"
	"github.com/uaifestas/festas-go/internal/notify"
	"github.com/uaifestas/festas-go/internal/redis"
)

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

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(cfg)
	defer client.Close()
	if err := client.Ping(ctx); err != nil {
		zl.Error("failed to connect to redis", zap.Error(err))
		return err
	}
	if pending, err := client.QueueLength(ctx, cfg.RedisQueueKey); err == nil {
		zl.Info("pending notifications", zap.Int64("count", pending))
	}

	sender := notify.NewSender(mailer.New(cfg, zl), cfg.MailSubject, zl)
	notify.Consume(ctx, client, cfg.RedisQueueKey, sender, zl)
	return nil
}
