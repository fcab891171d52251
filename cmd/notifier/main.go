package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ordersys/go-fulfillment/internal/config"
	kafkax "github.com/ordersys/go-fulfillment/internal/kafka"
	"github.com/ordersys/go-fulfillment/internal/notify"
	"github.com/ordersys/go-fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	worker := &notify.Worker{
		Redis:  rdb,
		Mailer: &notify.LogMailer{Log: logger},
		Log:    logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, notify.TopicPaymentNotify, cfg.NotifierWorkers, logger)

	go func() {
		logger.Info("notifier consumer started",
			zap.String("group", cfg.NotifierGroup),
			zap.String("topic", notify.TopicPaymentNotify),
			zap.Int("workers", cfg.NotifierWorkers))
		if err := cons.Start(ctx, worker.HandleNotice); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down notifier...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
