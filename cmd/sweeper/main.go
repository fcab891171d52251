package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ordersys/go-fulfillment/internal/config"
	"github.com/ordersys/go-fulfillment/internal/fulfill"
	kafkax "github.com/ordersys/go-fulfillment/internal/kafka"
	"github.com/ordersys/go-fulfillment/internal/notify"
	"github.com/ordersys/go-fulfillment/internal/redisx"
	"github.com/ordersys/go-fulfillment/internal/storage/postgres"
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicOrderCancelled, 1024, logger)
	pCancelled.Start(ctx)

	events := &notify.Publisher{
		Paid:      nil,
		Cancelled: pCancelled,
		Service:   cfg.ServiceName + "-sweeper",
	}
	sweeper := fulfill.NewSweeper(postgres.NewStore(db), events, fulfill.SystemClock(), logger, cfg.SweepWorkers)

	logger.Info("expiry sweeper started", zap.Duration("interval", cfg.SweepInterval))
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runOnce(ctx, rdb, sweeper, logger)
		case <-sig:
			logger.Info("shutting down sweeper...")
			pCancelled.Close()
			cancel()
			pCancelled.WaitClosed()
			return
		}
	}
}

// runOnce takes a short redis lease so overlapping sweeper instances skip
// duplicate scans; the guarded status transition stays the real safety net.
func runOnce(ctx context.Context, rdb *redis.Client, sweeper *fulfill.Sweeper, logger *zap.Logger) {
	ok, err := rdb.SetNX(ctx, redisx.KeySweepLease, "1", redisx.TTLSweepLease).Result()
	if err != nil {
		logger.Warn("sweep lease", zap.Error(err))
	} else if !ok {
		return
	}

	if _, err := sweeper.Run(ctx); err != nil {
		logger.Error("sweep run failed", zap.Error(err))
	}
	_ = rdb.Del(ctx, redisx.KeySweepLease).Err()
}
