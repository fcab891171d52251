package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ordersys/go-fulfillment/internal/cart"
	"github.com/ordersys/go-fulfillment/internal/config"
	"github.com/ordersys/go-fulfillment/internal/fulfill"
	"github.com/ordersys/go-fulfillment/internal/httpx"
	kafkax "github.com/ordersys/go-fulfillment/internal/kafka"
	"github.com/ordersys/go-fulfillment/internal/notify"
	"github.com/ordersys/go-fulfillment/internal/redisx"
	"github.com/ordersys/go-fulfillment/internal/storage/postgres"
	"github.com/ordersys/go-fulfillment/migrations"
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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := migrations.Apply(ctx, db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	pNotify := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicPaymentNotify, 1024, logger)
	pNotify.Start(ctx)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicOrderPaid, 1024, logger)
	pPaid.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicOrderCancelled, 1024, logger)
	pCancelled.Start(ctx)

	store := postgres.NewStore(db)
	carts := cart.NewStore(rdb)
	clk := fulfill.SystemClock()
	queue := &notify.Queue{Producer: pNotify, Service: cfg.ServiceName}
	events := &notify.Publisher{Paid: pPaid, Cancelled: pCancelled, Service: cfg.ServiceName}

	checkout := fulfill.NewCheckoutService(store, carts, clk, logger,
		fulfill.WithPaymentWindow(cfg.PaymentWindow))
	settle := fulfill.NewSettlementService(store, fulfill.SandboxGateway{}, queue, events, clk, logger)
	orders := fulfill.NewOrderService(store)

	router := httpx.NewRouter()
	h := &httpx.FulfillmentHandler{
		Checkout: checkout,
		Settle:   settle,
		Orders:   orders,
		Cart:     carts,
		Products: store,
		Redis:    rdb,
		Log:      logger,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pNotify.Close()
	pPaid.Close()
	pCancelled.Close()
	cancel()
	pNotify.WaitClosed()
	pPaid.WaitClosed()
	pCancelled.WaitClosed()
}
