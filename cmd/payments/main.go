package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-auction-engine.git/internal/auction"
	"github.com/ariefcatur/go-auction-engine.git/internal/bidding"
	"github.com/ariefcatur/go-auction-engine.git/internal/config"
	kafkax "github.com/ariefcatur/go-auction-engine.git/internal/kafka"
	"github.com/ariefcatur/go-auction-engine.git/internal/orders"
	"github.com/ariefcatur/go-auction-engine.git/internal/payments"
	"github.com/ariefcatur/go-auction-engine.git/internal/postgres"
	"github.com/ariefcatur/go-auction-engine.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	name := cfg.ServiceName + "-payments"
	logger := lager.NewLogger(name)
	logger.RegisterSink(lager.NewWriterSink(os.Stdout, lager.INFO))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db-connect", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducers(logger, cfg.KafkaBrokers, 1024,
		auction.TopicAuctionExtended,
	)
	prod.Start(ctx)

	auctionRepo := &auction.Repo{DB: db}
	bidRepo := &auction.BidRepo{DB: db}
	orderRepo := &orders.Repo{DB: db}

	svc := &payments.Service{
		Bidding: &bidding.Service{
			DB:       db,
			Auctions: auctionRepo,
			Bids:     bidRepo,
			Orders:   orderRepo,
			Redis:    rdb,
			Producer: prod,
			Clock:    clock.NewClock(),
			Policy:   cfg.Policy,
			Name:     name,
			Logger:   logger,
		},
		Orders:      orderRepo,
		Redis:       rdb,
		ServiceName: name,
		Logger:      logger,
	}

	group := getenv("PAYMENTS_GROUP", "auction-payments")
	workers := mustAtoi(os.Getenv("PAYMENTS_WORKERS"), "4")
	cons := kafkax.NewConsumer(logger, cfg.KafkaBrokers, group, auction.TopicPaymentFailed, workers)

	go func() {
		logger.Info("consumer-started", lager.Data{
			"group":   group,
			"topic":   auction.TopicPaymentFailed,
			"workers": workers,
		})
		if err := cons.Start(ctx, svc.HandlePaymentFailed); err != nil {
			logger.Error("consumer-exit", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting-down")
	prod.Close()
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
