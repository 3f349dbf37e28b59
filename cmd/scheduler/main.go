package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-auction-engine.git/internal/auction"
	"github.com/ariefcatur/go-auction-engine.git/internal/bidding"
	"github.com/ariefcatur/go-auction-engine.git/internal/config"
	kafkax "github.com/ariefcatur/go-auction-engine.git/internal/kafka"
	"github.com/ariefcatur/go-auction-engine.git/internal/orders"
	"github.com/ariefcatur/go-auction-engine.git/internal/postgres"
	"github.com/ariefcatur/go-auction-engine.git/internal/redisx"
	"github.com/ariefcatur/go-auction-engine.git/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := lager.NewLogger(cfg.ServiceName + "-scheduler")
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
		auction.TopicAuctionStarted,
		auction.TopicAuctionClosed,
		auction.TopicAuctionExtended,
		auction.TopicStartingSoon,
		auction.TopicEndingSoon,
		auction.TopicOrderCreated,
	)
	prod.Start(ctx)

	auctionRepo := &auction.Repo{DB: db}
	bidRepo := &auction.BidRepo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	clk := clock.NewClock()

	svc := &bidding.Service{
		DB:       db,
		Auctions: auctionRepo,
		Bids:     bidRepo,
		Orders:   orderRepo,
		Redis:    rdb,
		Producer: prod,
		Clock:    clk,
		Policy:   cfg.Policy,
		Name:     cfg.ServiceName + "-scheduler",
		Logger:   logger,
	}

	lifecycle := &scheduler.AuctionScheduler{
		Store:     auctionRepo,
		Lifecycle: svc,
		Producer:  prod,
		Redis:     rdb,
		Clock:     clk,
		Interval:  cfg.Policy.SchedulerInterval,
		Lookahead: cfg.Policy.AlertLookahead,
		Name:      cfg.ServiceName + "-scheduler",
		Logger:    logger,
	}
	expiry := &scheduler.OrderExpiryScheduler{
		Store:       orderRepo,
		Expirer:     svc,
		Clock:       clk,
		Interval:    cfg.Policy.SchedulerInterval,
		BuyNowGrace: cfg.Policy.BuyNowPaymentGrace,
		WinGrace:    cfg.Policy.AuctionWinPayGrace,
		Logger:      logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return lifecycle.Run(gctx) })
	g.Go(func() error { return expiry.Run(gctx) })

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting-down")

	prod.Close()
	cancel()
	_ = g.Wait()
	prod.WaitClosed()
}
