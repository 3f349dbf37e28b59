package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-auction-engine.git/internal/auction"
	"github.com/ariefcatur/go-auction-engine.git/internal/bidding"
	"github.com/ariefcatur/go-auction-engine.git/internal/config"
	"github.com/ariefcatur/go-auction-engine.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-auction-engine.git/internal/kafka"
	"github.com/ariefcatur/go-auction-engine.git/internal/orders"
	"github.com/ariefcatur/go-auction-engine.git/internal/postgres"
	"github.com/ariefcatur/go-auction-engine.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := lager.NewLogger(cfg.ServiceName)
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
		auction.TopicBidPlaced,
		auction.TopicBidCancelled,
		auction.TopicAuctionExtended,
		auction.TopicAuctionCancelled,
		auction.TopicBuyNowExecuted,
		auction.TopicOrderCreated,
	)
	prod.Start(ctx)

	auctionRepo := &auction.Repo{DB: db}
	bidRepo := &auction.BidRepo{DB: db}
	orderRepo := &orders.Repo{DB: db}

	svc := &bidding.Service{
		DB:       db,
		Auctions: auctionRepo,
		Bids:     bidRepo,
		Orders:   orderRepo,
		Redis:    rdb,
		Producer: prod,
		Clock:    clock.NewClock(),
		Policy:   cfg.Policy,
		Name:     cfg.ServiceName,
		Logger:   logger,
	}

	router := httpx.NewRouter()
	h := &httpx.AuctionsHandler{
		Svc:      svc,
		Auctions: auctionRepo,
		Bids:     bidRepo,
		Orders:   orderRepo,
		Redis:    rdb,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("http-listening", lager.Data{"addr": cfg.HTTPAddr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting-down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inboxes -> flush & close writers
	cancel()
	prod.WaitClosed()
}
