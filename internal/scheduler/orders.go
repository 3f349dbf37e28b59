package scheduler

import (
	"context"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"

	"github.com/ariefcatur/go-auction-engine.git/internal/orders"
)

// OrderStore is the slice of the order repo the expiry scheduler reads.
type OrderStore interface {
	ListExpiredPending(ctx context.Context, typ orders.Type, cutoff time.Time) ([]*orders.Order, error)
}

// Expirer cancels one overdue order (and recovers the auction for buy-now).
type Expirer interface {
	ExpireOrder(ctx context.Context, o *orders.Order) error
}

// OrderExpiryScheduler cancels PENDING orders left unpaid past their
// type-specific grace period. Buy-now orders get a short grace, auction-win
// orders a long one; expired buy-now orders reopen their auction.
type OrderExpiryScheduler struct {
	Store   OrderStore
	Expirer Expirer
	Clock   clock.Clock

	Interval    time.Duration
	BuyNowGrace time.Duration
	WinGrace    time.Duration

	Logger lager.Logger
}

func (s *OrderExpiryScheduler) Run(ctx context.Context) error {
	logger := s.Logger.Session("order-expiry")
	ticker := s.Clock.NewTicker(s.Interval)
	defer ticker.Stop()

	logger.Info("started", lager.Data{
		"interval":     s.Interval.String(),
		"buynow_grace": s.BuyNowGrace.String(),
		"win_grace":    s.WinGrace.String(),
	})
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopped")
			return nil
		case <-ticker.C():
			s.Tick(ctx, logger)
		}
	}
}

// Tick expires both order types once.
func (s *OrderExpiryScheduler) Tick(ctx context.Context, logger lager.Logger) {
	now := s.Clock.Now()
	s.expire(ctx, logger, orders.TypeBuyNow, now.Add(-s.BuyNowGrace))
	s.expire(ctx, logger, orders.TypeAuctionWin, now.Add(-s.WinGrace))
}

func (s *OrderExpiryScheduler) expire(ctx context.Context, logger lager.Logger, typ orders.Type, cutoff time.Time) {
	batch, err := s.Store.ListExpiredPending(ctx, typ, cutoff)
	if err != nil {
		logger.Error("list-expired-failed", err, lager.Data{"order_type": string(typ)})
		return
	}
	var done, failed int
	for _, o := range batch {
		if err := s.Expirer.ExpireOrder(ctx, o); err != nil {
			failed++
			logger.Error("expire-failed", err, lager.Data{
				"order_id":   o.ExternalID,
				"auction_id": o.AuctionID,
				"order_type": string(typ),
			})
			continue
		}
		done++
	}
	if len(batch) > 0 {
		logger.Info("expire-batch", lager.Data{
			"order_type": string(typ),
			"cancelled":  done,
			"failed":     failed,
		})
	}
}
