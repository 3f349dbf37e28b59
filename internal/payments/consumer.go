package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"code.cloudfoundry.org/lager/v3"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-auction-engine.git/internal/auction"
	"github.com/ariefcatur/go-auction-engine.git/internal/bidding"
	kafkax "github.com/ariefcatur/go-auction-engine.git/internal/kafka"
	"github.com/ariefcatur/go-auction-engine.git/internal/orders"
	"github.com/ariefcatur/go-auction-engine.git/internal/redisx"
)

// Service bridges the payment collaborator's failure signal to the buy-now
// recovery path: cancel the pending order, reopen the auction.
type Service struct {
	Bidding     *bidding.Service
	Orders      *orders.Repo
	Redis       *redis.Client
	ServiceName string
	Logger      lager.Logger
}

// HandlePaymentFailed is mounted as the consumer handler for the
// payment-failed topic.
func (s *Service) HandlePaymentFailed(ctx context.Context, m kafkago.Message) error {
	var env auction.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != auction.EventPaymentFailed {
		return nil // ignore
	}

	// dedup by event id so consumer-group rebalances don't double-recover
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[auction.PaymentFailedPayload](env.Payload)
	if err != nil {
		return err
	}

	o, err := s.Orders.GetByExternalID(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("lookup order %s: %w", p.OrderID, err)
	}
	if o.Type != orders.TypeBuyNow {
		// auction-win payment failures cancel the order but never reopen
		// bidding; the auction stays ENDED
		return s.Bidding.ExpireOrder(ctx, o)
	}

	if err := s.Bidding.ExpireOrder(ctx, o); err != nil {
		// recovery on a non-sold auction means the payment flow and the
		// auction state disagree; surface it loudly, no silent retry
		if errors.Is(err, auction.ErrRecoveryFromNonSold) {
			s.Logger.Error("recovery-invariant-broken", err, lager.Data{
				"order_id":   p.OrderID,
				"auction_id": o.AuctionID,
			})
			return nil
		}
		return err
	}
	return nil
}
