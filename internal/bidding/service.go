package bidding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-auction-engine.git/internal/auction"
	"github.com/ariefcatur/go-auction-engine.git/internal/config"
	kafkax "github.com/ariefcatur/go-auction-engine.git/internal/kafka"
	"github.com/ariefcatur/go-auction-engine.git/internal/orders"
	"github.com/ariefcatur/go-auction-engine.git/internal/redisx"
)

// ErrNotDue is returned by CloseAuction when the end time moved back into the
// future between the scheduler's select and the lock acquisition (an
// auto-extension landed first). The batch treats it as a skip, not a failure.
var ErrNotDue = errors.New("auction end time not reached")

// Publisher is what the service needs from the event bus.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// TxBeginner is the slice of the pgx pool the service uses.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// AuctionStore, BidStore and OrderStore are the repo slices the service
// drives; the concrete pgx repos satisfy them, tests substitute in-memory
// fakes.
type AuctionStore interface {
	Create(ctx context.Context, it *auction.Item) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (*auction.Item, error)
	SaveTx(ctx context.Context, tx pgx.Tx, it *auction.Item) error
}

type BidStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, b *auction.Bid) error
	WinningTx(ctx context.Context, tx pgx.Tx, auctionID int64) (*auction.Bid, error)
	ClearWinnerTx(ctx context.Context, tx pgx.Tx, auctionID int64) error
	ResolveTx(ctx context.Context, tx pgx.Tx, auctionID int64) (*auction.Bid, error)
	CancelTx(ctx context.Context, tx pgx.Tx, id int64) (*auction.Bid, error)
}

type OrderStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, o *orders.Order) error
	CancelTx(ctx context.Context, tx pgx.Tx, id int64) (bool, error)
}

// Service owns every mutation of an auction's price/status pair. Each entry
// point runs one pgx transaction that takes the auction row FOR UPDATE, so
// all competing operations on one auction serialize in lock order and no
// partial state ever commits. The lock is never held across a call to an
// external system; events and cache writes happen after commit.
type Service struct {
	DB       TxBeginner
	Auctions AuctionStore
	Bids     BidStore
	Orders   OrderStore
	Redis    *redis.Client
	Producer Publisher
	Clock    clock.Clock
	Policy   config.Policy
	Name     string
	Logger   lager.Logger
}

func (s *Service) bidPolicy() auction.BidPolicy {
	return auction.BidPolicy{
		ExtensionWindow: s.Policy.ExtensionWindow,
		ExtensionLength: s.Policy.ExtensionLength,
	}
}

func (s *Service) recoveryPolicy() auction.RecoveryPolicy {
	return auction.RecoveryPolicy{
		Extension:        s.Policy.RecoveryExtension,
		MaxRecoveryCount: s.Policy.MaxRecoveryCount,
	}
}

type CreateParams struct {
	SellerID         int64
	Title            string
	Description      string
	StartPriceCents  int64
	BidUnitCents     int64
	BuyNowPriceCents int64
	StartTime        time.Time
	EndTime          time.Time
}

// Create validates and persists a new listing in SCHEDULED status. No lock is
// needed: the row does not exist yet.
func (s *Service) Create(ctx context.Context, p CreateParams) (*auction.Item, error) {
	if p.BidUnitCents < s.Policy.MinBidUnitCents {
		p.BidUnitCents = s.Policy.MinBidUnitCents
	}
	now := s.Clock.Now()
	it, err := auction.NewItem(p.SellerID, p.Title, p.Description,
		p.StartPriceCents, p.BidUnitCents, p.BuyNowPriceCents,
		s.Policy.MinStartPriceCents, p.StartTime, p.EndTime, now)
	if err != nil {
		return nil, err
	}
	if err := s.Auctions.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}
	s.cachePrice(ctx, it)
	return it, nil
}

// PlaceBid commits one bid under the row lock: re-read fresh state, validate,
// append the bid row, flip the previous winner off, update price/counters and
// apply the anti-snipe extension in the same critical section.
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID, amountCents int64) (*auction.Bid, error) {
	now := s.Clock.Now()

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := s.Auctions.GetForUpdateTx(ctx, tx, auctionID)
	if err != nil {
		return nil, err
	}
	prevCents := it.CurrentPriceCents

	extended, err := it.ApplyBid(bidderID, amountCents, now, s.bidPolicy())
	if err != nil {
		return nil, err
	}

	prev, err := s.Bids.WinningTx(ctx, tx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := s.Bids.ClearWinnerTx(ctx, tx, auctionID); err != nil {
		return nil, err
	}

	b := &auction.Bid{
		AuctionID:   auctionID,
		BidderID:    bidderID,
		AmountCents: amountCents,
		Status:      auction.BidStatusActive,
		IsWinning:   true,
		CreatedAt:   now,
	}
	if err := s.Bids.InsertTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := s.Auctions.SaveTx(ctx, tx, it); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.cachePrice(ctx, it)

	placed := auction.BidPlacedPayload{
		AuctionID:     auctionID,
		BidID:         b.ID,
		BidderID:      bidderID,
		SellerID:      it.SellerID,
		AmountCents:   amountCents,
		PreviousCents: prevCents,
	}
	if prev != nil {
		placed.PreviousBidderID = &prev.BidderID
	}
	s.emit(auction.TopicBidPlaced, auction.EventBidPlaced, auctionID, placed)
	if extended {
		s.emit(auction.TopicAuctionExtended, auction.EventAuctionExtended, auctionID, auction.AuctionExtendedPayload{
			AuctionID:  auctionID,
			NewEndTime: it.EndTime,
			Extensions: it.ExtensionCount,
		})
	}
	return b, nil
}

// CancelBid withdraws a still-active, non-winning bid. The auction row lock
// is taken first so cancellation serializes with bid placement.
func (s *Service) CancelBid(ctx context.Context, auctionID, bidID, bidderID int64) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := s.Auctions.GetForUpdateTx(ctx, tx, auctionID)
	if err != nil {
		return err
	}
	if it.Status != auction.StatusActive {
		return auction.ErrNotActive
	}

	b, err := s.Bids.CancelTx(ctx, tx, bidID)
	if err != nil {
		return err
	}
	if b.AuctionID != auctionID || b.BidderID != bidderID {
		return auction.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.emit(auction.TopicBidCancelled, auction.EventBidCancelled, auctionID, auction.BidCancelledPayload{
		AuctionID: auctionID,
		BidID:     bidID,
		BidderID:  bidderID,
	})
	return nil
}

// ExecuteBuyNow resolves the auction immediately. The PENDING order is a fast
// local write inside the critical section; the payment gateway only ever sees
// the committed order.
func (s *Service) ExecuteBuyNow(ctx context.Context, auctionID, buyerID int64) (*orders.Order, error) {
	now := s.Clock.Now()

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := s.Auctions.GetForUpdateTx(ctx, tx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := it.ExecuteBuyNow(now); err != nil {
		return nil, err
	}

	o := &orders.Order{
		ExternalID:  uuid.NewString(),
		AuctionID:   auctionID,
		WinnerID:    buyerID,
		SellerID:    it.SellerID,
		AmountCents: it.BuyNowPriceCents,
		Type:        orders.TypeBuyNow,
		Status:      orders.StatusPending,
		CreatedAt:   now,
	}
	if err := s.Orders.CreateTx(ctx, tx, o); err != nil {
		return nil, fmt.Errorf("create buy-now order: %w", err)
	}
	if err := s.Auctions.SaveTx(ctx, tx, it); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.cachePrice(ctx, it)
	s.emit(auction.TopicBuyNowExecuted, auction.EventBuyNowExecuted, auctionID, auction.BuyNowExecutedPayload{
		AuctionID:  auctionID,
		BuyerID:    buyerID,
		SellerID:   it.SellerID,
		PriceCents: it.BuyNowPriceCents,
	})
	s.emitOrderCreated(o)
	return o, nil
}


// StartAuction moves one due SCHEDULED auction into ACTIVE.
func (s *Service) StartAuction(ctx context.Context, auctionID int64) error {
	now := s.Clock.Now()

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := s.Auctions.GetForUpdateTx(ctx, tx, auctionID)
	if err != nil {
		return err
	}
	if err := it.Start(now); err != nil {
		return err
	}
	if err := s.Auctions.SaveTx(ctx, tx, it); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.cachePrice(ctx, it)
	s.emit(auction.TopicAuctionStarted, auction.EventAuctionStarted, auctionID, auction.AuctionStartedPayload{
		AuctionID: auctionID,
		SellerID:  it.SellerID,
		Title:     it.Title,
		EndTime:   it.EndTime,
	})
	return nil
}

// CloseAuction ends one expired auction, resolves its bids, and creates the
// winner's PENDING order. Re-checks status and end time under the lock so a
// second close of the same auction is a no-op and never double-emits.
func (s *Service) CloseAuction(ctx context.Context, auctionID int64) error {
	now := s.Clock.Now()

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := s.Auctions.GetForUpdateTx(ctx, tx, auctionID)
	if err != nil {
		return err
	}
	if it.EndTime.After(now) && it.Status == auction.StatusActive {
		return ErrNotDue
	}
	if err := it.Close(now); err != nil {
		return err
	}

	winner, err := s.Bids.ResolveTx(ctx, tx, auctionID)
	if err != nil {
		return err
	}

	var o *orders.Order
	if winner != nil {
		o = &orders.Order{
			ExternalID:  uuid.NewString(),
			AuctionID:   auctionID,
			WinnerID:    winner.BidderID,
			SellerID:    it.SellerID,
			AmountCents: winner.AmountCents,
			Type:        orders.TypeAuctionWin,
			Status:      orders.StatusPending,
			CreatedAt:   now,
		}
		if err := s.Orders.CreateTx(ctx, tx, o); err != nil {
			return fmt.Errorf("create win order: %w", err)
		}
	}
	if err := s.Auctions.SaveTx(ctx, tx, it); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.cachePrice(ctx, it)
	closed := auction.AuctionClosedPayload{
		AuctionID:       auctionID,
		SellerID:        it.SellerID,
		FinalPriceCents: it.CurrentPriceCents,
	}
	if winner != nil {
		closed.WinnerID = &winner.BidderID
		closed.WinningBidID = &winner.ID
	}
	s.emit(auction.TopicAuctionClosed, auction.EventAuctionClosed, auctionID, closed)
	if o != nil {
		s.emitOrderCreated(o)
	}
	return nil
}

// CancelAuction withdraws a seller's own listing.
func (s *Service) CancelAuction(ctx context.Context, auctionID, sellerID int64) error {
	now := s.Clock.Now()

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := s.Auctions.GetForUpdateTx(ctx, tx, auctionID)
	if err != nil {
		return err
	}
	if it.SellerID != sellerID {
		return auction.ErrNotSeller
	}
	if err := it.Cancel(now); err != nil {
		return err
	}
	if err := s.Auctions.SaveTx(ctx, tx, it); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.cachePrice(ctx, it)
	s.emit(auction.TopicAuctionCancelled, auction.EventAuctionCancelled, auctionID, auction.AuctionCancelledPayload{
		AuctionID: auctionID,
		SellerID:  sellerID,
	})
	return nil
}

// UpdateListing applies seller edits to an unresolved auction.
func (s *Service) UpdateListing(ctx context.Context, auctionID, sellerID int64, u auction.ListingUpdate) (*auction.Item, error) {
	now := s.Clock.Now()

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := s.Auctions.GetForUpdateTx(ctx, tx, auctionID)
	if err != nil {
		return nil, err
	}
	if it.SellerID != sellerID {
		return nil, auction.ErrNotSeller
	}
	if err := it.ApplyUpdate(u, now); err != nil {
		return nil, err
	}
	if err := s.Auctions.SaveTx(ctx, tx, it); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return it, nil
}

// ExpireOrder cancels one overdue PENDING order; a cancelled buy-now order
// reopens its auction through the recovery path. Cancel and recovery run in
// one transaction under the auction row lock, so either both commit or
// neither does and the expiry batch retries the order on its next tick.
func (s *Service) ExpireOrder(ctx context.Context, o *orders.Order) error {
	now := s.Clock.Now()

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := s.Auctions.GetForUpdateTx(ctx, tx, o.AuctionID)
	if err != nil {
		return err
	}
	cancelled, err := s.Orders.CancelTx(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	if !cancelled {
		// paid or cancelled since the batch select; nothing to do
		return nil
	}

	var extended bool
	if o.Type == orders.TypeBuyNow {
		// price falls back to the pre-buy-now winning bid, or the start price
		winning, err := s.Bids.WinningTx(ctx, tx, o.AuctionID)
		if err != nil {
			return err
		}
		fallback := it.StartPriceCents
		if winning != nil {
			fallback = winning.AmountCents
		}
		extended, err = it.RecoverFromBuyNowFailure(fallback, now, s.recoveryPolicy())
		if err != nil {
			return err
		}
		if err := s.Auctions.SaveTx(ctx, tx, it); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.Logger.Info("order-expired", lager.Data{
		"order_id":   o.ExternalID,
		"auction_id": o.AuctionID,
		"order_type": string(o.Type),
	})
	if o.Type != orders.TypeBuyNow {
		return nil
	}

	s.cachePrice(ctx, it)
	s.Logger.Info("buy-now-recovered", lager.Data{
		"auction_id":     o.AuctionID,
		"recovery_count": it.RecoveryCount,
		"policy_block":   it.BuyNowPolicyBlock,
		"extended":       extended,
	})
	if extended {
		s.emit(auction.TopicAuctionExtended, auction.EventAuctionExtended, o.AuctionID, auction.AuctionExtendedPayload{
			AuctionID:  o.AuctionID,
			NewEndTime: it.EndTime,
			Extensions: it.ExtensionCount,
		})
	}
	return nil
}

func (s *Service) emitOrderCreated(o *orders.Order) {
	s.emit(auction.TopicOrderCreated, auction.EventOrderCreated, o.AuctionID, auction.OrderCreatedPayload{
		OrderID:     o.ExternalID,
		AuctionID:   o.AuctionID,
		WinnerID:    o.WinnerID,
		SellerID:    o.SellerID,
		AmountCents: o.AmountCents,
		OrderType:   string(o.Type),
	})
}

func (s *Service) emit(topic, eventType string, auctionID int64, payload any) {
	ev := auction.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.Clock.Now().UTC(),
		Producer:      s.Name,
		CorrelationID: strconv.FormatInt(auctionID, 10),
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Producer.Publish(topic, auction.PartitionKey(auctionID),
		kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// cachePrice refreshes the read-side price cache; best effort, the DB stays
// the source of truth.
func (s *Service) cachePrice(ctx context.Context, it *auction.Item) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyAuctionPrice, it.ID)
	body := fmt.Sprintf(`{"current_price_cents":%d,"status":%q}`, it.CurrentPriceCents, it.Status)
	_ = s.Redis.Set(ctx, key, body, redisx.TTLPriceCache).Err()
}
