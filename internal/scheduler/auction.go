package scheduler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-auction-engine.git/internal/auction"
	"github.com/ariefcatur/go-auction-engine.git/internal/bidding"
	kafkax "github.com/ariefcatur/go-auction-engine.git/internal/kafka"
	"github.com/ariefcatur/go-auction-engine.git/internal/redisx"
)

// AuctionStore is the slice of the auction repo the scheduler reads.
type AuctionStore interface {
	ListDueToStart(ctx context.Context, now time.Time) ([]int64, error)
	ListExpired(ctx context.Context, now time.Time) ([]int64, error)
	ListStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*auction.Item, error)
	ListEndingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*auction.Item, error)
}

// Lifecycle is the slice of the bidding service the scheduler drives.
type Lifecycle interface {
	StartAuction(ctx context.Context, auctionID int64) error
	CloseAuction(ctx context.Context, auctionID int64) error
}

// AuctionScheduler advances auctions through their lifecycle on a fixed
// cadence: close expired, start due, announce upcoming. One tick runs at a
// time; each item is its own unit of work and a failure never aborts the
// batch.
type AuctionScheduler struct {
	Store     AuctionStore
	Lifecycle Lifecycle
	Producer  bidding.Publisher
	Redis     *redis.Client
	Clock     clock.Clock
	Interval  time.Duration
	Lookahead time.Duration
	Name      string
	Logger    lager.Logger
}

func (s *AuctionScheduler) Run(ctx context.Context) error {
	logger := s.Logger.Session("auction-scheduler")
	ticker := s.Clock.NewTicker(s.Interval)
	defer ticker.Stop()

	logger.Info("started", lager.Data{"interval": s.Interval.String()})
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

// Tick runs the three jobs once. Exported so tests can drive ticks directly.
func (s *AuctionScheduler) Tick(ctx context.Context, logger lager.Logger) {
	s.closeExpired(ctx, logger)
	s.startDue(ctx, logger)
	s.announceUpcoming(ctx, logger)
}

func (s *AuctionScheduler) closeExpired(ctx context.Context, logger lager.Logger) {
	now := s.Clock.Now()
	ids, err := s.Store.ListExpired(ctx, now)
	if err != nil {
		logger.Error("list-expired-failed", err)
		return
	}
	var done, skipped, failed int
	for _, id := range ids {
		switch err := s.Lifecycle.CloseAuction(ctx, id); {
		case err == nil:
			done++
		case errors.Is(err, bidding.ErrNotDue), isStateError(err):
			// extended or already resolved since the select; not a failure
			skipped++
		default:
			failed++
			logger.Error("close-failed", err, lager.Data{"auction_id": id})
		}
	}
	if len(ids) > 0 {
		logger.Info("close-batch", lager.Data{"closed": done, "skipped": skipped, "failed": failed})
	}
}

func (s *AuctionScheduler) startDue(ctx context.Context, logger lager.Logger) {
	now := s.Clock.Now()
	ids, err := s.Store.ListDueToStart(ctx, now)
	if err != nil {
		logger.Error("list-due-failed", err)
		return
	}
	var done, skipped, failed int
	for _, id := range ids {
		switch err := s.Lifecycle.StartAuction(ctx, id); {
		case err == nil:
			done++
		case isStateError(err):
			skipped++
		default:
			failed++
			logger.Error("start-failed", err, lager.Data{"auction_id": id})
		}
	}
	if len(ids) > 0 {
		logger.Info("start-batch", lager.Data{"started": done, "skipped": skipped, "failed": failed})
	}
}

// announceUpcoming emits one starting-soon / ending-soon advisory per auction
// per phase. Best effort: failures are logged, never retried.
func (s *AuctionScheduler) announceUpcoming(ctx context.Context, logger lager.Logger) {
	now := s.Clock.Now()

	starting, err := s.Store.ListStartingWithin(ctx, now, s.Lookahead)
	if err != nil {
		logger.Error("list-starting-soon-failed", err)
	}
	for _, it := range starting {
		s.advise(ctx, logger, "start", auction.TopicStartingSoon, auction.EventStartingSoon, it, it.StartTime)
	}

	ending, err := s.Store.ListEndingWithin(ctx, now, s.Lookahead)
	if err != nil {
		logger.Error("list-ending-soon-failed", err)
	}
	for _, it := range ending {
		s.advise(ctx, logger, "end", auction.TopicEndingSoon, auction.EventEndingSoon, it, it.EndTime)
	}
}

func (s *AuctionScheduler) advise(ctx context.Context, logger lager.Logger, phase, topic, eventType string, it *auction.Item, at time.Time) {
	if s.Redis != nil {
		first, err := redisx.MarkNotified(ctx, s.Redis, phase, it.ID)
		if err != nil {
			logger.Error("mark-notified-failed", err, lager.Data{"auction_id": it.ID, "phase": phase})
			return
		}
		if !first {
			return
		}
	}
	ev := auction.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.Clock.Now().UTC(),
		Producer:      s.Name,
		CorrelationID: strconv.FormatInt(it.ID, 10),
	}
	ev.Payload = kafkax.MustMarshal(auction.UpcomingPayload{
		AuctionID: it.ID,
		Title:     it.Title,
		At:        at,
	})
	s.Producer.Publish(topic, auction.PartitionKey(it.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// isStateError reports whether err is a domain state rejection (illegal
// transition, not active, already sold) rather than an infrastructure fault.
func isStateError(err error) bool {
	var de *auction.Error
	if !errors.As(err, &de) {
		return false
	}
	switch de.Code {
	case auction.ErrIllegalTransition.Code, auction.ErrNotActive.Code, auction.ErrAlreadySold.Code:
		return true
	}
	return false
}
