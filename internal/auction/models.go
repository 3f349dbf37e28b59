package auction

import "time"

// Item is the aggregate root for one listing. The price/status pair is the
// only shared resource the engine guards with the row lock; Bid rows are
// append-only under the parent lock.
type Item struct {
	ID       int64
	SellerID int64

	Title       string
	Description string

	StartPriceCents   int64
	CurrentPriceCents int64
	BidUnitCents      int64
	BuyNowPriceCents  int64 // 0 when no buy-now price is set
	BuyNowEnabled     bool
	BuyNowPolicyBlock bool // sticky: set once the recovery circuit breaker trips

	StartTime      time.Time
	EndTime        time.Time
	ExtensionCount int
	RecoveryCount  int

	Status Status

	BidCount   int
	ViewCount  int64
	WatchCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bid is one bid attempt, append-only. Status stays ACTIVE until the auction
// resolves; at most one bid per auction is winning while the auction runs.
type Bid struct {
	ID          int64
	AuctionID   int64
	BidderID    int64
	AmountCents int64
	Status      BidStatus
	IsWinning   bool
	CreatedAt   time.Time
}
