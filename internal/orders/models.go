package orders

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Type decides which unpaid grace period applies before expiry cancels the
// order, and whether cancellation triggers buy-now recovery on the auction.
type Type string

const (
	TypeBuyNow     Type = "BUY_NOW"
	TypeAuctionWin Type = "AUCTION_WIN"
)

// Order is the hand-off record the payment flow owns after creation.
// ExternalID is the opaque key shared with that collaborator.
type Order struct {
	ID          int64
	ExternalID  string // uuid
	AuctionID   int64
	WinnerID    int64
	SellerID    int64
	AmountCents int64
	Type        Type
	Status      Status
	CreatedAt   time.Time
	PaidAt      *time.Time
}
