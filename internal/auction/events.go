package auction

import (
	"encoding/json"
	"time"
)

const (
	EventAuctionStarted   = "AuctionStarted"
	EventAuctionClosed    = "AuctionClosed"
	EventAuctionCancelled = "AuctionCancelled"
	EventAuctionExtended  = "AuctionExtended"
	EventBidPlaced        = "BidPlaced"
	EventBidCancelled     = "BidCancelled"
	EventBuyNowExecuted   = "BuyNowExecuted"
	EventStartingSoon     = "AuctionStartingSoon"
	EventEndingSoon       = "AuctionEndingSoon"
	EventOrderCreated     = "OrderCreated"
	EventPaymentFailed    = "PaymentFailed" // consumed from the payment flow
)

type Envelope struct {
	EventID       string          `json:"event_id"`   // uuid
	EventType     string          `json:"event_type"` // one of the consts above
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"` // RFC3339
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // auction_id as string
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payloads per event ----

type AuctionStartedPayload struct {
	AuctionID int64     `json:"auction_id"`
	SellerID  int64     `json:"seller_id"`
	Title     string    `json:"title"`
	EndTime   time.Time `json:"end_time"`
}

type AuctionClosedPayload struct {
	AuctionID       int64  `json:"auction_id"`
	SellerID        int64  `json:"seller_id"`
	WinnerID        *int64 `json:"winner_id,omitempty"` // nil when no bids
	FinalPriceCents int64  `json:"final_price_cents"`
	WinningBidID    *int64 `json:"winning_bid_id,omitempty"`
}

type AuctionCancelledPayload struct {
	AuctionID int64 `json:"auction_id"`
	SellerID  int64 `json:"seller_id"`
}

type AuctionExtendedPayload struct {
	AuctionID  int64     `json:"auction_id"`
	NewEndTime time.Time `json:"new_end_time"`
	Extensions int       `json:"extensions"`
}

type BidPlacedPayload struct {
	AuctionID        int64  `json:"auction_id"`
	BidID            int64  `json:"bid_id"`
	BidderID         int64  `json:"bidder_id"`
	SellerID         int64  `json:"seller_id"`
	AmountCents      int64  `json:"amount_cents"`
	PreviousBidderID *int64 `json:"previous_bidder_id,omitempty"` // outbid party to notify
	PreviousCents    int64  `json:"previous_cents"`
}

type BidCancelledPayload struct {
	AuctionID int64 `json:"auction_id"`
	BidID     int64 `json:"bid_id"`
	BidderID  int64 `json:"bidder_id"`
}

type BuyNowExecutedPayload struct {
	AuctionID  int64 `json:"auction_id"`
	BuyerID    int64 `json:"buyer_id"`
	SellerID   int64 `json:"seller_id"`
	PriceCents int64 `json:"price_cents"`
}

type UpcomingPayload struct {
	AuctionID int64     `json:"auction_id"`
	Title     string    `json:"title"`
	At        time.Time `json:"at"` // start or end time the advisory refers to
}

type OrderCreatedPayload struct {
	OrderID     string `json:"order_id"` // external uuid handed to the payment flow
	AuctionID   int64  `json:"auction_id"`
	WinnerID    int64  `json:"winner_id"`
	SellerID    int64  `json:"seller_id"`
	AmountCents int64  `json:"amount_cents"`
	OrderType   string `json:"order_type"` // BUY_NOW | AUCTION_WIN
}

// PaymentFailedPayload is what the payment collaborator publishes when a
// pending order expires or is rejected unpaid.
type PaymentFailedPayload struct {
	OrderID   string `json:"order_id"`
	AuctionID int64  `json:"auction_id"`
	Reason    string `json:"reason,omitempty"`
}
