package auction

type Status string

const (
	StatusScheduled    Status = "SCHEDULED"
	StatusActive       Status = "ACTIVE"
	StatusEnded        Status = "ENDED"
	StatusSoldByBuyNow Status = "SOLD_BY_BUY_NOW"
	StatusCancelled    Status = "CANCELLED"
)

// validNext is the whole state machine; no other edge is legal.
// SOLD_BY_BUY_NOW -> ACTIVE is the buy-now payment-failure recovery edge.
var validNext = map[Status]map[Status]bool{
	StatusScheduled:    {StatusActive: true, StatusCancelled: true},
	StatusActive:       {StatusEnded: true, StatusSoldByBuyNow: true, StatusCancelled: true},
	StatusSoldByBuyNow: {StatusActive: true},
	StatusEnded:        {},
	StatusCancelled:    {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

type BidStatus string

const (
	BidStatusActive    BidStatus = "ACTIVE"
	BidStatusSuccess   BidStatus = "SUCCESS"
	BidStatusFailed    BidStatus = "FAILED"
	BidStatusCancelled BidStatus = "CANCELLED"
)
