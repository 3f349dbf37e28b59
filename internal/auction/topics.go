package auction

import "strconv"

const (
	TopicAuctionStarted   = "auction.started"
	TopicAuctionClosed    = "auction.closed"
	TopicAuctionCancelled = "auction.cancelled"
	TopicAuctionExtended  = "auction.extended"
	TopicBidPlaced        = "auction.bid.placed"
	TopicBidCancelled     = "auction.bid.cancelled"
	TopicBuyNowExecuted   = "auction.buynow.executed"
	TopicStartingSoon     = "auction.starting.soon"
	TopicEndingSoon       = "auction.ending.soon"
	TopicOrderCreated     = "auction.order.created"
	TopicPaymentFailed    = "auction.payment.failed"
)

// Partition key = auction id, so every event for one auction keeps the order
// the row lock produced.
func PartitionKey(auctionID int64) []byte {
	return []byte(strconv.FormatInt(auctionID, 10))
}
