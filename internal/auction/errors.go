package auction

import "fmt"

// Error is a domain error with a stable machine code. Clients key their
// messaging off Code, so codes never change even if the text does.
type Error struct {
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(code, msg string) *Error { return &Error{Code: code, Msg: msg} }

var (
	ErrPriceBelowMinimum = newErr("PRICE_BELOW_MINIMUM", "start price is below the platform minimum")
	ErrInvalidTimeRange  = newErr("INVALID_TIME_RANGE", "auction end time must be after start time")

	ErrIllegalTransition = newErr("ILLEGAL_STATE_TRANSITION", "operation not allowed in current auction status")
	ErrNotActive         = newErr("AUCTION_NOT_ACTIVE", "auction is not active")

	ErrBidTooLow        = newErr("BID_TOO_LOW", "bid amount must be at least current price plus bid unit")
	ErrSelfBidding      = newErr("SELF_BIDDING", "sellers cannot bid on their own auction")
	ErrBidNotCancelable = newErr("BID_NOT_CANCELLABLE", "bid can no longer be cancelled")

	ErrBuyNowNotEnabled = newErr("BUY_NOW_NOT_ENABLED", "buy-now is not enabled for this auction")
	ErrBuyNowDisabled   = newErr("BUY_NOW_DISABLED_BY_POLICY", "buy-now has been permanently disabled for this auction")
	ErrAlreadySold      = newErr("ALREADY_SOLD", "auction has already been sold via buy-now")

	ErrRecoveryFromNonSold = newErr("RECOVERY_FROM_NON_SOLD", "recovery requires a sold-by-buy-now auction")

	ErrNotSeller = newErr("NOT_SELLER", "only the listing's seller may perform this operation")

	ErrNotFound = newErr("NOT_FOUND", "auction not found")
)

// IllegalTransition reports the attempted edge; code stays stable.
func IllegalTransition(from, to Status) *Error {
	return &Error{
		Code: ErrIllegalTransition.Code,
		Msg:  fmt.Sprintf("illegal status transition %s -> %s", from, to),
	}
}
