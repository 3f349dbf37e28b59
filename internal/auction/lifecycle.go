package auction

import "time"

// BidPolicy is the anti-snipe auto-extension tuning for bid placement.
type BidPolicy struct {
	ExtensionWindow time.Duration
	ExtensionLength time.Duration
}

// RecoveryPolicy governs reopening an auction after a buy-now payment failure.
type RecoveryPolicy struct {
	Extension        time.Duration
	MaxRecoveryCount int
}

// NewItem validates a listing submission and returns it in SCHEDULED status.
func NewItem(sellerID int64, title, description string, startPriceCents, bidUnitCents, buyNowPriceCents, minStartPriceCents int64, start, end, now time.Time) (*Item, error) {
	if startPriceCents < minStartPriceCents {
		return nil, ErrPriceBelowMinimum
	}
	if !end.After(start) {
		return nil, ErrInvalidTimeRange
	}
	return &Item{
		SellerID:          sellerID,
		Title:             title,
		Description:       description,
		StartPriceCents:   startPriceCents,
		CurrentPriceCents: startPriceCents,
		BidUnitCents:      bidUnitCents,
		BuyNowPriceCents:  buyNowPriceCents,
		BuyNowEnabled:     buyNowPriceCents > 0,
		StartTime:         start,
		EndTime:           end,
		Status:            StatusScheduled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Start moves a due auction into bidding.
func (it *Item) Start(now time.Time) error {
	if !CanTransition(it.Status, StatusActive) || it.Status != StatusScheduled {
		return IllegalTransition(it.Status, StatusActive)
	}
	it.Status = StatusActive
	it.UpdatedAt = now
	return nil
}

// Close ends an auction whose end time has passed. Closing anything that is
// not ACTIVE is rejected, which makes scheduler re-runs a no-op.
func (it *Item) Close(now time.Time) error {
	if it.Status != StatusActive {
		return IllegalTransition(it.Status, StatusEnded)
	}
	it.Status = StatusEnded
	it.UpdatedAt = now
	return nil
}

// ApplyBid validates one bid against the locked item and commits its effect:
// new current price, bid counter, and the anti-snipe extension when the bid
// lands inside the window. The caller must hold the row lock.
func (it *Item) ApplyBid(bidderID, amountCents int64, now time.Time, p BidPolicy) (extended bool, err error) {
	if it.Status != StatusActive {
		return false, ErrNotActive
	}
	if bidderID == it.SellerID {
		return false, ErrSelfBidding
	}
	if amountCents < it.CurrentPriceCents+it.BidUnitCents {
		return false, ErrBidTooLow
	}

	it.CurrentPriceCents = amountCents
	it.BidCount++

	// Extension decision must read the authoritative end time, hence inside
	// the same locked section as the price update.
	if it.EndTime.Sub(now) < p.ExtensionWindow {
		it.EndTime = it.EndTime.Add(p.ExtensionLength)
		it.ExtensionCount++
		extended = true
	}
	it.UpdatedAt = now
	return extended, nil
}

// ExecuteBuyNow resolves the auction immediately at the buy-now price.
func (it *Item) ExecuteBuyNow(now time.Time) error {
	if it.Status == StatusSoldByBuyNow {
		return ErrAlreadySold
	}
	if it.Status != StatusActive {
		return ErrNotActive
	}
	if it.BuyNowPolicyBlock {
		return ErrBuyNowDisabled
	}
	if !it.BuyNowEnabled || it.BuyNowPriceCents <= 0 {
		return ErrBuyNowNotEnabled
	}
	it.Status = StatusSoldByBuyNow
	it.CurrentPriceCents = it.BuyNowPriceCents
	it.UpdatedAt = now
	return nil
}

// RecoverFromBuyNowFailure reopens a provisionally-sold auction whose buy-now
// payment fell through. The current price falls back to fallbackPriceCents
// (the pre-buy-now winning bid, or the start price when there was none). The
// end time is only extended when it has already passed; an auction with
// healthy remaining time keeps its schedule. Once the recovery counter
// reaches the policy maximum, buy-now is disabled for good.
func (it *Item) RecoverFromBuyNowFailure(fallbackPriceCents int64, now time.Time, p RecoveryPolicy) (extended bool, err error) {
	if it.Status != StatusSoldByBuyNow {
		return false, ErrRecoveryFromNonSold
	}
	it.Status = StatusActive
	if fallbackPriceCents < it.StartPriceCents {
		fallbackPriceCents = it.StartPriceCents
	}
	it.CurrentPriceCents = fallbackPriceCents
	if !it.EndTime.After(now) {
		it.EndTime = now.Add(p.Extension)
		it.ExtensionCount++
		extended = true
	}
	it.RecoveryCount++
	if it.RecoveryCount >= p.MaxRecoveryCount {
		it.BuyNowPolicyBlock = true
	}
	it.UpdatedAt = now
	return extended, nil
}

// Cancel withdraws a listing. Allowed while SCHEDULED, or while ACTIVE with
// no bids placed yet.
func (it *Item) Cancel(now time.Time) error {
	switch it.Status {
	case StatusScheduled:
	case StatusActive:
		if it.BidCount > 0 {
			return IllegalTransition(it.Status, StatusCancelled)
		}
	default:
		return IllegalTransition(it.Status, StatusCancelled)
	}
	it.Status = StatusCancelled
	it.UpdatedAt = now
	return nil
}

// ListingUpdate carries the seller-editable fields. Nil pointers mean
// "leave unchanged".
type ListingUpdate struct {
	Title            *string
	Description      *string
	BuyNowPriceCents *int64
	BuyNowEnabled    *bool
}

// ApplyUpdate mutates the editable fields. Editing is rejected once the
// auction is resolved (ENDED, SOLD_BY_BUY_NOW or CANCELLED).
func (it *Item) ApplyUpdate(u ListingUpdate, now time.Time) error {
	if it.Status != StatusScheduled && it.Status != StatusActive {
		return ErrIllegalTransition
	}
	// validate before mutating anything so a rejected update applies nothing
	if u.BuyNowEnabled != nil && *u.BuyNowEnabled && it.BuyNowPolicyBlock {
		return ErrBuyNowDisabled
	}
	if u.Title != nil {
		it.Title = *u.Title
	}
	if u.Description != nil {
		it.Description = *u.Description
	}
	if u.BuyNowPriceCents != nil {
		it.BuyNowPriceCents = *u.BuyNowPriceCents
	}
	if u.BuyNowEnabled != nil {
		it.BuyNowEnabled = *u.BuyNowEnabled
	}
	it.UpdatedAt = now
	return nil
}
