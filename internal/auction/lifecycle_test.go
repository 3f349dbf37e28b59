package auction

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

var (
	testPolicy = BidPolicy{
		ExtensionWindow: 5 * time.Minute,
		ExtensionLength: 3 * time.Minute,
	}
	testRecovery = RecoveryPolicy{
		Extension:        10 * time.Minute,
		MaxRecoveryCount: 3,
	}
)

func newTestItem(t *testing.T, now time.Time) *Item {
	t.Helper()
	it, err := NewItem(1, "vintage synth", "works fine", 10000, 1000, 50000, 1000,
		now, now.Add(time.Hour), now)
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	return it
}

func activeItem(t *testing.T, now time.Time) *Item {
	t.Helper()
	it := newTestItem(t, now)
	if err := it.Start(now); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return it
}

func TestNewItemValidation(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()

	_, err := NewItem(1, "x", "", 500, 100, 0, 1000, now, now.Add(time.Hour), now)
	g.Expect(err).To(MatchError(ErrPriceBelowMinimum))

	_, err = NewItem(1, "x", "", 10000, 100, 0, 1000, now.Add(time.Hour), now, now)
	g.Expect(err).To(MatchError(ErrInvalidTimeRange))

	_, err = NewItem(1, "x", "", 10000, 100, 0, 1000, now, now, now)
	g.Expect(err).To(MatchError(ErrInvalidTimeRange), "end == start is rejected")

	it, err := NewItem(1, "x", "", 10000, 1000, 0, 1000, now, now.Add(time.Hour), now)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(it.Status).To(Equal(StatusScheduled))
	g.Expect(it.CurrentPriceCents).To(Equal(int64(10000)))
	g.Expect(it.BuyNowEnabled).To(BeFalse(), "no buy-now price set")
}

func TestStartAndCloseTransitions(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()
	it := newTestItem(t, now)

	g.Expect(it.Start(now)).To(Succeed())
	g.Expect(it.Status).To(Equal(StatusActive))

	g.Expect(it.Start(now)).NotTo(Succeed(), "starting twice is illegal")

	g.Expect(it.Close(now)).To(Succeed())
	g.Expect(it.Status).To(Equal(StatusEnded))

	// closing again is rejected, so close signals can never double-emit
	err := it.Close(now)
	var de *Error
	g.Expect(errors.As(err, &de)).To(BeTrue())
	g.Expect(de.Code).To(Equal(ErrIllegalTransition.Code))
}

func TestApplyBidValidation(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()

	scheduled := newTestItem(t, now)
	_, err := scheduled.ApplyBid(2, 11000, now, testPolicy)
	g.Expect(err).To(MatchError(ErrNotActive))

	it := activeItem(t, now)

	_, err = it.ApplyBid(it.SellerID, 11000, now, testPolicy)
	g.Expect(err).To(MatchError(ErrSelfBidding))

	// current 10000, unit 1000 -> anything below 11000 is too low
	_, err = it.ApplyBid(2, 10999, now, testPolicy)
	g.Expect(err).To(MatchError(ErrBidTooLow))
	g.Expect(it.BidCount).To(Equal(0), "rejected bid leaves no trace")

	_, err = it.ApplyBid(2, 11000, now, testPolicy)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(it.CurrentPriceCents).To(Equal(int64(11000)))
	g.Expect(it.BidCount).To(Equal(1))

	// 11500 < 11000+1000
	_, err = it.ApplyBid(3, 11500, now, testPolicy)
	g.Expect(err).To(MatchError(ErrBidTooLow))

	_, err = it.ApplyBid(3, 12000, now, testPolicy)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(it.CurrentPriceCents).To(Equal(int64(12000)))
	g.Expect(it.BidCount).To(Equal(2))
}

func TestApplyBidAutoExtension(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()
	it := activeItem(t, now)

	// 30 minutes remain: outside the window, no extension
	extended, err := it.ApplyBid(2, 11000, it.EndTime.Add(-30*time.Minute), testPolicy)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(extended).To(BeFalse())
	g.Expect(it.ExtensionCount).To(Equal(0))

	// 4 minutes remain: inside the 5-minute window
	end := it.EndTime
	extended, err = it.ApplyBid(3, 12000, end.Add(-4*time.Minute), testPolicy)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(extended).To(BeTrue())
	g.Expect(it.EndTime).To(Equal(end.Add(3 * time.Minute)))
	g.Expect(it.ExtensionCount).To(Equal(1))
}

func TestExecuteBuyNow(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()

	scheduled := newTestItem(t, now)
	g.Expect(scheduled.ExecuteBuyNow(now)).To(MatchError(ErrNotActive))

	it := activeItem(t, now)
	g.Expect(it.ExecuteBuyNow(now)).To(Succeed())
	g.Expect(it.Status).To(Equal(StatusSoldByBuyNow))
	g.Expect(it.CurrentPriceCents).To(Equal(int64(50000)))

	g.Expect(it.ExecuteBuyNow(now)).To(MatchError(ErrAlreadySold))

	noButton := activeItem(t, now)
	noButton.BuyNowEnabled = false
	g.Expect(noButton.ExecuteBuyNow(now)).To(MatchError(ErrBuyNowNotEnabled))

	blocked := activeItem(t, now)
	blocked.BuyNowPolicyBlock = true
	g.Expect(blocked.ExecuteBuyNow(now)).To(MatchError(ErrBuyNowDisabled))
}

func TestRecoveryRequiresSoldState(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()
	it := activeItem(t, now)

	_, err := it.RecoverFromBuyNowFailure(it.StartPriceCents, now, testRecovery)
	g.Expect(err).To(MatchError(ErrRecoveryFromNonSold))
}

func TestRecoveryExtensionIsConditional(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()

	// end time still in the future: schedule untouched
	it := activeItem(t, now)
	_, err := it.ApplyBid(2, 11000, now, testPolicy)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(it.ExecuteBuyNow(now)).To(Succeed())
	end := it.EndTime
	extended, err := it.RecoverFromBuyNowFailure(11000, now, testRecovery)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(extended).To(BeFalse())
	g.Expect(it.Status).To(Equal(StatusActive))
	g.Expect(it.CurrentPriceCents).To(Equal(int64(11000)), "price falls back to the winning bid")
	g.Expect(it.EndTime).To(Equal(end))
	g.Expect(it.ExtensionCount).To(Equal(0))
	g.Expect(it.RecoveryCount).To(Equal(1))

	// end time already passed when the failure lands: extend from now
	late := activeItem(t, now)
	g.Expect(late.ExecuteBuyNow(now)).To(Succeed())
	failureAt := late.EndTime.Add(time.Minute)
	extended, err = late.RecoverFromBuyNowFailure(late.StartPriceCents, failureAt, testRecovery)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(extended).To(BeTrue())
	g.Expect(late.EndTime).To(Equal(failureAt.Add(10 * time.Minute)))
	g.Expect(late.CurrentPriceCents).To(Equal(late.StartPriceCents), "no bids: price falls back to start")
	g.Expect(late.RecoveryCount).To(Equal(1))
}

func TestRecoveryCircuitBreaker(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()
	it := activeItem(t, now)

	for i := 1; i <= testRecovery.MaxRecoveryCount; i++ {
		g.Expect(it.ExecuteBuyNow(now)).To(Succeed(), "round %d", i)
		_, err := it.RecoverFromBuyNowFailure(it.StartPriceCents, now, testRecovery)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(it.RecoveryCount).To(Equal(i))
	}

	g.Expect(it.BuyNowPolicyBlock).To(BeTrue(), "breaker trips on the last allowed recovery")
	g.Expect(it.Status).To(Equal(StatusActive), "auction reopens for ordinary bidding")

	// buy-now stays off for good
	g.Expect(it.ExecuteBuyNow(now)).To(MatchError(ErrBuyNowDisabled))

	// a seller edit re-enabling it is refused outright
	on := true
	title := "still for sale"
	err := it.ApplyUpdate(ListingUpdate{Title: &title, BuyNowEnabled: &on}, now)
	g.Expect(err).To(MatchError(ErrBuyNowDisabled))
	g.Expect(it.Title).NotTo(Equal(title), "rejected update applies nothing")

	// switching it off is still allowed
	off := false
	g.Expect(it.ApplyUpdate(ListingUpdate{BuyNowEnabled: &off}, now)).To(Succeed())
	g.Expect(it.ExecuteBuyNow(now)).To(MatchError(ErrBuyNowDisabled))
}

func TestCancelRules(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()

	it := newTestItem(t, now)
	g.Expect(it.Cancel(now)).To(Succeed(), "SCHEDULED cancels freely")
	g.Expect(it.Status).To(Equal(StatusCancelled))

	noBids := activeItem(t, now)
	g.Expect(noBids.Cancel(now)).To(Succeed(), "ACTIVE with zero bids cancels")

	withBids := activeItem(t, now)
	_, err := withBids.ApplyBid(2, 11000, now, testPolicy)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(withBids.Cancel(now)).NotTo(Succeed(), "bids pin the auction open")

	ended := activeItem(t, now)
	g.Expect(ended.Close(now)).To(Succeed())
	g.Expect(ended.Cancel(now)).NotTo(Succeed())
}

func TestApplyUpdateRules(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()

	title := "updated"
	it := newTestItem(t, now)
	g.Expect(it.ApplyUpdate(ListingUpdate{Title: &title}, now)).To(Succeed())
	g.Expect(it.Title).To(Equal("updated"))

	g.Expect(it.Start(now)).To(Succeed())
	g.Expect(it.ApplyUpdate(ListingUpdate{Title: &title}, now)).To(Succeed())

	g.Expect(it.Close(now)).To(Succeed())
	g.Expect(it.ApplyUpdate(ListingUpdate{Title: &title}, now)).To(MatchError(ErrIllegalTransition))
}

// TestConcurrentBidsSerialize is the in-memory rendition of the row-lock
// protocol: N goroutines race on one item, a per-item mutex serializes them
// the way FOR UPDATE does, and the invariants must hold at the end.
func TestConcurrentBidsSerialize(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()
	it := activeItem(t, now)

	const n = 100
	var (
		mu       sync.Mutex
		accepted int64
		wg       sync.WaitGroup
	)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(bidder int64) {
			defer wg.Done()
			amount := int64(10000 + rand.Intn(100)*1000)
			mu.Lock()
			defer mu.Unlock()
			if _, err := it.ApplyBid(bidder, amount, now, testPolicy); err == nil {
				accepted++
				if amount != it.CurrentPriceCents {
					t.Errorf("accepted bid %d but price is %d", amount, it.CurrentPriceCents)
				}
			}
		}(int64(i + 2))
	}
	wg.Wait()

	g.Expect(int64(it.BidCount)).To(Equal(accepted))
	g.Expect(it.CurrentPriceCents).To(BeNumerically(">=", it.StartPriceCents))
}

func TestMonotonicPrice(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()
	it := activeItem(t, now)

	last := it.CurrentPriceCents
	for i := 0; i < 50; i++ {
		amount := int64(10000 + rand.Intn(200)*500)
		_, err := it.ApplyBid(int64(i+2), amount, now, testPolicy)
		if err != nil {
			g.Expect(err).To(MatchError(ErrBidTooLow))
			continue
		}
		g.Expect(amount).To(BeNumerically(">=", last+it.BidUnitCents))
		g.Expect(it.CurrentPriceCents).To(BeNumerically(">=", last))
		last = it.CurrentPriceCents
	}
}
