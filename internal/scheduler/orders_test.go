package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"code.cloudfoundry.org/lager/v3/lagertest"
	. "github.com/onsi/gomega"

	"github.com/ariefcatur/go-auction-engine.git/internal/orders"
)

type fakeOrderStore struct {
	pending map[orders.Type][]*orders.Order

	gotCutoff map[orders.Type]time.Time
}

func (f *fakeOrderStore) ListExpiredPending(_ context.Context, typ orders.Type, cutoff time.Time) ([]*orders.Order, error) {
	if f.gotCutoff == nil {
		f.gotCutoff = map[orders.Type]time.Time{}
	}
	f.gotCutoff[typ] = cutoff
	return f.pending[typ], nil
}

type fakeExpirer struct {
	mu      sync.Mutex
	expired []int64
	failOn  map[int64]error
}

func (f *fakeExpirer) ExpireOrder(_ context.Context, o *orders.Order) error {
	if err := f.failOn[o.ID]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, o.ID)
	return nil
}

func (f *fakeExpirer) Expired() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.expired...)
}

func newExpiryScheduler(store *fakeOrderStore, exp *fakeExpirer, clk *fakeclock.FakeClock) *OrderExpiryScheduler {
	return &OrderExpiryScheduler{
		Store:       store,
		Expirer:     exp,
		Clock:       clk,
		Interval:    time.Minute,
		BuyNowGrace: 10 * time.Minute,
		WinGrace:    24 * time.Hour,
		Logger:      lagertest.NewTestLogger("test"),
	}
}

func TestExpiryCutoffsPerOrderType(t *testing.T) {
	g := NewWithT(t)
	now := time.Now()
	clk := fakeclock.NewFakeClock(now)
	store := &fakeOrderStore{}
	s := newExpiryScheduler(store, &fakeExpirer{}, clk)

	s.Tick(context.Background(), lagertest.NewTestLogger("test"))

	g.Expect(store.gotCutoff[orders.TypeBuyNow]).To(Equal(now.Add(-10 * time.Minute)))
	g.Expect(store.gotCutoff[orders.TypeAuctionWin]).To(Equal(now.Add(-24 * time.Hour)))
}

func TestExpiryCancelsBothTypes(t *testing.T) {
	g := NewWithT(t)
	clk := fakeclock.NewFakeClock(time.Now())
	store := &fakeOrderStore{pending: map[orders.Type][]*orders.Order{
		orders.TypeBuyNow:     {{ID: 1, AuctionID: 10}, {ID: 2, AuctionID: 11}},
		orders.TypeAuctionWin: {{ID: 3, AuctionID: 12}},
	}}
	exp := &fakeExpirer{}
	s := newExpiryScheduler(store, exp, clk)

	s.Tick(context.Background(), lagertest.NewTestLogger("test"))

	g.Expect(exp.Expired()).To(Equal([]int64{1, 2, 3}))
}

func TestExpiryIsolatesFailures(t *testing.T) {
	g := NewWithT(t)
	clk := fakeclock.NewFakeClock(time.Now())
	store := &fakeOrderStore{pending: map[orders.Type][]*orders.Order{
		orders.TypeBuyNow: {{ID: 1, AuctionID: 10}, {ID: 2, AuctionID: 11}, {ID: 3, AuctionID: 12}},
	}}
	exp := &fakeExpirer{failOn: map[int64]error{2: errors.New("boom")}}
	s := newExpiryScheduler(store, exp, clk)

	s.Tick(context.Background(), lagertest.NewTestLogger("test"))

	g.Expect(exp.Expired()).To(Equal([]int64{1, 3}), "one failure never aborts the batch")
}

func TestExpiryRunTicksOnClock(t *testing.T) {
	g := NewWithT(t)
	clk := fakeclock.NewFakeClock(time.Now())
	store := &fakeOrderStore{pending: map[orders.Type][]*orders.Order{
		orders.TypeBuyNow: {{ID: 1, AuctionID: 10}},
	}}
	exp := &fakeExpirer{}
	s := newExpiryScheduler(store, exp, clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	clk.WaitForWatcherAndIncrement(time.Minute)
	g.Eventually(exp.Expired).Should(ContainElement(int64(1)))

	cancel()
	g.Eventually(done).Should(BeClosed())
}
