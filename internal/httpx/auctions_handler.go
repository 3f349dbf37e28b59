package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-auction-engine.git/internal/auction"
	"github.com/ariefcatur/go-auction-engine.git/internal/bidding"
	"github.com/ariefcatur/go-auction-engine.git/internal/orders"
	"github.com/ariefcatur/go-auction-engine.git/internal/redisx"
)

type AuctionsHandler struct {
	Svc      *bidding.Service
	Auctions *auction.Repo
	Bids     *auction.BidRepo
	Orders   *orders.Repo
	Redis    *redis.Client
}

func (h *AuctionsHandler) Register(r *chi.Mux) {
	r.Post("/auctions", h.create)
	r.Get("/auctions/{id}", h.get)
	r.Get("/auctions/{id}/price", h.getPrice)
	r.Patch("/auctions/{id}", h.update)
	r.Post("/auctions/{id}/cancel", h.cancel)
	r.Post("/auctions/{id}/bids", h.placeBid)
	r.Get("/auctions/{id}/bids", h.bidHistory)
	r.Delete("/auctions/{id}/bids/{bidID}", h.cancelBid)
	r.Post("/auctions/{id}/buy-now", h.buyNow)
	r.Put("/auctions/{id}/watch", h.watch)
	r.Delete("/auctions/{id}/watch", h.unwatch)
	r.Post("/orders/{externalID}/paid", h.orderPaid)
}

type createAuctionReq struct {
	SellerID         int64     `json:"seller_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	StartPriceCents  int64     `json:"start_price_cents"`
	BidUnitCents     int64     `json:"bid_unit_cents"`
	BuyNowPriceCents int64     `json:"buy_now_price_cents"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
}

type auctionResp struct {
	ID                int64     `json:"id"`
	SellerID          int64     `json:"seller_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	StartPriceCents   int64     `json:"start_price_cents"`
	CurrentPriceCents int64     `json:"current_price_cents"`
	BidUnitCents      int64     `json:"bid_unit_cents"`
	BuyNowPriceCents  int64     `json:"buy_now_price_cents,omitempty"`
	BuyNowEnabled     bool      `json:"buy_now_enabled"`
	BuyNowDisabled    bool      `json:"buy_now_disabled_by_policy"`
	Status            string    `json:"status"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	ExtensionCount    int       `json:"extension_count"`
	BidCount          int       `json:"bid_count"`
	ViewCount         int64     `json:"view_count"`
	WatchCount        int64     `json:"watch_count"`
}

func toAuctionResp(it *auction.Item) auctionResp {
	return auctionResp{
		ID:                it.ID,
		SellerID:          it.SellerID,
		Title:             it.Title,
		Description:       it.Description,
		StartPriceCents:   it.StartPriceCents,
		CurrentPriceCents: it.CurrentPriceCents,
		BidUnitCents:      it.BidUnitCents,
		BuyNowPriceCents:  it.BuyNowPriceCents,
		BuyNowEnabled:     it.BuyNowEnabled,
		BuyNowDisabled:    it.BuyNowPolicyBlock,
		Status:            string(it.Status),
		StartTime:         it.StartTime,
		EndTime:           it.EndTime,
		ExtensionCount:    it.ExtensionCount,
		BidCount:          it.BidCount,
		ViewCount:         it.ViewCount,
		WatchCount:        it.WatchCount,
	}
}

func (h *AuctionsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAuctionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	if req.SellerID == 0 || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Svc.Create(ctx, bidding.CreateParams{
		SellerID:         req.SellerID,
		Title:            req.Title,
		Description:      req.Description,
		StartPriceCents:  req.StartPriceCents,
		BidUnitCents:     req.BidUnitCents,
		BuyNowPriceCents: req.BuyNowPriceCents,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuctionResp(it))
}

func (h *AuctionsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it, err := h.Auctions.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	// counters live in redis; best effort on read
	if views, err := redisx.IncrViews(ctx, h.Redis, id); err == nil {
		it.ViewCount = views
	}
	if watchers, err := redisx.WatcherCount(ctx, h.Redis, id); err == nil {
		it.WatchCount = watchers
	}
	writeJSON(w, http.StatusOK, toAuctionResp(it))
}

// getPrice serves the hot read path from the redis cache with DB fallback.
func (h *AuctionsHandler) getPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyAuctionPrice, id)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	it, err := h.Auctions.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	body := fmt.Sprintf(`{"current_price_cents":%d,"status":%q}`, it.CurrentPriceCents, it.Status)
	_ = h.Redis.Set(ctx, key, body, redisx.TTLPriceCache).Err()
	writeJSON(w, http.StatusOK, json.RawMessage(body))
}

type updateAuctionReq struct {
	SellerID         int64   `json:"seller_id"`
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	BuyNowPriceCents *int64  `json:"buy_now_price_cents"`
	BuyNowEnabled    *bool   `json:"buy_now_enabled"`
}

func (h *AuctionsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateAuctionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Svc.UpdateListing(ctx, id, req.SellerID, auction.ListingUpdate{
		Title:            req.Title,
		Description:      req.Description,
		BuyNowPriceCents: req.BuyNowPriceCents,
		BuyNowEnabled:    req.BuyNowEnabled,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuctionResp(it))
}

type sellerReq struct {
	SellerID int64 `json:"seller_id"`
}

func (h *AuctionsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req sellerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.CancelAuction(ctx, id, req.SellerID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(auction.StatusCancelled)})
}

type placeBidReq struct {
	BidderID    int64 `json:"bidder_id"`
	AmountCents int64 `json:"amount_cents"`
}

type bidResp struct {
	BidID       int64     `json:"bid_id"`
	AuctionID   int64     `json:"auction_id"`
	BidderID    int64     `json:"bidder_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	IsWinning   bool      `json:"is_winning"`
	CreatedAt   time.Time `json:"created_at"`
}

func toBidResp(b *auction.Bid) bidResp {
	return bidResp{
		BidID:       b.ID,
		AuctionID:   b.AuctionID,
		BidderID:    b.BidderID,
		AmountCents: b.AmountCents,
		Status:      string(b.Status),
		IsWinning:   b.IsWinning,
		CreatedAt:   b.CreatedAt,
	}
}

func (h *AuctionsHandler) placeBid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req placeBidReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	if req.BidderID == 0 || req.AmountCents <= 0 {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "missing fields"})
		return
	}
	// callers waiting on the row lock time out here rather than queueing up
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.Svc.PlaceBid(ctx, id, req.BidderID, req.AmountCents)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBidResp(b))
}

func (h *AuctionsHandler) bidHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	bids, err := h.Bids.History(ctx, id, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]bidResp, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResp(b))
	}
	writeJSON(w, http.StatusOK, out)
}

type cancelBidReq struct {
	BidderID int64 `json:"bidder_id"`
}

func (h *AuctionsHandler) cancelBid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	bidID, ok := pathID(w, r, "bidID")
	if !ok {
		return
	}
	var req cancelBidReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.CancelBid(ctx, id, bidID, req.BidderID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(auction.BidStatusCancelled)})
}

type buyNowReq struct {
	BuyerID int64 `json:"buyer_id"`
}

type orderResp struct {
	OrderID     string    `json:"order_id"`
	AuctionID   int64     `json:"auction_id"`
	WinnerID    int64     `json:"winner_id"`
	SellerID    int64     `json:"seller_id"`
	AmountCents int64     `json:"amount_cents"`
	OrderType   string    `json:"order_type"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *AuctionsHandler) buyNow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req buyNowReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	if req.BuyerID == 0 {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "missing fields"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.ExecuteBuyNow(ctx, id, req.BuyerID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResp{
		OrderID:     o.ExternalID,
		AuctionID:   o.AuctionID,
		WinnerID:    o.WinnerID,
		SellerID:    o.SellerID,
		AmountCents: o.AmountCents,
		OrderType:   string(o.Type),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
	})
}

type watchReq struct {
	UserID int64 `json:"user_id"`
}

func (h *AuctionsHandler) watch(w http.ResponseWriter, r *http.Request) {
	h.watchToggle(w, r, redisx.Watch)
}

func (h *AuctionsHandler) unwatch(w http.ResponseWriter, r *http.Request) {
	h.watchToggle(w, r, redisx.Unwatch)
}

func (h *AuctionsHandler) watchToggle(w http.ResponseWriter, r *http.Request, op func(context.Context, *redis.Client, int64, int64) error) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req watchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "missing user_id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := op(ctx, h.Redis, id, req.UserID); err != nil {
		writeErr(w, err)
		return
	}
	n, _ := redisx.WatcherCount(ctx, h.Redis, id)
	writeJSON(w, http.StatusOK, map[string]int64{"watch_count": n})
}

// orderPaid is the payment flow's confirmation callback for a PENDING order.
func (h *AuctionsHandler) orderPaid(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	if externalID == "" {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "missing order id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.GetByExternalID(ctx, externalID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errBody{Code: "NOT_FOUND", Error: "order not found"})
		return
	}
	okPaid, err := h.Orders.MarkPaid(ctx, o.ID, time.Now().UTC())
	if err != nil {
		writeErr(w, err)
		return
	}
	if !okPaid {
		writeJSON(w, http.StatusConflict, errBody{Code: "ILLEGAL_STATE_TRANSITION", Error: "order is not pending"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(orders.StatusCompleted)})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v := chi.URLParam(r, name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errBody{Code: "BAD_REQUEST", Error: "invalid " + name})
		return 0, false
	}
	return id, true
}
