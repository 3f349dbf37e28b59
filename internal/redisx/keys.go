package redisx

import "time"

const (
	// Current-price cache: auction:price:{auction_id} -> {"current_price_cents":..,"status":".."}
	KeyAuctionPrice = "auction:price:%d"

	// View counter: auction:views:{auction_id} -> int
	KeyViewCount = "auction:views:%d"

	// Watchlist set: auction:watchers:{auction_id} -> set of user ids
	KeyWatchers = "auction:watchers:%d"

	// One-shot advisory markers so starting/ending-soon alerts fire once:
	// auction:notified:{phase}:{auction_id} ("start" | "end")
	KeyNotified = "auction:notified:%s:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLPriceCache = 5 * time.Minute
	TTLNotified   = 48 * time.Hour
	TTLDedup      = 48 * time.Hour
)
