package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// IncrViews bumps the view counter for an auction and returns the new value.
func IncrViews(ctx context.Context, rdb *redis.Client, auctionID int64) (int64, error) {
	return rdb.Incr(ctx, fmt.Sprintf(KeyViewCount, auctionID)).Result()
}

// Watch adds a user to an auction's watchlist set; Unwatch removes them.
func Watch(ctx context.Context, rdb *redis.Client, auctionID, userID int64) error {
	return rdb.SAdd(ctx, fmt.Sprintf(KeyWatchers, auctionID), userID).Err()
}

func Unwatch(ctx context.Context, rdb *redis.Client, auctionID, userID int64) error {
	return rdb.SRem(ctx, fmt.Sprintf(KeyWatchers, auctionID), userID).Err()
}

func WatcherCount(ctx context.Context, rdb *redis.Client, auctionID int64) (int64, error) {
	return rdb.SCard(ctx, fmt.Sprintf(KeyWatchers, auctionID)).Result()
}

// MarkNotified records that a starting/ending-soon advisory already fired for
// this auction. Returns false when the marker was already present.
func MarkNotified(ctx context.Context, rdb *redis.Client, phase string, auctionID int64) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyNotified, phase, auctionID), "1", TTLNotified).Result()
}
