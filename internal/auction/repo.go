package auction

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const itemColumns = `id, seller_id, title, description,
	start_price_cents, current_price_cents, bid_unit_cents,
	buy_now_price_cents, buy_now_enabled, buy_now_policy_block,
	start_time, end_time, extension_count, recovery_count,
	status, bid_count, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(
		&it.ID, &it.SellerID, &it.Title, &it.Description,
		&it.StartPriceCents, &it.CurrentPriceCents, &it.BidUnitCents,
		&it.BuyNowPriceCents, &it.BuyNowEnabled, &it.BuyNowPolicyBlock,
		&it.StartTime, &it.EndTime, &it.ExtensionCount, &it.RecoveryCount,
		&it.Status, &it.BidCount, &it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Repo) Create(ctx context.Context, it *Item) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO auction_items(seller_id, title, description,
			start_price_cents, current_price_cents, bid_unit_cents,
			buy_now_price_cents, buy_now_enabled, buy_now_policy_block,
			start_time, end_time, extension_count, recovery_count,
			status, bid_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id`,
		it.SellerID, it.Title, it.Description,
		it.StartPriceCents, it.CurrentPriceCents, it.BidUnitCents,
		it.BuyNowPriceCents, it.BuyNowEnabled, it.BuyNowPolicyBlock,
		it.StartTime, it.EndTime, it.ExtensionCount, it.RecoveryCount,
		it.Status, it.BidCount, it.CreatedAt, it.UpdatedAt,
	).Scan(&it.ID)
}

func (r *Repo) Get(ctx context.Context, id int64) (*Item, error) {
	return scanItem(r.DB.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM auction_items WHERE id=$1`, id))
}

// GetForUpdateTx re-reads the auction row under FOR UPDATE. All bid, buy-now,
// recovery and close mutations go through this lock; concurrent operations on
// the same auction serialize here, different auctions never contend.
func (r *Repo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (*Item, error) {
	return scanItem(tx.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM auction_items WHERE id=$1 FOR UPDATE`, id))
}

// SaveTx writes back every mutable field of a locked row.
func (r *Repo) SaveTx(ctx context.Context, tx pgx.Tx, it *Item) error {
	ct, err := tx.Exec(ctx, `
		UPDATE auction_items SET
			title=$2, description=$3,
			current_price_cents=$4, buy_now_price_cents=$5,
			buy_now_enabled=$6, buy_now_policy_block=$7,
			end_time=$8, extension_count=$9, recovery_count=$10,
			status=$11, bid_count=$12, updated_at=$13
		WHERE id=$1`,
		it.ID, it.Title, it.Description,
		it.CurrentPriceCents, it.BuyNowPriceCents,
		it.BuyNowEnabled, it.BuyNowPolicyBlock,
		it.EndTime, it.ExtensionCount, it.RecoveryCount,
		it.Status, it.BidCount, it.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// ListDueToStart returns SCHEDULED auctions whose start time has passed.
func (r *Repo) ListDueToStart(ctx context.Context, now time.Time) ([]int64, error) {
	return r.listIDs(ctx, `
		SELECT id FROM auction_items
		WHERE status=$1 AND start_time <= $2
		ORDER BY start_time`, StatusScheduled, now)
}

// ListExpired returns ACTIVE auctions whose end time has passed.
func (r *Repo) ListExpired(ctx context.Context, now time.Time) ([]int64, error) {
	return r.listIDs(ctx, `
		SELECT id FROM auction_items
		WHERE status=$1 AND end_time <= $2
		ORDER BY end_time`, StatusActive, now)
}

// ListStartingWithin returns SCHEDULED auctions starting inside the lookahead
// window, for the starting-soon advisory.
func (r *Repo) ListStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*Item, error) {
	return r.listItems(ctx, `
		SELECT `+itemColumns+` FROM auction_items
		WHERE status=$1 AND start_time > $2 AND start_time <= $3
		ORDER BY start_time`, StatusScheduled, now, now.Add(window))
}

// ListEndingWithin returns ACTIVE auctions ending inside the lookahead window.
func (r *Repo) ListEndingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*Item, error) {
	return r.listItems(ctx, `
		SELECT `+itemColumns+` FROM auction_items
		WHERE status=$1 AND end_time > $2 AND end_time <= $3
		ORDER BY end_time`, StatusActive, now, now.Add(window))
}

func (r *Repo) listIDs(ctx context.Context, q string, args ...any) ([]int64, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repo) listItems(ctx context.Context, q string, args ...any) ([]*Item, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
