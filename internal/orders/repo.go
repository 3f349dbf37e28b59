package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoActiveOrder = errors.New("no active order for auction")

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, external_id, auction_id, winner_id, seller_id,
	amount_cents, order_type, status, created_at, paid_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ExternalID, &o.AuctionID, &o.WinnerID, &o.SellerID,
		&o.AmountCents, &o.Type, &o.Status, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateTx inserts a PENDING order inside the caller's locked transaction.
// The partial unique index on (auction_id) WHERE status <> 'CANCELLED'
// enforces at most one live order per auction; a conflict surfaces as an
// error so the critical section rolls back whole.
func (r *Repo) CreateTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	return tx.QueryRow(ctx, `
		INSERT INTO orders(external_id, auction_id, winner_id, seller_id,
			amount_cents, order_type, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		o.ExternalID, o.AuctionID, o.WinnerID, o.SellerID,
		o.AmountCents, o.Type, o.Status, o.CreatedAt,
	).Scan(&o.ID)
}

func (r *Repo) GetByExternalID(ctx context.Context, externalID string) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE external_id=$1`, externalID))
}

// ActiveForAuction returns the single non-cancelled order for an auction.
func (r *Repo) ActiveForAuction(ctx context.Context, auctionID int64) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE auction_id=$1 AND status <> $2`, auctionID, StatusCancelled))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveOrder
	}
	return o, err
}

// CancelTx marks a PENDING order cancelled; the guard on status keeps a
// concurrent payment completion from being overwritten.
func (r *Repo) CancelTx(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2 WHERE id=$1 AND status=$3`,
		id, StatusCancelled, StatusPending)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkPaid completes a PENDING order when the payment flow confirms.
func (r *Repo) MarkPaid(ctx context.Context, id int64, paidAt time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, paid_at=$3 WHERE id=$1 AND status=$4`,
		id, StatusCompleted, paidAt, StatusPending)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// ListExpiredPending returns PENDING orders of one type created before the
// cutoff, oldest first. The expiry scheduler cancels them batch-wise.
func (r *Repo) ListExpiredPending(ctx context.Context, typ Type, cutoff time.Time) ([]*Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status=$1 AND order_type=$2 AND created_at <= $3
		ORDER BY created_at`, StatusPending, typ, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
