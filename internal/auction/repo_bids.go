package auction

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BidRepo struct{ DB *pgxpool.Pool }

const bidColumns = `id, auction_id, bidder_id, amount_cents, status, is_winning, created_at`

func scanBid(row pgx.Row) (*Bid, error) {
	var b Bid
	err := row.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.AmountCents, &b.Status, &b.IsWinning, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertTx appends a bid row. Called only while the parent auction row lock
// is held, so bids need no locking of their own.
func (r *BidRepo) InsertTx(ctx context.Context, tx pgx.Tx, b *Bid) error {
	return tx.QueryRow(ctx, `
		INSERT INTO bids(auction_id, bidder_id, amount_cents, status, is_winning, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id`,
		b.AuctionID, b.BidderID, b.AmountCents, b.Status, b.IsWinning, b.CreatedAt,
	).Scan(&b.ID)
}

// WinningTx returns the current winning bid, nil when there is none.
func (r *BidRepo) WinningTx(ctx context.Context, tx pgx.Tx, auctionID int64) (*Bid, error) {
	return scanBid(tx.QueryRow(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id=$1 AND is_winning`, auctionID))
}

// ClearWinnerTx flips the previous winning bid off before the new one lands.
func (r *BidRepo) ClearWinnerTx(ctx context.Context, tx pgx.Tx, auctionID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE bids SET is_winning=false WHERE auction_id=$1 AND is_winning`, auctionID)
	return err
}

// ResolveTx settles all still-ACTIVE bids at auction close: the winning bid
// becomes SUCCESS, every other one FAILED.
func (r *BidRepo) ResolveTx(ctx context.Context, tx pgx.Tx, auctionID int64) (winner *Bid, err error) {
	winner, err = r.WinningTx(ctx, tx, auctionID)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE bids SET status=$2 WHERE id=$1`, winner.ID, BidStatusSuccess); err != nil {
			return nil, err
		}
		winner.Status = BidStatusSuccess
	}
	if _, err := tx.Exec(ctx, `
		UPDATE bids SET status=$2
		WHERE auction_id=$1 AND status=$3 AND NOT is_winning`,
		auctionID, BidStatusFailed, BidStatusActive); err != nil {
		return nil, err
	}
	return winner, nil
}

func (r *BidRepo) Get(ctx context.Context, id int64) (*Bid, error) {
	b, err := scanBid(r.DB.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	return b, nil
}

// CancelTx withdraws a bid that is still ACTIVE and not currently winning.
func (r *BidRepo) CancelTx(ctx context.Context, tx pgx.Tx, id int64) (*Bid, error) {
	b, err := scanBid(tx.QueryRow(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	if b.Status != BidStatusActive || b.IsWinning {
		return nil, ErrBidNotCancelable
	}
	if _, err := tx.Exec(ctx,
		`UPDATE bids SET status=$2 WHERE id=$1`, id, BidStatusCancelled); err != nil {
		return nil, err
	}
	b.Status = BidStatusCancelled
	return b, nil
}

// History lists an auction's bids, newest first.
func (r *BidRepo) History(ctx context.Context, auctionID int64, limit int) ([]*Bid, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE auction_id=$1 ORDER BY id DESC LIMIT $2`, auctionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
