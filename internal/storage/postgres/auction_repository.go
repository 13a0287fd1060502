// Package postgres implements the auction store on pgx. All state and bid
// writes are conditional on the auction's version column, which linearizes
// concurrent writers per auction without any global lock.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
)

const auctionColumns = `id, seller_id, title, state, start_time, end_time,
current_bid, highest_bidder_id, bid_count, ending_soon_notified, version,
created_at, updated_at`

type AuctionRepository struct {
	pool *pgxpool.Pool
}

func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

// Ping is the reachability probe the reconciler runs before each pass.
func (r *AuctionRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *AuctionRepository) CreateAuction(ctx context.Context, a domain.Auction) error {
	const stmt = `
INSERT INTO auctions (id, seller_id, title, state, start_time, end_time,
	current_bid, highest_bidder_id, bid_count, ending_soon_notified, version,
	created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, stmt,
		a.ID,
		a.SellerID,
		a.Title,
		a.State,
		a.StartTime,
		a.EndTime,
		a.CurrentBid.String(),
		nullableID(a.HighestBidderID),
		a.BidCount,
		a.EndingSoonNotified,
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create auction: %w", err)
	}
	return nil
}

func (r *AuctionRepository) GetAuction(ctx context.Context, id string) (domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Auction{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Auction{}, domain.ErrAuctionNotFound
		}
		return domain.Auction{}, fmt.Errorf("get auction: %w", err)
	}
	return a, nil
}

func (r *AuctionRepository) ListAuctions(ctx context.Context, state *domain.AuctionState) ([]domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions ORDER BY created_at ASC`
	args := []any{}
	if state != nil {
		query = `SELECT ` + auctionColumns + ` FROM auctions WHERE state = $1 ORDER BY created_at ASC`
		args = append(args, *state)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// DueForActivation returns scheduled auctions whose start time has passed.
func (r *AuctionRepository) DueForActivation(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	query := `
SELECT ` + auctionColumns + `
FROM auctions
WHERE state = 'scheduled' AND start_time <= $1
ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("due for activation: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// DueForExpiry returns active auctions whose end time has passed.
func (r *AuctionRepository) DueForExpiry(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	query := `
SELECT ` + auctionColumns + `
FROM auctions
WHERE state = 'active' AND end_time <= $1
ORDER BY end_time ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("due for expiry: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// DueForEndingSoon returns active, not-yet-warned auctions ending within
// (now, cutoff].
func (r *AuctionRepository) DueForEndingSoon(ctx context.Context, now, cutoff time.Time) ([]domain.Auction, error) {
	query := `
SELECT ` + auctionColumns + `
FROM auctions
WHERE state = 'active' AND NOT ending_soon_notified
  AND end_time > $1 AND end_time <= $2
ORDER BY end_time ASC`

	rows, err := r.pool.Query(ctx, query, now, cutoff)
	if err != nil {
		return nil, fmt.Errorf("due for ending soon: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// TransitionState writes a new lifecycle state conditional on the version
// read by the caller. A lost race yields ErrStaleVersion so reconciliation
// retries with fresh data on its next pass.
func (r *AuctionRepository) TransitionState(ctx context.Context, id string, expectedVersion int64, newState domain.AuctionState, now time.Time) (int64, error) {
	const stmt = `
UPDATE auctions
SET state = $3, version = version + 1, updated_at = $4
WHERE id = $1 AND version = $2
RETURNING version`

	var version int64
	err := r.pool.QueryRow(ctx, stmt, id, expectedVersion, newState, now).Scan(&version)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return 0, r.conflictOrMissing(ctx, id)
		}
		return 0, fmt.Errorf("transition state: %w", err)
	}
	return version, nil
}

// MarkEndingSoonNotified sets the one-shot warning flag, conditionally on
// the version so a racing end or bid invalidates the warning attempt.
func (r *AuctionRepository) MarkEndingSoonNotified(ctx context.Context, id string, expectedVersion int64) (int64, error) {
	const stmt = `
UPDATE auctions
SET ending_soon_notified = TRUE, version = version + 1
WHERE id = $1 AND version = $2
RETURNING version`

	var version int64
	err := r.pool.QueryRow(ctx, stmt, id, expectedVersion).Scan(&version)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return 0, r.conflictOrMissing(ctx, id)
		}
		return 0, fmt.Errorf("mark ending soon: %w", err)
	}
	return version, nil
}

// ApplyBid inserts the bid row and advances the auction's bid fields in one
// transaction, conditional on the version and on the auction still being
// active. Either both writes land or neither does.
func (r *AuctionRepository) ApplyBid(ctx context.Context, auctionID string, expectedVersion int64, bid domain.Bid) (int64, error) {
	var version int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const update = `
UPDATE auctions
SET current_bid = $3, highest_bidder_id = $4, bid_count = bid_count + 1,
	version = version + 1, updated_at = $5
WHERE id = $1 AND version = $2 AND state = 'active'
RETURNING version`

		err := tx.QueryRow(ctx, update,
			auctionID,
			expectedVersion,
			bid.Amount.String(),
			bid.BidderID,
			bid.PlacedAt,
		).Scan(&version)
		if err != nil {
			if err == pgx.ErrNoRows {
				return r.conflictOrMissing(ctx, auctionID)
			}
			return fmt.Errorf("apply bid update: %w", err)
		}

		const insert = `
INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at)
VALUES ($1, $2, $3, $4, $5)`

		if _, err := tx.Exec(ctx, insert,
			bid.ID,
			bid.AuctionID,
			bid.BidderID,
			bid.Amount.String(),
			bid.PlacedAt,
		); err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrAuctionNotFound
			}
			return fmt.Errorf("insert bid: %w", err)
		}
		return nil
	})
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, err
	}
	return version, nil
}

// ListBids returns an auction's accepted bids, newest first.
func (r *AuctionRepository) ListBids(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	const query = `
SELECT id, auction_id, bidder_id, amount, placed_at
FROM bids
WHERE auction_id = $1
ORDER BY placed_at DESC, amount DESC`

	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		var (
			b      domain.Bid
			amount string
		)
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &amount, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		b.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse bid amount: %w", err)
		}
		bids = append(bids, b)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate bids: %w", rows.Err())
	}
	return bids, nil
}

// conflictOrMissing distinguishes a lost optimistic-concurrency race from a
// row that does not exist, after a conditional update matched nothing.
func (r *AuctionRepository) conflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, id).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("check auction: %w", err)
	}
	if exists {
		return domain.ErrStaleVersion
	}
	return domain.ErrAuctionNotFound
}

func scanAuction(row pgx.Row) (domain.Auction, error) {
	var (
		a             domain.Auction
		state         string
		currentBid    string
		highestBidder *string
	)
	err := row.Scan(
		&a.ID,
		&a.SellerID,
		&a.Title,
		&state,
		&a.StartTime,
		&a.EndTime,
		&currentBid,
		&highestBidder,
		&a.BidCount,
		&a.EndingSoonNotified,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Auction{}, err
	}
	a.State = domain.AuctionState(state)
	if a.CurrentBid, err = decimal.NewFromString(currentBid); err != nil {
		return domain.Auction{}, fmt.Errorf("parse current bid: %w", err)
	}
	if highestBidder != nil {
		a.HighestBidderID = *highestBidder
	}
	return a, nil
}

func collectAuctions(rows pgx.Rows) ([]domain.Auction, error) {
	var auctions []domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate auctions: %w", rows.Err())
	}
	return auctions, nil
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
