package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/unibazaar/marketplace/internal/domain"
)

// BidRepository handles all database operations for Bids.
//
// Each bid row is the unit of atomicity: every mutation is a single
// conditional UPDATE matching identity plus expected prior state. There are no
// cross-table transactions here; cascades arrive via the event bus.
type BidRepository struct {
	db *sqlx.DB
}

// NewBidRepository creates a new BidRepository.
func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Create inserts a new bid row.
func (r *BidRepository) Create(ctx context.Context, b *domain.Bid) error {
	query := `
		INSERT INTO bids (id, listing_id, bidder_id, amount, status, placed_at)
		VALUES (:id, :listing_id, :bidder_id, :amount, :status, :placed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, b); err != nil {
		return fmt.Errorf("bid_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a bid by its primary key.
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	var b domain.Bid
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bids WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBidNotFound
		}
		return nil, fmt.Errorf("bid_repo.GetByID: %w", err)
	}
	return &b, nil
}

// GetByListing returns every bid ever placed on a listing, in placement order.
// Withdrawn bids stay visible; history is never rewritten.
func (r *BidRepository) GetByListing(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE listing_id = $1 ORDER BY placed_at ASC, id ASC`,
		listingID)
	if err != nil {
		return nil, fmt.Errorf("bid_repo.GetByListing: %w", err)
	}
	return bids, nil
}

// GetByBidder returns a user's bid history, newest first, paginated.
func (r *BidRepository) GetByBidder(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE bidder_id = $1 ORDER BY placed_at DESC LIMIT $2 OFFSET $3`,
		bidderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bid_repo.GetByBidder: %w", err)
	}
	return bids, nil
}

// GetCurrentHigh returns the current highest bid on a listing: the active bid
// with the maximum amount, ties broken by earliest placement. Returns
// (nil, nil) when the listing has no active bids. Always recomputed from the
// ledger, never cached.
func (r *BidRepository) GetCurrentHigh(ctx context.Context, listingID uuid.UUID) (*domain.Bid, error) {
	var b domain.Bid
	err := r.db.GetContext(ctx, &b, `
		SELECT * FROM bids
		WHERE listing_id = $1 AND status = 'active'
		ORDER BY amount DESC, placed_at ASC, id ASC
		LIMIT 1`,
		listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("bid_repo.GetCurrentHigh: %w", err)
	}
	return &b, nil
}

// Withdraw performs the single atomic conditional update
// {id, bidder_id, status='active'} → 'withdrawn'.
//
// When the update matches no row, a follow-up read reclassifies the miss into
// the most specific error: the bid does not exist (ErrBidNotFound), it belongs
// to someone else (ErrNotBidOwner), or it is already withdrawn
// (ErrBidAlreadyWithdrawn). A miss none of those explains is a logic defect
// and surfaces as ErrInvariantViolation — never as a silent not-found.
func (r *BidRepository) Withdraw(ctx context.Context, bidID, bidderID uuid.UUID, at time.Time) (*domain.Bid, error) {
	var b domain.Bid
	err := r.db.GetContext(ctx, &b, `
		UPDATE bids
		SET status = 'withdrawn', withdrawn_at = $1
		WHERE id = $2 AND bidder_id = $3 AND status = 'active'
		RETURNING *`,
		at, bidID, bidderID)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bid_repo.Withdraw: %w", err)
	}

	// Conditional update matched nothing: re-read to find out why.
	existing, readErr := r.GetByID(ctx, bidID)
	if readErr != nil {
		return nil, readErr // ErrBidNotFound or a wrapped storage error
	}
	reason := existing.ReclassifyWithdraw(bidderID)
	if errors.Is(reason, domain.ErrInvariantViolation) {
		return nil, fmt.Errorf("bid_repo.Withdraw: bid %s active and owned yet update matched 0 rows: %w",
			bidID, reason)
	}
	return nil, reason
}

// ClosedListingsWithActiveBids returns the ids of listings that reached a
// terminal status while still carrying active bids. The partial index on
// active bids keeps the join cheap. Feeds the periodic sweep that replays
// terminal cascades the event bus lost.
func (r *BidRepository) ClosedListingsWithActiveBids(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT b.listing_id
		FROM bids b
		JOIN listings l ON l.id = b.listing_id
		WHERE b.status = 'active' AND l.status <> 'active'`)
	if err != nil {
		return nil, fmt.Errorf("bid_repo.ClosedListingsWithActiveBids: %w", err)
	}
	return ids, nil
}

// WithdrawAllForListing transitions every still-active bid on a listing to
// withdrawn and returns the bids it touched. Safe to retry: bids already
// withdrawn no longer match the status guard, so a re-run is a no-op.
func (r *BidRepository) WithdrawAllForListing(ctx context.Context, listingID uuid.UUID, at time.Time) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := r.db.SelectContext(ctx, &bids, `
		UPDATE bids
		SET status = 'withdrawn', withdrawn_at = $1
		WHERE listing_id = $2 AND status = 'active'
		RETURNING *`,
		at, listingID)
	if err != nil {
		return nil, fmt.Errorf("bid_repo.WithdrawAllForListing: %w", err)
	}
	return bids, nil
}
