package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/unibazaar/marketplace/internal/domain"
)

// ListingRepository handles all database operations for Listings.
//
// Status transitions are single conditional UPDATEs guarded on the current
// status, so each transition can be advanced at most once no matter how many
// writers race for it.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// listingRow mirrors the listings table with pq array wrappers for scanning.
type listingRow struct {
	ID            uuid.UUID       `db:"id"`
	SellerID      uuid.UUID       `db:"seller_id"`
	Title         string          `db:"title"`
	Description   string          `db:"description"`
	Price         decimal.Decimal `db:"price"`
	Tags          pq.StringArray  `db:"tags"`
	ImageURL      string          `db:"image_url"`
	Status        string          `db:"status"`
	AcceptedBidID *uuid.UUID      `db:"accepted_bid_id"`
	BidIDs        pq.StringArray  `db:"bid_ids"`
	CreatedAt     time.Time       `db:"created_at"`
	LastUpdatedAt time.Time       `db:"last_updated_at"`
}

func (row *listingRow) toDomain() (*domain.Listing, error) {
	bidIDs := make([]uuid.UUID, 0, len(row.BidIDs))
	for _, s := range row.BidIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("listing_repo: bad bid ref %q on %s: %w", s, row.ID, err)
		}
		bidIDs = append(bidIDs, id)
	}
	return &domain.Listing{
		ID:            row.ID,
		SellerID:      row.SellerID,
		Title:         row.Title,
		Description:   row.Description,
		Price:         row.Price,
		Tags:          []string(row.Tags),
		ImageURL:      row.ImageURL,
		Status:        domain.ListingStatus(row.Status),
		AcceptedBidID: row.AcceptedBidID,
		BidIDs:        bidIDs,
		CreatedAt:     row.CreatedAt,
		LastUpdatedAt: row.LastUpdatedAt,
	}, nil
}

// Create inserts a new listing row in active status with an empty bid log.
func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listings
			(id, seller_id, title, description, price, tags, image_url, status, created_at, last_updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.SellerID, l.Title, l.Description, l.Price,
		pq.Array(l.Tags), l.ImageURL, string(l.Status), l.CreatedAt, l.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("listing_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a listing by its primary key.
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var row listingRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM listings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("listing_repo.GetByID: %w", err)
	}
	return row.toDomain()
}

// GetBySeller returns a seller's listings, newest first.
func (r *ListingRepository) GetBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Listing, error) {
	var rows []listingRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM listings WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("listing_repo.GetBySeller: %w", err)
	}
	return rowsToDomain(rows)
}

// ListActive returns all listings currently in active status. Used by the
// feed reconciler to rebuild the projection from the source of truth.
func (r *ListingRepository) ListActive(ctx context.Context) ([]*domain.Listing, error) {
	var rows []listingRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM listings WHERE status = 'active' ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing_repo.ListActive: %w", err)
	}
	return rowsToDomain(rows)
}

// UpdateFields applies the non-nil display fields of req to a listing, but
// only while the listing is still active; the status guard also bumps
// last_updated_at so the feed's last-writer-wins merge sees a newer snapshot.
// A zero-row match is reclassified via re-read.
func (r *ListingRepository) UpdateFields(ctx context.Context, listingID, sellerID uuid.UUID, req domain.UpdateListingRequest, at time.Time) (*domain.Listing, error) {
	var row listingRow
	err := r.db.GetContext(ctx, &row, `
		UPDATE listings
		SET title           = COALESCE($1, title),
		    description     = COALESCE($2, description),
		    price           = COALESCE($3, price),
		    tags            = COALESCE($4, tags),
		    image_url       = COALESCE($5, image_url),
		    last_updated_at = $6
		WHERE id = $7 AND seller_id = $8 AND status = 'active'
		RETURNING *`,
		req.Title, req.Description, req.Price, tagsOrNil(req.Tags), req.ImageURL,
		at, listingID, sellerID)
	if err == nil {
		return row.toDomain()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing_repo.UpdateFields: %w", err)
	}
	return nil, r.reclassify(ctx, listingID, sellerID, "UpdateFields")
}

// Transition advances the listing state machine active → target in one
// conditional update. For the sold transition acceptedBidID must be non-nil
// and is written in the same statement, making "status sold + accepted bid
// recorded" a single atomic fact.
func (r *ListingRepository) Transition(ctx context.Context, listingID, sellerID uuid.UUID, target domain.ListingStatus, acceptedBidID *uuid.UUID, at time.Time) (*domain.Listing, error) {
	if !target.IsTerminal() {
		return nil, fmt.Errorf("listing_repo.Transition: target %q is not a terminal status: %w",
			target, domain.ErrInvariantViolation)
	}
	var row listingRow
	err := r.db.GetContext(ctx, &row, `
		UPDATE listings
		SET status          = $1,
		    accepted_bid_id = COALESCE($2, accepted_bid_id),
		    last_updated_at = $3
		WHERE id = $4 AND seller_id = $5 AND status = 'active'
		RETURNING *`,
		string(target), acceptedBidID, at, listingID, sellerID)
	if err == nil {
		return row.toDomain()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing_repo.Transition: %w", err)
	}
	return nil, r.reclassify(ctx, listingID, sellerID, "Transition")
}

// AppendBidRef appends a bid id to the listing's append-only bid log.
// Idempotent: re-delivery of the same BidPlaced event is absorbed by the
// array containment guard inside the same atomic statement.
func (r *ListingRepository) AppendBidRef(ctx context.Context, listingID, bidID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET bid_ids = array_append(bid_ids, $1::uuid)
		WHERE id = $2 AND NOT (bid_ids @> ARRAY[$1::uuid])`,
		bidID.String(), listingID)
	if err != nil {
		return fmt.Errorf("listing_repo.AppendBidRef: %w", err)
	}
	return nil
}

// reclassify explains a zero-row conditional update on a listing: missing row,
// wrong seller, or terminal status — in that order of specificity. An
// unexplained miss is an invariant violation, not a not-found.
func (r *ListingRepository) reclassify(ctx context.Context, listingID, sellerID uuid.UUID, op string) error {
	existing, err := r.GetByID(ctx, listingID)
	if err != nil {
		return err // ErrListingNotFound or a wrapped storage error
	}
	reason := existing.ReclassifyMutation(sellerID)
	if errors.Is(reason, domain.ErrInvariantViolation) {
		return fmt.Errorf("listing_repo.%s: listing %s active and owned yet update matched 0 rows: %w",
			op, listingID, reason)
	}
	return reason
}

func rowsToDomain(rows []listingRow) ([]*domain.Listing, error) {
	out := make([]*domain.Listing, 0, len(rows))
	for i := range rows {
		l, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// tagsOrNil maps an absent tag slice to SQL NULL so COALESCE keeps the stored
// value; an empty non-nil slice deliberately clears the tags.
func tagsOrNil(tags []string) interface{} {
	if tags == nil {
		return nil
	}
	return pq.Array(tags)
}
