package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/unibazaar/marketplace/internal/domain"
)

// FeedRepository handles all database operations for the denormalized feed.
//
// Entries carry the listing's logical timestamp and merge last-writer-wins on
// it, so the projection converges regardless of event arrival order. Terminal
// removals are stored as tombstones rather than deletes: a tombstone row must
// outlive the event that created it, otherwise a straggler create-event could
// resurrect a withdrawn listing.
type FeedRepository struct {
	db *sqlx.DB
}

// NewFeedRepository creates a new FeedRepository.
func NewFeedRepository(db *sqlx.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// feedRow mirrors the feed_entries table with pq array wrappers for scanning.
type feedRow struct {
	ListingID     uuid.UUID       `db:"listing_id"`
	SellerID      uuid.UUID       `db:"seller_id"`
	Title         string          `db:"title"`
	Description   string          `db:"description"`
	Price         decimal.Decimal `db:"price"`
	Tags          pq.StringArray  `db:"tags"`
	ImageURL      string          `db:"image_url"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
	LastUpdatedAt time.Time       `db:"last_updated_at"`
}

func (row *feedRow) toDomain() *domain.FeedEntry {
	return &domain.FeedEntry{
		ListingID:     row.ListingID,
		SellerID:      row.SellerID,
		Title:         row.Title,
		Description:   row.Description,
		Price:         row.Price,
		Tags:          []string(row.Tags),
		ImageURL:      row.ImageURL,
		Status:        domain.FeedEntryStatus(row.Status),
		CreatedAt:     row.CreatedAt,
		LastUpdatedAt: row.LastUpdatedAt,
	}
}

// Upsert applies a listing snapshot to the feed in one atomic statement.
// The merge rule lives in the statement itself: an existing row is only
// overwritten when it is not tombstoned and its logical timestamp is not newer
// than the snapshot's. Returns true when the snapshot was applied, false when
// the stored state won the merge. Duplicate and out-of-order deliveries of the
// same snapshot are therefore harmless.
func (r *FeedRepository) Upsert(ctx context.Context, e *domain.FeedEntry) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO feed_entries
			(listing_id, seller_id, title, description, price, tags, image_url, status, created_at, last_updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, 'active', $8, $9)
		ON CONFLICT (listing_id) DO UPDATE SET
			seller_id       = EXCLUDED.seller_id,
			title           = EXCLUDED.title,
			description     = EXCLUDED.description,
			price           = EXCLUDED.price,
			tags            = EXCLUDED.tags,
			image_url       = EXCLUDED.image_url,
			created_at      = EXCLUDED.created_at,
			last_updated_at = EXCLUDED.last_updated_at
		WHERE feed_entries.status = 'active'
		  AND feed_entries.last_updated_at <= EXCLUDED.last_updated_at`,
		e.ListingID, e.SellerID, e.Title, e.Description, e.Price,
		pq.Array(e.Tags), e.ImageURL, e.CreatedAt, e.LastUpdatedAt)
	if err != nil {
		return false, fmt.Errorf("feed_repo.Upsert: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Remove tombstones a feed entry unconditionally: terminal lifecycle events
// always win over any concurrent snapshot. When no row exists yet (the
// terminal event outran the create event) a bare tombstone is inserted so the
// late snapshot finds the terminal fact already recorded.
func (r *FeedRepository) Remove(ctx context.Context, listingID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feed_entries
			(listing_id, seller_id, title, description, price, tags, image_url, status, created_at, last_updated_at)
		VALUES
			($1, $2, '', '', 0, '{}', '', 'removed', $3, $3)
		ON CONFLICT (listing_id) DO UPDATE SET
			status          = 'removed',
			last_updated_at = GREATEST(feed_entries.last_updated_at, EXCLUDED.last_updated_at)`,
		listingID, uuid.Nil, at)
	if err != nil {
		return fmt.Errorf("feed_repo.Remove: %w", err)
	}
	return nil
}

// GetByListingID fetches one entry, tombstoned or not. Used by tests and the
// reconciler; feed queries never expose tombstones.
func (r *FeedRepository) GetByListingID(ctx context.Context, listingID uuid.UUID) (*domain.FeedEntry, error) {
	var row feedRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM feed_entries WHERE listing_id = $1`, listingID)
	if err != nil {
		return nil, fmt.Errorf("feed_repo.GetByListingID: %w", err)
	}
	return row.toDomain(), nil
}

// Query returns visible feed entries matching q, newest listings first.
// Tombstoned rows are absent from every query. Tag filtering matches entries
// carrying at least one of the requested tags; price bounds are inclusive.
func (r *FeedRepository) Query(ctx context.Context, q domain.FeedQuery) ([]*domain.FeedEntry, error) {
	query := `SELECT * FROM feed_entries WHERE status = 'active'`
	args := []interface{}{}
	n := 1

	if len(q.Tags) > 0 {
		query += fmt.Sprintf(" AND tags && $%d", n)
		args = append(args, pq.Array(q.Tags))
		n++
	}
	if q.MinPrice != nil {
		query += fmt.Sprintf(" AND price >= $%d", n)
		args = append(args, *q.MinPrice)
		n++
	}
	if q.MaxPrice != nil {
		query += fmt.Sprintf(" AND price <= $%d", n)
		args = append(args, *q.MaxPrice)
		n++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, listing_id ASC LIMIT $%d", n)
	args = append(args, q.Limit)

	var rows []feedRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("feed_repo.Query: %w", err)
	}
	out := make([]*domain.FeedEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// ActiveListingIDs returns the ids of all visible entries. The reconciler uses
// this to find entries whose listing has since left the active state.
func (r *FeedRepository) ActiveListingIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		`SELECT listing_id FROM feed_entries WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("feed_repo.ActiveListingIDs: %w", err)
	}
	return ids, nil
}
