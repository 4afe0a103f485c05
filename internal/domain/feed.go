package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// FeedEntryStatus marks whether a feed row is visible or tombstoned.
//
// Tombstones exist so that a listing-created event delivered after a
// listing-withdrawn event for the same listing cannot resurrect the entry:
// the terminal fact must be remembered, not merely deleted.
type FeedEntryStatus string

const (
	FeedEntryStatusActive  FeedEntryStatus = "active"
	FeedEntryStatusRemoved FeedEntryStatus = "removed"
)

// ──────────────────────────────────────────────────────────────────────────────
// FeedEntry
// ──────────────────────────────────────────────────────────────────────────────

// FeedEntry is a denormalized, query-optimized copy of an active listing's
// display fields. It is derived state, never a source of truth, and is fully
// reconstructable from the listing store.
//
// LastUpdatedAt is the listing's logical update timestamp, not the time the
// event arrived; merges are last-writer-wins on this field.
type FeedEntry struct {
	ListingID     uuid.UUID       `json:"listing_id"      db:"listing_id"`
	SellerID      uuid.UUID       `json:"seller_id"       db:"seller_id"`
	Title         string          `json:"title"           db:"title"`
	Description   string          `json:"description"     db:"description"`
	Price         decimal.Decimal `json:"price"           db:"price"`
	Tags          []string        `json:"tags"            db:"tags"`
	ImageURL      string          `json:"image_url"       db:"image_url"`
	Status        FeedEntryStatus `json:"-"               db:"status"`
	CreatedAt     time.Time       `json:"created_at"      db:"created_at"`
	LastUpdatedAt time.Time       `json:"last_updated_at" db:"last_updated_at"`
}

// ShouldApply reports whether an incoming snapshot with the given logical
// timestamp may overwrite this entry. A snapshot never applies to a tombstoned
// entry, and never rolls the entry back to a state older than one already
// applied.
func (e *FeedEntry) ShouldApply(snapshotUpdatedAt time.Time) bool {
	if e.Status == FeedEntryStatusRemoved {
		return false
	}
	return !snapshotUpdatedAt.Before(e.LastUpdatedAt)
}

// FeedSnapshot builds the feed projection of a listing. The caller decides
// whether to apply it; the projector's merge rule does the deciding.
func FeedSnapshot(l *Listing) *FeedEntry {
	return &FeedEntry{
		ListingID:     l.ID,
		SellerID:      l.SellerID,
		Title:         l.Title,
		Description:   l.Description,
		Price:         l.Price,
		Tags:          l.Tags,
		ImageURL:      l.ImageURL,
		Status:        FeedEntryStatusActive,
		CreatedAt:     l.CreatedAt,
		LastUpdatedAt: l.LastUpdatedAt,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// FeedQuery — filter parameters for feed reads
// ──────────────────────────────────────────────────────────────────────────────

// FeedQuery bundles the optional filters of a feed read. Zero values mean
// "no filter"; Limit must be validated by the caller before use.
type FeedQuery struct {
	Tags     []string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Limit    int
}

// ValidatePriceRange checks a min/max price pair: both non-negative and
// min ≤ max. Fails fast, before any storage access.
func ValidatePriceRange(min, max decimal.Decimal) error {
	if min.IsNegative() || max.IsNegative() || min.GreaterThan(max) {
		return ErrInvalidPriceRange
	}
	return nil
}
