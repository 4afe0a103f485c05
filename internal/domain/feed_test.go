package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/unibazaar/marketplace/internal/domain"
)

// ── Merge rule: last writer wins on logical timestamp ─────────────────────────

func TestFeedEntry_ShouldApply(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &domain.FeedEntry{
		Status:        domain.FeedEntryStatusActive,
		LastUpdatedAt: base,
	}

	if entry.ShouldApply(base.Add(-time.Second)) {
		t.Error("older snapshot must not overwrite a newer entry")
	}
	if !entry.ShouldApply(base) {
		t.Error("equal timestamp snapshot should apply (idempotent redelivery)")
	}
	if !entry.ShouldApply(base.Add(time.Second)) {
		t.Error("newer snapshot should apply")
	}
}

func TestFeedEntry_ShouldApply_TombstoneNeverRevived(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &domain.FeedEntry{
		Status:        domain.FeedEntryStatusRemoved,
		LastUpdatedAt: base,
	}
	// Even a strictly newer snapshot cannot resurrect a removed entry.
	if entry.ShouldApply(base.Add(time.Hour)) {
		t.Error("snapshot must not apply to a tombstoned entry")
	}
}

// ── Snapshot derivation ───────────────────────────────────────────────────────

func TestFeedSnapshot_CopiesDisplayFields(t *testing.T) {
	now := time.Now().UTC()
	l := &domain.Listing{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Title:         "calculus textbook",
		Description:   "barely used",
		Price:         decimal.NewFromInt(40),
		Tags:          []string{"books", "math"},
		Status:        domain.ListingStatusActive,
		CreatedAt:     now.Add(-time.Hour),
		LastUpdatedAt: now,
	}
	e := domain.FeedSnapshot(l)

	if e.ListingID != l.ID || e.SellerID != l.SellerID {
		t.Error("snapshot must carry listing and seller ids")
	}
	if e.Title != l.Title || !e.Price.Equal(l.Price) {
		t.Error("snapshot must copy display fields verbatim")
	}
	if e.Status != domain.FeedEntryStatusActive {
		t.Errorf("fresh snapshot status = %s, want active", e.Status)
	}
	if !e.LastUpdatedAt.Equal(l.LastUpdatedAt) {
		t.Error("snapshot must carry the listing's logical timestamp, not wall clock")
	}
}

// ── Price range validation ────────────────────────────────────────────────────

func TestValidatePriceRange(t *testing.T) {
	ten := decimal.NewFromInt(10)
	fifty := decimal.NewFromInt(50)
	neg := decimal.NewFromInt(-1)

	if err := domain.ValidatePriceRange(ten, fifty); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
	if err := domain.ValidatePriceRange(ten, ten); err != nil {
		t.Errorf("min == max should be valid: %v", err)
	}
	if err := domain.ValidatePriceRange(fifty, ten); err == nil {
		t.Error("min > max should be rejected")
	}
	if err := domain.ValidatePriceRange(neg, ten); err == nil {
		t.Error("negative min should be rejected")
	}
	if err := domain.ValidatePriceRange(ten, neg); err == nil {
		t.Error("negative max should be rejected")
	}
}
