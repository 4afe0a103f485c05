package domain_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/unibazaar/marketplace/internal/domain"
)

// ── Lifecycle transitions ─────────────────────────────────────────────────────

func TestListing_CanTransitionTo(t *testing.T) {
	cases := []struct {
		name   string
		from   domain.ListingStatus
		to     domain.ListingStatus
		expect bool
	}{
		{"active to withdrawn", domain.ListingStatusActive, domain.ListingStatusWithdrawn, true},
		{"active to sold", domain.ListingStatusActive, domain.ListingStatusSold, true},
		{"active to active", domain.ListingStatusActive, domain.ListingStatusActive, false},
		{"withdrawn to sold", domain.ListingStatusWithdrawn, domain.ListingStatusSold, false},
		{"withdrawn to active", domain.ListingStatusWithdrawn, domain.ListingStatusActive, false},
		{"sold to withdrawn", domain.ListingStatusSold, domain.ListingStatusWithdrawn, false},
		{"sold to active", domain.ListingStatusSold, domain.ListingStatusActive, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &domain.Listing{Status: tc.from}
			if got := l.CanTransitionTo(tc.to); got != tc.expect {
				t.Errorf("CanTransitionTo(%s) from %s = %v, want %v", tc.to, tc.from, got, tc.expect)
			}
		})
	}
}

// When a conditional listing update matches no row, the re-read state must
// reclassify the miss: wrong seller first, then terminal status, and an
// active owned listing surfaces the miss as an invariant violation. None of
// these may read as not-found — a second withdraw or a late edit on a sold
// listing is a conflict, not a missing listing.
func TestListing_ReclassifyMutation(t *testing.T) {
	seller := uuid.New()
	stranger := uuid.New()

	cases := []struct {
		name   string
		status domain.ListingStatus
		caller uuid.UUID
		want   error
	}{
		{"withdrawn listing, seller retries", domain.ListingStatusWithdrawn, seller, domain.ErrListingNotActive},
		{"sold listing, seller edits", domain.ListingStatusSold, seller, domain.ErrListingNotActive},
		{"active listing, wrong caller", domain.ListingStatusActive, stranger, domain.ErrNotSeller},
		{"sold listing, wrong caller", domain.ListingStatusSold, stranger, domain.ErrNotSeller},
		{"active and owned", domain.ListingStatusActive, seller, domain.ErrInvariantViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &domain.Listing{ID: uuid.New(), SellerID: seller, Status: tc.status}
			got := l.ReclassifyMutation(tc.caller)
			if !errors.Is(got, tc.want) {
				t.Errorf("ReclassifyMutation = %v, want %v", got, tc.want)
			}
			if domain.IsNotFound(got) {
				t.Errorf("a reclassified miss must never read as not-found, got %v", got)
			}
		})
	}
}

func TestListingStatus_IsTerminal(t *testing.T) {
	if domain.ListingStatusActive.IsTerminal() {
		t.Error("active must not be terminal")
	}
	if !domain.ListingStatusWithdrawn.IsTerminal() {
		t.Error("withdrawn must be terminal")
	}
	if !domain.ListingStatusSold.IsTerminal() {
		t.Error("sold must be terminal")
	}
}
