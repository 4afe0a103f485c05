package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/unibazaar/marketplace/internal/domain"
)

func activeBid(amount int64, placedAt time.Time) *domain.Bid {
	return &domain.Bid{
		ID:       uuid.New(),
		Amount:   decimal.NewFromInt(amount),
		Status:   domain.BidStatusActive,
		PlacedAt: placedAt,
	}
}

// ── Current high derivation ───────────────────────────────────────────────────

func TestHighestActive_PicksMaxAmount(t *testing.T) {
	now := time.Now().UTC()
	bids := []*domain.Bid{
		activeBid(100, now),
		activeBid(150, now.Add(time.Second)),
		activeBid(120, now.Add(2*time.Second)),
	}
	high := domain.HighestActive(bids)
	if high == nil {
		t.Fatal("expected a highest bid, got nil")
	}
	if !high.Amount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("HighestActive amount = %s, want 150", high.Amount)
	}
}

func TestHighestActive_IgnoresWithdrawn(t *testing.T) {
	now := time.Now().UTC()
	top := activeBid(200, now)
	top.Status = domain.BidStatusWithdrawn

	bids := []*domain.Bid{
		top,
		activeBid(150, now.Add(time.Second)),
	}
	high := domain.HighestActive(bids)
	if high == nil {
		t.Fatal("expected a highest bid, got nil")
	}
	if !high.Amount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("withdrawn bid should not win: got %s, want 150", high.Amount)
	}
}

func TestHighestActive_TieGoesToEarliest(t *testing.T) {
	now := time.Now().UTC()
	first := activeBid(150, now)
	second := activeBid(150, now.Add(time.Minute))

	// Order in the slice must not matter.
	high := domain.HighestActive([]*domain.Bid{second, first})
	if high == nil {
		t.Fatal("expected a highest bid, got nil")
	}
	if high.ID != first.ID {
		t.Errorf("tie should go to the earliest placed bid")
	}
}

func TestHighestActive_AllWithdrawn(t *testing.T) {
	now := time.Now().UTC()
	b := activeBid(100, now)
	b.Status = domain.BidStatusWithdrawn

	if high := domain.HighestActive([]*domain.Bid{b}); high != nil {
		t.Errorf("expected nil highest when no active bids, got %v", high)
	}
}

func TestHighestActive_Empty(t *testing.T) {
	if high := domain.HighestActive(nil); high != nil {
		t.Errorf("expected nil highest on empty ledger, got %v", high)
	}
}

// ── Withdraw miss reclassification ────────────────────────────────────────────

// When the conditional withdraw matches no row, the re-read bid's state must
// reclassify the miss into the most specific error. A second withdrawal is a
// conflict, never a not-found, and ownership outranks prior withdrawal.
func TestBid_ReclassifyWithdraw(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	cases := []struct {
		name   string
		status domain.BidStatus
		caller uuid.UUID
		want   error
	}{
		{"second withdrawal by owner", domain.BidStatusWithdrawn, owner, domain.ErrBidAlreadyWithdrawn},
		{"active bid, wrong caller", domain.BidStatusActive, stranger, domain.ErrNotBidOwner},
		{"withdrawn bid, wrong caller", domain.BidStatusWithdrawn, stranger, domain.ErrNotBidOwner},
		{"active and owned", domain.BidStatusActive, owner, domain.ErrInvariantViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &domain.Bid{ID: uuid.New(), BidderID: owner, Status: tc.status}
			got := b.ReclassifyWithdraw(tc.caller)
			if !errors.Is(got, tc.want) {
				t.Errorf("ReclassifyWithdraw = %v, want %v", got, tc.want)
			}
			if domain.IsNotFound(got) {
				t.Errorf("a reclassified miss must never read as not-found, got %v", got)
			}
		})
	}
}

// ── Bid state ─────────────────────────────────────────────────────────────────

func TestBid_IsActive(t *testing.T) {
	b := activeBid(10, time.Now().UTC())
	if !b.IsActive() {
		t.Error("fresh bid should be active")
	}
	b.Status = domain.BidStatusWithdrawn
	if b.IsActive() {
		t.Error("withdrawn bid should not be active")
	}
}
