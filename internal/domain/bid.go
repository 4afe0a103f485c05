package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// BidStatus represents the current state of a bid. A bid is created active and
// may transition to withdrawn exactly once; withdrawn is terminal.
type BidStatus string

const (
	BidStatusActive    BidStatus = "active"
	BidStatusWithdrawn BidStatus = "withdrawn"
)

// ──────────────────────────────────────────────────────────────────────────────
// Bid
// ──────────────────────────────────────────────────────────────────────────────

// Bid represents a single buyer offer on a listing. All fields except Status
// and WithdrawnAt are immutable after creation; bids are never deleted, so the
// ledger keeps full history.
type Bid struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	ListingID   uuid.UUID       `json:"listing_id"   db:"listing_id"`
	BidderID    uuid.UUID       `json:"bidder_id"    db:"bidder_id"`
	Amount      decimal.Decimal `json:"amount"       db:"amount"`
	Status      BidStatus       `json:"status"       db:"status"`
	PlacedAt    time.Time       `json:"placed_at"    db:"placed_at"`
	WithdrawnAt *time.Time      `json:"withdrawn_at" db:"withdrawn_at"`
}

// IsActive returns true while the bid still competes for the listing.
func (b *Bid) IsActive() bool {
	return b.Status == BidStatusActive
}

// HighestActive returns the current highest bid among the given bids: the
// active bid with the maximum amount, ties broken by earliest placement time.
// Returns nil when no bid is active. Withdrawn bids never participate.
func HighestActive(bids []*Bid) *Bid {
	var best *Bid
	for _, b := range bids {
		if !b.IsActive() {
			continue
		}
		if best == nil {
			best = b
			continue
		}
		switch {
		case b.Amount.GreaterThan(best.Amount):
			best = b
		case b.Amount.Equal(best.Amount) && b.PlacedAt.Before(best.PlacedAt):
			best = b
		}
	}
	return best
}

// ReclassifyWithdraw explains a conditional withdraw that matched no row,
// given the bid's re-read state: the caller does not own the bid, or the bid
// is already withdrawn. Ownership is checked first, so a withdrawn bid owned
// by someone else still reads as not-owned. When neither explains the miss
// the update should have matched, and the result is ErrInvariantViolation —
// a conflict is never reported as not-found.
func (b *Bid) ReclassifyWithdraw(callerID uuid.UUID) error {
	if b.BidderID != callerID {
		return ErrNotBidOwner
	}
	if b.Status == BidStatusWithdrawn {
		return ErrBidAlreadyWithdrawn
	}
	return ErrInvariantViolation
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBidRequest — value object used by BidService
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBidRequest carries the validated inputs for placing a bid.
type PlaceBidRequest struct {
	ListingID uuid.UUID
	BidderID  uuid.UUID
	Amount    decimal.Decimal
}

// BidResponse is the API-safe view of a bid.
type BidResponse struct {
	ID          uuid.UUID       `json:"id"`
	ListingID   uuid.UUID       `json:"listing_id"`
	BidderID    uuid.UUID       `json:"bidder_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      BidStatus       `json:"status"`
	PlacedAt    time.Time       `json:"placed_at"`
	WithdrawnAt *time.Time      `json:"withdrawn_at,omitempty"`
}

// ToResponse converts a Bid to its API response form.
func (b *Bid) ToResponse() BidResponse {
	return BidResponse{
		ID:          b.ID,
		ListingID:   b.ListingID,
		BidderID:    b.BidderID,
		Amount:      b.Amount,
		Status:      b.Status,
		PlacedAt:    b.PlacedAt,
		WithdrawnAt: b.WithdrawnAt,
	}
}
