// Package domain defines the core business entities and types for the
// unibazaar student marketplace.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// ListingStatus represents the lifecycle state of a listing.
// Transitions form a strict partial order: active → {withdrawn, sold}.
// Withdrawn and sold are terminal — no further bids, edits, or transitions.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusWithdrawn ListingStatus = "withdrawn"
	ListingStatusSold      ListingStatus = "sold"
)

// IsTerminal returns true for statuses that permit no further transitions.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusWithdrawn || s == ListingStatusSold
}

// ──────────────────────────────────────────────────────────────────────────────
// Listing
// ──────────────────────────────────────────────────────────────────────────────

// Listing represents an item a student has put up for sale.
//
// AcceptedBidID is set exactly once, in the same conditional update that moves
// the listing to sold, and is never modified afterwards. BidIDs is an
// append-only log of every bid ever placed on the listing, maintained
// asynchronously by the synchronizer; it is informational history, not the
// source of truth for bid state (the bid ledger is).
type Listing struct {
	ID            uuid.UUID       `json:"id"              db:"id"`
	SellerID      uuid.UUID       `json:"seller_id"       db:"seller_id"`
	Title         string          `json:"title"           db:"title"`
	Description   string          `json:"description"     db:"description"`
	Price         decimal.Decimal `json:"price"           db:"price"`
	Tags          []string        `json:"tags"            db:"tags"`
	ImageURL      string          `json:"image_url"       db:"image_url"`
	Status        ListingStatus   `json:"status"          db:"status"`
	AcceptedBidID *uuid.UUID      `json:"accepted_bid_id" db:"accepted_bid_id"`
	BidIDs        []uuid.UUID     `json:"bid_ids"         db:"bid_ids"`
	CreatedAt     time.Time       `json:"created_at"      db:"created_at"`
	LastUpdatedAt time.Time       `json:"last_updated_at" db:"last_updated_at"`
}

// IsActive returns true while the listing accepts bids and edits.
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// CanTransitionTo reports whether the listing may move to the target status.
func (l *Listing) CanTransitionTo(target ListingStatus) bool {
	if l.Status != ListingStatusActive {
		return false
	}
	return target == ListingStatusWithdrawn || target == ListingStatusSold
}

// ReclassifyMutation explains a conditional update or transition that matched
// no row, given the listing's re-read state: the caller is not the seller, or
// the listing has already reached a terminal status. Ownership is checked
// first, so a sold listing owned by someone else still reads as not-owned.
// When neither explains the miss the update should have matched, and the
// result is ErrInvariantViolation — a conflict is never reported as not-found.
func (l *Listing) ReclassifyMutation(callerID uuid.UUID) error {
	if l.SellerID != callerID {
		return ErrNotSeller
	}
	if l.Status.IsTerminal() {
		return ErrListingNotActive
	}
	return ErrInvariantViolation
}

// ──────────────────────────────────────────────────────────────────────────────
// Request / response value objects
// ──────────────────────────────────────────────────────────────────────────────

// CreateListingRequest carries the validated inputs for creating a listing.
type CreateListingRequest struct {
	SellerID    uuid.UUID
	Title       string
	Description string
	Price       decimal.Decimal
	Tags        []string
	ImageURL    string
}

// UpdateListingRequest carries the editable display fields of a listing.
// Nil pointers mean "leave unchanged".
type UpdateListingRequest struct {
	Title       *string
	Description *string
	Price       *decimal.Decimal
	Tags        []string
	ImageURL    *string
}

// ListingResponse is the API-safe view of a listing.
type ListingResponse struct {
	ID            uuid.UUID       `json:"id"`
	SellerID      uuid.UUID       `json:"seller_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Tags          []string        `json:"tags"`
	ImageURL      string          `json:"image_url"`
	Status        ListingStatus   `json:"status"`
	AcceptedBidID *uuid.UUID      `json:"accepted_bid_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	LastUpdatedAt time.Time       `json:"last_updated_at"`
}

// ToResponse converts a Listing to its API response form.
func (l *Listing) ToResponse() ListingResponse {
	return ListingResponse{
		ID:            l.ID,
		SellerID:      l.SellerID,
		Title:         l.Title,
		Description:   l.Description,
		Price:         l.Price,
		Tags:          l.Tags,
		ImageURL:      l.ImageURL,
		Status:        l.Status,
		AcceptedBidID: l.AcceptedBidID,
		CreatedAt:     l.CreatedAt,
		LastUpdatedAt: l.LastUpdatedAt,
	}
}
