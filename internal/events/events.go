// Package events provides the in-process publish/subscribe bus that wires the
// marketplace components together, plus the typed payloads they exchange.
//
// The bus offers no persistence, no delivery guarantee, and no ordering across
// concurrent publishes. Every subscriber must therefore be idempotent and
// order-tolerant; the projector and synchronizer are written on that
// assumption.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type identifies published event categories. Subscriptions are keyed by Type.
type Type string

const (
	TypeBidPlaced        Type = "bid_placed"
	TypeBidWithdrawn     Type = "bid_withdrawn"
	TypeListingCreated   Type = "listing_created"
	TypeListingUpdated   Type = "listing_updated"
	TypeListingWithdrawn Type = "listing_withdrawn"
	TypeListingSold      Type = "listing_sold"
	TypeFeedUpdated      Type = "feed_updated"
)

// Event is implemented by every payload published on the bus.
type Event interface {
	EventType() Type
}

// ──────────────────────────────────────────────────────────────────────────────
// Bid events
// ──────────────────────────────────────────────────────────────────────────────

// BidPlaced is emitted after a bid has durably committed to the ledger.
type BidPlaced struct {
	ListingID uuid.UUID       `json:"listing_id"`
	BidID     uuid.UUID       `json:"bid_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventType implements Event.
func (BidPlaced) EventType() Type { return TypeBidPlaced }

// BidWithdrawn is emitted after a bid's conditional active→withdrawn update
// succeeded. Exactly one such event is ever emitted per bid.
type BidWithdrawn struct {
	BidID     uuid.UUID       `json:"bid_id"`
	ListingID uuid.UUID       `json:"listing_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventType implements Event.
func (BidWithdrawn) EventType() Type { return TypeBidWithdrawn }

// ──────────────────────────────────────────────────────────────────────────────
// Listing events
// ──────────────────────────────────────────────────────────────────────────────

// ListingCreated is emitted after a new listing commits.
// UpdatedAt carries the listing's logical timestamp for feed merging.
type ListingCreated struct {
	ListingID uuid.UUID `json:"listing_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventType implements Event.
func (ListingCreated) EventType() Type { return TypeListingCreated }

// ListingUpdated is emitted after a listing's display fields change.
type ListingUpdated struct {
	ListingID uuid.UUID `json:"listing_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventType implements Event.
func (ListingUpdated) EventType() Type { return TypeListingUpdated }

// ListingWithdrawn is emitted after a listing's active→withdrawn transition
// commits. Terminal: consumers may act on it unconditionally.
type ListingWithdrawn struct {
	ListingID uuid.UUID `json:"listing_id"`
	SellerID  uuid.UUID `json:"seller_id"`
}

// EventType implements Event.
func (ListingWithdrawn) EventType() Type { return TypeListingWithdrawn }

// ListingSold is emitted after a listing's active→sold transition commits,
// with the accepted bid already recorded on the listing row.
type ListingSold struct {
	ListingID     uuid.UUID `json:"listing_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	AcceptedBidID uuid.UUID `json:"accepted_bid_id"`
}

// EventType implements Event.
func (ListingSold) EventType() Type { return TypeListingSold }

// ──────────────────────────────────────────────────────────────────────────────
// Feed events
// ──────────────────────────────────────────────────────────────────────────────

// FeedUpdated is emitted by the feed projector after it applied a change to
// its read model, so interested parties (the WS hub) can refresh clients.
type FeedUpdated struct {
	ListingID uuid.UUID `json:"listing_id"`
	Reason    string    `json:"reason"` // "upsert" | "remove" | "reconcile"
}

// EventType implements Event.
func (FeedUpdated) EventType() Type { return TypeFeedUpdated }
