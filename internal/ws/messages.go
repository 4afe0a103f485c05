// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeBidPlaced        MsgType = "bid_placed"
	MsgTypeBidWithdrawn     MsgType = "bid_withdrawn"
	MsgTypeListingWithdrawn MsgType = "listing_withdrawn"
	MsgTypeListingSold      MsgType = "listing_sold"
	MsgTypeFeedUpdated      MsgType = "feed_updated"
	MsgTypeError            MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// BidPlacedMessage — broadcast after a bid commits so watchers can refresh.
// ──────────────────────────────────────────────────────────────────────────────

// BidPlacedMessage notifies all clients that a listing has a new bid.
type BidPlacedMessage struct {
	Type      MsgType         `json:"type"`
	ListingID uuid.UUID       `json:"listing_id"`
	BidID     uuid.UUID       `json:"bid_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// BidWithdrawnMessage notifies all clients that a bid left the running.
type BidWithdrawnMessage struct {
	Type      MsgType   `json:"type"`
	ListingID uuid.UUID `json:"listing_id"`
	BidID     uuid.UUID `json:"bid_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Listing lifecycle messages
// ──────────────────────────────────────────────────────────────────────────────

// ListingWithdrawnMessage tells clients a listing was pulled by its seller.
type ListingWithdrawnMessage struct {
	Type      MsgType   `json:"type"`
	ListingID uuid.UUID `json:"listing_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ListingSoldMessage tells clients a listing was sold and to which bid.
type ListingSoldMessage struct {
	Type          MsgType   `json:"type"`
	ListingID     uuid.UUID `json:"listing_id"`
	AcceptedBidID uuid.UUID `json:"accepted_bid_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// FeedUpdatedMessage — nudges browsing clients to refetch the feed.
// ──────────────────────────────────────────────────────────────────────────────

// FeedUpdatedMessage carries no payload beyond the reason; the feed itself is
// fetched over HTTP so clients always read a consistent projection.
type FeedUpdatedMessage struct {
	Type      MsgType   `json:"type"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
