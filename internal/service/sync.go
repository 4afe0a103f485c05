package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/unibazaar/marketplace/internal/events"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces consumed by the Synchronizer
// ──────────────────────────────────────────────────────────────────────────────

// BidCascader is what the synchronizer needs from the bid ledger: the
// terminal cascade itself, and the query that finds listings whose cascade
// never completed.
type BidCascader interface {
	WithdrawAllForListing(ctx context.Context, listingID uuid.UUID) error
	ClosedListingsWithActiveBids(ctx context.Context) ([]uuid.UUID, error)
}

// BidRefRecorder is what the synchronizer needs from the listing side.
type BidRefRecorder interface {
	RecordBidRef(ctx context.Context, listingID, bidID uuid.UUID) error
}

// FeedApplier is what the synchronizer needs from the feed projector.
type FeedApplier interface {
	ApplyListingChange(ctx context.Context, listingID uuid.UUID)
	RemoveListing(ctx context.Context, listingID uuid.UUID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Synchronizer
// ──────────────────────────────────────────────────────────────────────────────

// Synchronizer is the cross-component policy layer: it decides which event
// triggers which side effect in which other component, and it is the only
// place those rules live. Components never call each other on the write path;
// all cascades flow through here, after the triggering write has committed.
//
// Rules:
//   - BidPlaced           → append the bid to the listing's bid log
//   - ListingWithdrawn    → withdraw the listing's active bids; drop feed entry
//   - ListingSold         → withdraw the listing's active bids; drop feed entry
//   - ListingCreated/Updated → refresh the feed entry from the detail source
//
// Every handler is idempotent: the bus may deliver events more than once and
// in any order. The bus does NOT persist or redeliver, so a handler that
// failed is repaired out of band: stale feed entries by the periodic feed
// reconcile, unfinished bid cascades by Sweep, which the scheduler runs on
// the same cadence.
type Synchronizer struct {
	bids     BidCascader
	listings BidRefRecorder
	feed     FeedApplier
	logger   *slog.Logger
	timeout  time.Duration
}

// NewSynchronizer creates a Synchronizer. Call Register to attach it to a bus.
func NewSynchronizer(bids BidCascader, listings BidRefRecorder, feed FeedApplier, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		bids:     bids,
		listings: listings,
		feed:     feed,
		logger:   logger,
		timeout:  10 * time.Second,
	}
}

// Register subscribes all synchronization rules on the bus. Call once during
// startup wiring, before the HTTP server starts accepting requests.
func (s *Synchronizer) Register(bus *events.Bus) {
	bus.Subscribe(events.TypeBidPlaced, s.onBidPlaced)
	bus.Subscribe(events.TypeListingCreated, s.onListingChanged)
	bus.Subscribe(events.TypeListingUpdated, s.onListingChanged)
	bus.Subscribe(events.TypeListingWithdrawn, s.onListingClosed)
	bus.Subscribe(events.TypeListingSold, s.onListingClosed)
}

// onBidPlaced appends the new bid to the listing's append-only bid log.
func (s *Synchronizer) onBidPlaced(e events.Event) {
	ev, ok := e.(events.BidPlaced)
	if !ok {
		return
	}
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.listings.RecordBidRef(ctx, ev.ListingID, ev.BidID); err != nil {
		s.logger.Error("sync: record bid ref failed",
			"listing_id", ev.ListingID, "bid_id", ev.BidID, "err", err)
	}
}

// onListingChanged refreshes the feed projection for the listing.
func (s *Synchronizer) onListingChanged(e events.Event) {
	ctx, cancel := s.ctx()
	defer cancel()

	switch ev := e.(type) {
	case events.ListingCreated:
		s.feed.ApplyListingChange(ctx, ev.ListingID)
	case events.ListingUpdated:
		s.feed.ApplyListingChange(ctx, ev.ListingID)
	}
}

// onListingClosed applies the terminal cascade: every remaining active bid is
// withdrawn and the feed entry is tombstoned. Both effects are retry-safe, so
// redelivery of the terminal event converges to the same state.
func (s *Synchronizer) onListingClosed(e events.Event) {
	ctx, cancel := s.ctx()
	defer cancel()

	listingID := listingIDOf(e)
	if listingID == nil {
		return
	}

	if err := s.bids.WithdrawAllForListing(ctx, *listingID); err != nil {
		s.logger.Error("sync: bid cascade failed", "listing_id", *listingID, "err", err)
	}
	s.feed.RemoveListing(ctx, *listingID)
}

// Sweep replays the terminal cascade for every listing that closed while
// still carrying active bids. A cascade can be left unfinished in two ways:
// the onListingClosed handler failed after the lifecycle write committed, or
// a bid landed between the listing check in PlaceBid and the listing's
// transition to a terminal state. Neither is retried by the bus, so this
// sweep is the only repair path; the scheduler runs it periodically, which
// bounds how long a stale active bid can survive. Safe to run concurrently
// with live cascades: WithdrawAllForListing only touches bids still active.
func (s *Synchronizer) Sweep(ctx context.Context) error {
	stale, err := s.bids.ClosedListingsWithActiveBids(ctx)
	if err != nil {
		return fmt.Errorf("synchronizer.Sweep: %w", err)
	}
	for _, id := range stale {
		if err := s.bids.WithdrawAllForListing(ctx, id); err != nil {
			// Log and keep going; the next sweep picks this listing up again.
			s.logger.Error("sync: sweep cascade failed", "listing_id", id, "err", err)
		}
	}
	if len(stale) > 0 {
		s.logger.Info("sync: replayed terminal cascades", "listings", len(stale))
	}
	return nil
}

func (s *Synchronizer) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// listingIDOf extracts the listing id from a terminal lifecycle event.
func listingIDOf(e events.Event) *uuid.UUID {
	switch ev := e.(type) {
	case events.ListingWithdrawn:
		return &ev.ListingID
	case events.ListingSold:
		return &ev.ListingID
	}
	return nil
}
