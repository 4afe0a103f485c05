package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/unibazaar/marketplace/internal/events"
	"github.com/unibazaar/marketplace/internal/service"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes for the synchronizer's three dependency surfaces
// ──────────────────────────────────────────────────────────────────────────────

type fakeBidLedger struct {
	mu        sync.Mutex
	cascaded  []uuid.UUID
	stale     []uuid.UUID
	staleErr  error
	failFirst bool
	calls     int
}

func (f *fakeBidLedger) WithdrawAllForListing(_ context.Context, listingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFirst && f.calls == 1 {
		return errors.New("storage unavailable")
	}
	f.cascaded = append(f.cascaded, listingID)
	return nil
}

func (f *fakeBidLedger) ClosedListingsWithActiveBids(context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stale, f.staleErr
}

func (f *fakeBidLedger) cascadedIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.cascaded...)
}

type fakeBidLog struct {
	mu       sync.Mutex
	recorded [][2]uuid.UUID // {listingID, bidID}
}

func (f *fakeBidLog) RecordBidRef(_ context.Context, listingID, bidID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, [2]uuid.UUID{listingID, bidID})
	return nil
}

type fakeFeed struct {
	mu      sync.Mutex
	applied []uuid.UUID
	removed []uuid.UUID
}

func (f *fakeFeed) ApplyListingChange(_ context.Context, listingID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, listingID)
}

func (f *fakeFeed) RemoveListing(_ context.Context, listingID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, listingID)
}

func newTestSynchronizer(bids *fakeBidLedger, listings *fakeBidLog, feed *fakeFeed) *service.Synchronizer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewSynchronizer(bids, listings, feed, logger)
}

// ──────────────────────────────────────────────────────────────────────────────
// Event-driven cascades
// ──────────────────────────────────────────────────────────────────────────────

func TestSynchronizer_BidPlacedRecordsBidRef(t *testing.T) {
	bids := &fakeBidLedger{}
	listings := &fakeBidLog{}
	feed := &fakeFeed{}
	syncer := newTestSynchronizer(bids, listings, feed)

	bus := events.NewBus(nil)
	syncer.Register(bus)

	listingID := uuid.New()
	bidID := uuid.New()
	bus.Publish(events.BidPlaced{ListingID: listingID, BidID: bidID, BidderID: uuid.New()})
	bus.Drain()

	if len(listings.recorded) != 1 {
		t.Fatalf("expected 1 recorded bid ref, got %d", len(listings.recorded))
	}
	if got := listings.recorded[0]; got[0] != listingID || got[1] != bidID {
		t.Errorf("recorded ref = %v, want {%s, %s}", got, listingID, bidID)
	}
}

func TestSynchronizer_ListingChangeRefreshesFeed(t *testing.T) {
	bids := &fakeBidLedger{}
	feed := &fakeFeed{}
	syncer := newTestSynchronizer(bids, &fakeBidLog{}, feed)

	bus := events.NewBus(nil)
	syncer.Register(bus)

	created := uuid.New()
	updated := uuid.New()
	bus.Publish(events.ListingCreated{ListingID: created, SellerID: uuid.New()})
	bus.Publish(events.ListingUpdated{ListingID: updated, SellerID: uuid.New()})
	bus.Drain()

	if len(feed.applied) != 2 {
		t.Fatalf("expected 2 feed refreshes, got %d", len(feed.applied))
	}
	seen := map[uuid.UUID]bool{feed.applied[0]: true, feed.applied[1]: true}
	if !seen[created] || !seen[updated] {
		t.Errorf("feed refreshes %v missing one of %s, %s", feed.applied, created, updated)
	}
}

func TestSynchronizer_TerminalListingCascades(t *testing.T) {
	bids := &fakeBidLedger{}
	feed := &fakeFeed{}
	syncer := newTestSynchronizer(bids, &fakeBidLog{}, feed)

	bus := events.NewBus(nil)
	syncer.Register(bus)

	withdrawn := uuid.New()
	sold := uuid.New()
	bus.Publish(events.ListingWithdrawn{ListingID: withdrawn, SellerID: uuid.New()})
	bus.Publish(events.ListingSold{ListingID: sold, SellerID: uuid.New(), AcceptedBidID: uuid.New()})
	bus.Drain()

	cascaded := bids.cascadedIDs()
	if len(cascaded) != 2 {
		t.Fatalf("expected 2 bid cascades, got %d", len(cascaded))
	}
	if len(feed.removed) != 2 {
		t.Fatalf("expected 2 feed tombstones, got %d", len(feed.removed))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Sweep: the repair path for cascades the bus lost
// ──────────────────────────────────────────────────────────────────────────────

// A cascade handler failure leaves active bids on a closed listing, and the
// bus never redelivers. The sweep must find those listings and finish the
// cascade.
func TestSynchronizer_SweepFinishesLostCascades(t *testing.T) {
	stale := []uuid.UUID{uuid.New(), uuid.New()}
	bids := &fakeBidLedger{stale: stale}
	syncer := newTestSynchronizer(bids, &fakeBidLog{}, &fakeFeed{})

	if err := syncer.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	cascaded := bids.cascadedIDs()
	if len(cascaded) != 2 {
		t.Fatalf("expected cascades for 2 stale listings, got %d", len(cascaded))
	}
	for i, id := range stale {
		if cascaded[i] != id {
			t.Errorf("cascade[%d] = %s, want %s", i, cascaded[i], id)
		}
	}
}

// One failing listing must not stop the sweep from repairing the rest; the
// failed one is simply retried on the next run.
func TestSynchronizer_SweepContinuesPastFailures(t *testing.T) {
	stale := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	bids := &fakeBidLedger{stale: stale, failFirst: true}
	syncer := newTestSynchronizer(bids, &fakeBidLog{}, &fakeFeed{})

	if err := syncer.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	cascaded := bids.cascadedIDs()
	if len(cascaded) != 2 {
		t.Fatalf("expected 2 cascades after one failure, got %d", len(cascaded))
	}
	if cascaded[0] != stale[1] || cascaded[1] != stale[2] {
		t.Errorf("cascades = %v, want remaining listings %v", cascaded, stale[1:])
	}
}

func TestSynchronizer_SweepPropagatesQueryError(t *testing.T) {
	queryErr := errors.New("connection reset")
	bids := &fakeBidLedger{staleErr: queryErr}
	syncer := newTestSynchronizer(bids, &fakeBidLog{}, &fakeFeed{})

	if err := syncer.Sweep(context.Background()); !errors.Is(err, queryErr) {
		t.Fatalf("Sweep error = %v, want wrapped %v", err, queryErr)
	}
}
