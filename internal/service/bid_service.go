package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/unibazaar/marketplace/internal/domain"
	"github.com/unibazaar/marketplace/internal/events"
	"github.com/unibazaar/marketplace/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into BidService to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// ListingGate is the minimal interface BidService needs from ListingService.
// The ledger itself has no invariant tying bids to listing state; whether a
// listing still accepts bids is the listing side's rule, consumed here only
// through this narrow query surface.
type ListingGate interface {
	CheckOpenForBids(ctx context.Context, listingID uuid.UUID) error
}

// ──────────────────────────────────────────────────────────────────────────────
// BidService
// ──────────────────────────────────────────────────────────────────────────────

// BidService is the bid ledger: race-free placement and withdrawal of bids
// plus the deterministic current-highest-bid rule. Every mutation commits to
// the bids table first and only then emits an event; listeners apply the
// cross-aggregate effects asynchronously.
type BidService struct {
	bidRepo *repository.BidRepository
	gate    ListingGate // injected after ListingService is built
	bus     *events.Bus
	logger  *slog.Logger
}

// NewBidService creates a BidService.
func NewBidService(bidRepo *repository.BidRepository, bus *events.Bus, logger *slog.Logger) *BidService {
	return &BidService{
		bidRepo: bidRepo,
		bus:     bus,
		logger:  logger,
	}
}

// SetListingGate injects the ListingService dependency post-construction.
func (s *BidService) SetListingGate(g ListingGate) { s.gate = g }

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBid
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBid validates the request, confirms the listing still accepts bids,
// inserts the bid in active status, and emits BidPlaced after the insert
// commits. The listing's own bid log catches up asynchronously via the
// synchronizer.
func (s *BidService) PlaceBid(ctx context.Context, req domain.PlaceBidRequest) (*domain.Bid, error) {
	// Fail fast, before any storage access.
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	if s.gate != nil {
		if err := s.gate.CheckOpenForBids(ctx, req.ListingID); err != nil {
			return nil, err
		}
	}

	bid := &domain.Bid{
		ID:        uuid.New(),
		ListingID: req.ListingID,
		BidderID:  req.BidderID,
		Amount:    req.Amount,
		Status:    domain.BidStatusActive,
		PlacedAt:  time.Now().UTC(),
	}
	if err := s.bidRepo.Create(ctx, bid); err != nil {
		return nil, fmt.Errorf("bid_service.PlaceBid: %w", err)
	}

	s.bus.Publish(events.BidPlaced{
		ListingID: bid.ListingID,
		BidID:     bid.ID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		Timestamp: bid.PlacedAt,
	})
	return bid, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// WithdrawBid
// ──────────────────────────────────────────────────────────────────────────────

// WithdrawBid marks a bid withdrawn via a single conditional update on
// {id, bidder, active}. Any number of concurrent calls on the same bid resolve
// to exactly one success; the rest get the precise error the repository
// reclassified from a re-read. Emits BidWithdrawn only for the winning call.
func (s *BidService) WithdrawBid(ctx context.Context, bidID, bidderID uuid.UUID) (*domain.Bid, error) {
	bid, err := s.bidRepo.Withdraw(ctx, bidID, bidderID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.BidWithdrawn{
		BidID:     bid.ID,
		ListingID: bid.ListingID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		Timestamp: time.Now().UTC(),
	})
	return bid, nil
}

// WithdrawAllForListing transitions every remaining active bid on a listing to
// withdrawn. Called by the synchronizer when a listing reaches a terminal
// state; the status guard inside the bulk update makes redelivery a no-op, so
// the handler is safely retryable. One BidWithdrawn event is emitted per bid
// actually transitioned.
func (s *BidService) WithdrawAllForListing(ctx context.Context, listingID uuid.UUID) error {
	withdrawn, err := s.bidRepo.WithdrawAllForListing(ctx, listingID, time.Now().UTC())
	if err != nil {
		return err
	}
	for _, bid := range withdrawn {
		s.bus.Publish(events.BidWithdrawn{
			BidID:     bid.ID,
			ListingID: bid.ListingID,
			BidderID:  bid.BidderID,
			Amount:    bid.Amount,
			Timestamp: time.Now().UTC(),
		})
	}
	if len(withdrawn) > 0 {
		s.logger.Info("withdrew outstanding bids for closed listing",
			"listing_id", listingID, "count", len(withdrawn))
	}
	return nil
}

// ClosedListingsWithActiveBids lists listings whose terminal cascade has not
// finished: they are withdrawn or sold yet still carry active bids, either
// because a cascade handler failed or because a bid slipped past the listing
// check just as the listing closed. Consumed by the synchronizer's periodic
// sweep.
func (s *BidService) ClosedListingsWithActiveBids(ctx context.Context) ([]uuid.UUID, error) {
	return s.bidRepo.ClosedListingsWithActiveBids(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetBid fetches a single bid. Implements the BidReader surface consumed by
// the listing lifecycle's accept-bid check.
func (s *BidService) GetBid(ctx context.Context, bidID uuid.UUID) (*domain.Bid, error) {
	return s.bidRepo.GetByID(ctx, bidID)
}

// GetBids returns the full bid history of a listing in placement order,
// withdrawn bids included.
func (s *BidService) GetBids(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error) {
	return s.bidRepo.GetByListing(ctx, listingID)
}

// GetCurrentHigh returns the current highest active bid on a listing, or nil
// when there is none. Recomputed from the ledger on every call.
func (s *BidService) GetCurrentHigh(ctx context.Context, listingID uuid.UUID) (*domain.Bid, error) {
	return s.bidRepo.GetCurrentHigh(ctx, listingID)
}

// GetMyBids returns the caller's bid history, newest first.
func (s *BidService) GetMyBids(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	return s.bidRepo.GetByBidder(ctx, bidderID, limit, offset)
}
