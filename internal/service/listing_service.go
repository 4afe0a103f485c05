package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/unibazaar/marketplace/internal/domain"
	"github.com/unibazaar/marketplace/internal/events"
	"github.com/unibazaar/marketplace/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into ListingService to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// BidReader is the minimal interface ListingService needs from BidService:
// the accept-bid path must confirm the candidate bid is still active, and it
// does so through this query surface rather than by reading the ledger's
// storage.
type BidReader interface {
	GetBid(ctx context.Context, bidID uuid.UUID) (*domain.Bid, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// ListingService
// ──────────────────────────────────────────────────────────────────────────────

// ListingService owns the listing lifecycle: creation, display-field edits,
// and the single-shot active→{withdrawn,sold} transitions. Each transition is
// one conditional update, so it can only be advanced once no matter how many
// callers race; events are emitted strictly after the winning update commits.
//
// It also serves as the listing detail source the feed projector reads from.
type ListingService struct {
	listingRepo *repository.ListingRepository
	bids        BidReader // injected after BidService is built
	bus         *events.Bus
	logger      *slog.Logger
}

// NewListingService creates a ListingService.
func NewListingService(listingRepo *repository.ListingRepository, bus *events.Bus, logger *slog.Logger) *ListingService {
	return &ListingService{
		listingRepo: listingRepo,
		bus:         bus,
		logger:      logger,
	}
}

// SetBidReader injects the BidService dependency post-construction.
func (s *ListingService) SetBidReader(b BidReader) { s.bids = b }

// ──────────────────────────────────────────────────────────────────────────────
// Create / Update
// ──────────────────────────────────────────────────────────────────────────────

// Create inserts a new active listing and emits ListingCreated after commit.
func (s *ListingService) Create(ctx context.Context, req domain.CreateListingRequest) (*domain.Listing, error) {
	if strings.TrimSpace(req.Title) == "" || req.Price.IsNegative() {
		return nil, domain.ErrInvalidListingInput
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:            uuid.New(),
		SellerID:      req.SellerID,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Price:         req.Price,
		Tags:          normalizeTags(req.Tags),
		ImageURL:      req.ImageURL,
		Status:        domain.ListingStatusActive,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("listing_service.Create: %w", err)
	}

	s.bus.Publish(events.ListingCreated{
		ListingID: listing.ID,
		SellerID:  listing.SellerID,
		UpdatedAt: listing.LastUpdatedAt,
	})
	return listing, nil
}

// Update edits a listing's display fields. Only active listings accept edits;
// the repository's status guard enforces that atomically and bumps the logical
// timestamp the feed merges on. Emits ListingUpdated after commit.
func (s *ListingService) Update(ctx context.Context, listingID, sellerID uuid.UUID, req domain.UpdateListingRequest) (*domain.Listing, error) {
	if req.Price != nil && req.Price.IsNegative() {
		return nil, domain.ErrInvalidListingInput
	}
	if req.Tags != nil {
		req.Tags = normalizeTags(req.Tags)
	}

	listing, err := s.listingRepo.UpdateFields(ctx, listingID, sellerID, req, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.ListingUpdated{
		ListingID: listing.ID,
		SellerID:  listing.SellerID,
		UpdatedAt: listing.LastUpdatedAt,
	})
	return listing, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle transitions
// ──────────────────────────────────────────────────────────────────────────────

// Withdraw moves a listing active→withdrawn, seller-only, exactly once.
// Emits ListingWithdrawn after the transition commits; the cascade that
// withdraws the listing's outstanding bids and drops its feed entry is applied
// eventually by the synchronizer, not inside this call.
func (s *ListingService) Withdraw(ctx context.Context, listingID, sellerID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listingRepo.Transition(ctx, listingID, sellerID,
		domain.ListingStatusWithdrawn, nil, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.ListingWithdrawn{
		ListingID: listing.ID,
		SellerID:  listing.SellerID,
	})
	return listing, nil
}

// AcceptBid moves a listing active→sold and records the accepted bid, both in
// one conditional update.
//
// The candidate bid must belong to the listing and be active. The activity
// check is a final re-check performed immediately before the listing update;
// no transaction spans the ledger and the listing, so a withdrawal can still
// land inside the remaining window. That race resolves as "last lifecycle
// event wins": the sold transition commits, and the post-sale cascade
// withdraws whatever bids are still active. Buyer-visible effects (the
// ListingSold event) happen only after the sold status has durably committed.
func (s *ListingService) AcceptBid(ctx context.Context, listingID, sellerID, bidID uuid.UUID) (*domain.Listing, error) {
	if s.bids == nil {
		return nil, fmt.Errorf("listing_service.AcceptBid: bid reader not wired: %w",
			domain.ErrInvariantViolation)
	}
	bid, err := s.bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.ListingID != listingID {
		return nil, domain.ErrBidNotFound
	}
	if !bid.IsActive() {
		return nil, domain.ErrBidNotActive
	}

	listing, err := s.listingRepo.Transition(ctx, listingID, sellerID,
		domain.ListingStatusSold, &bidID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.ListingSold{
		ListingID:     listing.ID,
		SellerID:      listing.SellerID,
		AcceptedBidID: bidID,
	})
	return listing, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries & synchronizer hooks
// ──────────────────────────────────────────────────────────────────────────────

// GetListing fetches a listing by id. This is the listing detail source the
// feed projector consumes.
func (s *ListingService) GetListing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	return s.listingRepo.GetByID(ctx, listingID)
}

// ActiveListings returns all currently active listings, for feed reconciliation.
func (s *ListingService) ActiveListings(ctx context.Context) ([]*domain.Listing, error) {
	return s.listingRepo.ListActive(ctx)
}

// GetBySeller returns a seller's listings, newest first.
func (s *ListingService) GetBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Listing, error) {
	return s.listingRepo.GetBySeller(ctx, sellerID)
}

// CheckOpenForBids implements the ListingGate surface consumed by BidService:
// the listing must exist and still be active.
func (s *ListingService) CheckOpenForBids(ctx context.Context, listingID uuid.UUID) error {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if !listing.IsActive() {
		return domain.ErrListingNotActive
	}
	return nil
}

// RecordBidRef appends a bid id to the listing's append-only bid log. Called
// by the synchronizer on BidPlaced; idempotent under redelivery.
func (s *ListingService) RecordBidRef(ctx context.Context, listingID, bidID uuid.UUID) error {
	return s.listingRepo.AppendBidRef(ctx, listingID, bidID)
}

// normalizeTags trims, lowercases, and deduplicates tags, dropping empties.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
