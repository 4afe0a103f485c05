package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/unibazaar/marketplace/internal/config"
	"github.com/unibazaar/marketplace/internal/domain"
	"github.com/unibazaar/marketplace/internal/events"
	"github.com/unibazaar/marketplace/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into FeedService to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// ListingSource is the minimal interface FeedService needs from
// ListingService. The projector never reads the listing store directly; full
// snapshots come only through this surface.
type ListingSource interface {
	GetListing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error)
	ActiveListings(ctx context.Context) ([]*domain.Listing, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// FeedService
// ──────────────────────────────────────────────────────────────────────────────

// FeedService maintains the denormalized browsing feed. It is purely a read
// model: handlers are idempotent and order-tolerant, merging snapshots
// last-writer-wins on the listing's logical timestamp and giving terminal
// removals unconditional priority. The whole projection is reconstructable
// from the listing source at any time (see Reconcile).
type FeedService struct {
	feedRepo *repository.FeedRepository
	source   ListingSource
	bus      *events.Bus
	cfg      *config.Config
	logger   *slog.Logger
}

// NewFeedService creates a FeedService.
func NewFeedService(
	feedRepo *repository.FeedRepository,
	source ListingSource,
	bus *events.Bus,
	cfg *config.Config,
	logger *slog.Logger,
) *FeedService {
	return &FeedService{
		feedRepo: feedRepo,
		source:   source,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Projection handlers (called by the synchronizer)
// ──────────────────────────────────────────────────────────────────────────────

// ApplyListingChange refreshes the feed entry for one listing from the detail
// source. If the fetch fails, the event is dropped with a logged warning and
// the feed stays at its last known-good state — no partial entries are ever
// written. A listing found in a terminal state is tombstoned instead, which
// also makes a late create-event for an already-closed listing converge.
func (s *FeedService) ApplyListingChange(ctx context.Context, listingID uuid.UUID) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Feed.SourceTimeout)
	defer cancel()

	listing, err := s.source.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			s.logger.Warn("feed: listing vanished, dropping event", "listing_id", listingID)
			return
		}
		s.logger.Warn("feed: listing source fetch failed, dropping event",
			"listing_id", listingID, "err", errors.Join(domain.ErrListingSourceUnavailable, err))
		return
	}

	if !listing.IsActive() {
		s.RemoveListing(ctx, listingID)
		return
	}

	applied, err := s.feedRepo.Upsert(ctx, domain.FeedSnapshot(listing))
	if err != nil {
		s.logger.Error("feed: upsert failed", "listing_id", listingID, "err", err)
		return
	}
	if applied {
		s.bus.Publish(events.FeedUpdated{ListingID: listingID, Reason: "upsert"})
	}
}

// RemoveListing tombstones a listing's feed entry. Terminal events always
// win, so no timestamp comparison applies; redelivery is a no-op.
func (s *FeedService) RemoveListing(ctx context.Context, listingID uuid.UUID) {
	if err := s.feedRepo.Remove(ctx, listingID, time.Now().UTC()); err != nil {
		s.logger.Error("feed: remove failed", "listing_id", listingID, "err", err)
		return
	}
	s.bus.Publish(events.FeedUpdated{ListingID: listingID, Reason: "remove"})
}

// Reconcile rebuilds the projection from the source of truth: every active
// listing is re-upserted and every feed entry whose listing is no longer
// active is tombstoned. This is the backstop for events the bus lost — the
// bus guarantees neither delivery nor ordering, so staleness is bounded by
// the reconcile interval rather than by luck.
func (s *FeedService) Reconcile(ctx context.Context) error {
	listings, err := s.source.ActiveListings(ctx)
	if err != nil {
		return fmt.Errorf("feed_service.Reconcile: list active: %w", err)
	}

	active := make(map[uuid.UUID]bool, len(listings))
	for _, l := range listings {
		active[l.ID] = true
		if _, err := s.feedRepo.Upsert(ctx, domain.FeedSnapshot(l)); err != nil {
			s.logger.Error("feed: reconcile upsert failed", "listing_id", l.ID, "err", err)
		}
	}

	entryIDs, err := s.feedRepo.ActiveListingIDs(ctx)
	if err != nil {
		return fmt.Errorf("feed_service.Reconcile: list entries: %w", err)
	}
	removed := 0
	for _, id := range entryIDs {
		if active[id] {
			continue
		}
		if err := s.feedRepo.Remove(ctx, id, time.Now().UTC()); err != nil {
			s.logger.Error("feed: reconcile remove failed", "listing_id", id, "err", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.bus.Publish(events.FeedUpdated{Reason: "reconcile"})
	}
	s.logger.Debug("feed reconciled", "active", len(listings), "removed", removed)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries — served purely from the local denormalized store
// ──────────────────────────────────────────────────────────────────────────────

// GetLatest returns the n most recently created active entries, newest first.
// n must be positive; it is capped at the configured maximum page size.
func (s *FeedService) GetLatest(ctx context.Context, n int) ([]*domain.FeedEntry, error) {
	if n <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	return s.feedRepo.Query(ctx, domain.FeedQuery{Limit: s.capLimit(n)})
}

// FilterByTags returns active entries carrying at least one of the given tags.
func (s *FeedService) FilterByTags(ctx context.Context, tags []string, n int) ([]*domain.FeedEntry, error) {
	if n <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	return s.feedRepo.Query(ctx, domain.FeedQuery{Tags: normalizeTags(tags), Limit: s.capLimit(n)})
}

// FilterByPrice returns active entries with min ≤ price ≤ max (inclusive).
func (s *FeedService) FilterByPrice(ctx context.Context, min, max decimal.Decimal, n int) ([]*domain.FeedEntry, error) {
	if n <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	if err := domain.ValidatePriceRange(min, max); err != nil {
		return nil, err
	}
	return s.feedRepo.Query(ctx, domain.FeedQuery{
		MinPrice: &min,
		MaxPrice: &max,
		Limit:    s.capLimit(n),
	})
}

// FilterByTagsAndPrice returns the conjunction of the tag and price filters.
func (s *FeedService) FilterByTagsAndPrice(ctx context.Context, tags []string, min, max decimal.Decimal, n int) ([]*domain.FeedEntry, error) {
	if n <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	if err := domain.ValidatePriceRange(min, max); err != nil {
		return nil, err
	}
	return s.feedRepo.Query(ctx, domain.FeedQuery{
		Tags:     normalizeTags(tags),
		MinPrice: &min,
		MaxPrice: &max,
		Limit:    s.capLimit(n),
	})
}

func (s *FeedService) capLimit(n int) int {
	if n > s.cfg.Feed.MaxLimit {
		return s.cfg.Feed.MaxLimit
	}
	return n
}
