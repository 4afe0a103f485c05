package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/unibazaar/marketplace/internal/domain"
	"github.com/unibazaar/marketplace/internal/service"
)

// FeedHandler serves the public browse feed.
type FeedHandler struct {
	feedSvc *service.FeedService
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(feedSvc *service.FeedService) *FeedHandler {
	return &FeedHandler{feedSvc: feedSvc}
}

// GetFeed godoc
// GET /api/feed?tags=books,math&min_price=10&max_price=50&limit=20
//
// All filters are optional. Tags match any-of; price bounds are inclusive.
func (h *FeedHandler) GetFeed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	tags := parseTags(c.Query("tags"))

	minStr, maxStr := c.Query("min_price"), c.Query("max_price")
	hasPrice := minStr != "" || maxStr != ""

	var minPrice, maxPrice decimal.Decimal
	if hasPrice {
		var err error
		if minPrice, err = parsePriceParam(minStr, decimal.Zero); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_PRICE", "min_price must be a decimal string")
			return
		}
		// Absent upper bound means "no ceiling".
		ceiling := decimal.New(1, 12)
		if maxPrice, err = parsePriceParam(maxStr, ceiling); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_PRICE", "max_price must be a decimal string")
			return
		}
	}

	var (
		entries []*domain.FeedEntry
		err     error
	)
	ctx := c.Request.Context()
	switch {
	case len(tags) > 0 && hasPrice:
		entries, err = h.feedSvc.FilterByTagsAndPrice(ctx, tags, minPrice, maxPrice, limit)
	case len(tags) > 0:
		entries, err = h.feedSvc.FilterByTags(ctx, tags, limit)
	case hasPrice:
		entries, err = h.feedSvc.FilterByPrice(ctx, minPrice, maxPrice, limit)
	default:
		entries, err = h.feedSvc.GetLatest(ctx, limit)
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPriceRange):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_PRICE_RANGE", err.Error())
		case errors.Is(err, domain.ErrInvalidLimit):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_LIMIT", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch feed")
		}
		return
	}
	respondSuccess(c, http.StatusOK, entries)
}

// parseTags splits a comma separated tag list, dropping empty segments.
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parsePriceParam(raw string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return fallback, nil
	}
	return decimal.NewFromString(raw)
}
