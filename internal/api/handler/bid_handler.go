package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/unibazaar/marketplace/internal/api/middleware"
	"github.com/unibazaar/marketplace/internal/domain"
	"github.com/unibazaar/marketplace/internal/service"
)

// BidHandler serves bid placement, withdrawal and query endpoints.
type BidHandler struct {
	bidSvc *service.BidService
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(bidSvc *service.BidService) *BidHandler {
	return &BidHandler{bidSvc: bidSvc}
}

// PlaceBid godoc
// POST /api/bids [JWT]
// Body: {"listing_id":"uuid","amount":"45.00"}
func (h *BidHandler) PlaceBid(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		ListingID string `json:"listing_id" binding:"required"`
		Amount    string `json:"amount"     binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	listingID, err := uuid.Parse(body.ListingID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING_ID", "invalid listing_id format")
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	req := domain.PlaceBidRequest{
		ListingID: listingID,
		BidderID:  userID,
		Amount:    amount,
	}

	bid, err := h.bidSvc.PlaceBid(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", err.Error())
		case errors.Is(err, domain.ErrListingNotFound):
			respondError(c, http.StatusNotFound, "ERR_LISTING_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrListingNotActive):
			respondError(c, http.StatusConflict, "ERR_LISTING_NOT_ACTIVE", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not place bid")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, bid.ToResponse())
}

// WithdrawBid godoc
// POST /api/bids/:id/withdraw [JWT]
func (h *BidHandler) WithdrawBid(c *gin.Context) {
	userID := middleware.GetUserID(c)

	bidID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BID_ID", "invalid bid id")
		return
	}

	bid, err := h.bidSvc.WithdrawBid(c.Request.Context(), bidID, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBidNotFound):
			respondError(c, http.StatusNotFound, "ERR_BID_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrNotBidOwner):
			respondError(c, http.StatusForbidden, "ERR_NOT_BID_OWNER", "this bid does not belong to you")
		case errors.Is(err, domain.ErrBidAlreadyWithdrawn):
			respondError(c, http.StatusConflict, "ERR_BID_ALREADY_WITHDRAWN", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not withdraw bid")
		}
		return
	}
	respondSuccess(c, http.StatusOK, bid.ToResponse())
}

// GetMyBids godoc
// GET /api/bids/my?page=1&limit=20 [JWT]
func (h *BidHandler) GetMyBids(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	bids, err := h.bidSvc.GetMyBids(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bids")
		return
	}
	out := make([]domain.BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, b.ToResponse())
	}
	respondList(c, out, len(out), page, limit)
}

// GetBidByID godoc
// GET /api/bids/:id [JWT]
func (h *BidHandler) GetBidByID(c *gin.Context) {
	bidID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BID_ID", "invalid bid id")
		return
	}

	bid, err := h.bidSvc.GetBid(c.Request.Context(), bidID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBidNotFound):
			respondError(c, http.StatusNotFound, "ERR_BID_NOT_FOUND", "bid not found")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bid")
		}
		return
	}
	respondSuccess(c, http.StatusOK, bid.ToResponse())
}

// GetListingBids godoc
// GET /api/listings/:id/bids
func (h *BidHandler) GetListingBids(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING_ID", "invalid listing id")
		return
	}

	bids, err := h.bidSvc.GetBids(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bids")
		return
	}
	out := make([]domain.BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, b.ToResponse())
	}
	respondSuccess(c, http.StatusOK, out)
}

// GetCurrentHigh godoc
// GET /api/listings/:id/bids/high
// Responds with the highest active bid, or null data when there are none.
func (h *BidHandler) GetCurrentHigh(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING_ID", "invalid listing id")
		return
	}

	bid, err := h.bidSvc.GetCurrentHigh(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch current high")
		return
	}
	if bid == nil {
		respondSuccess(c, http.StatusOK, nil)
		return
	}
	respondSuccess(c, http.StatusOK, bid.ToResponse())
}
