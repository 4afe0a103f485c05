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

// ListingHandler serves listing CRUD and lifecycle endpoints.
type ListingHandler struct {
	listingSvc *service.ListingService
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(listingSvc *service.ListingService) *ListingHandler {
	return &ListingHandler{listingSvc: listingSvc}
}

// Create godoc
// POST /api/listings [JWT]
// Body: {"title":"...","description":"...","price":"120.00","tags":["books"],"image_url":"..."}
func (h *ListingHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		Title       string   `json:"title"       binding:"required"`
		Description string   `json:"description"`
		Price       string   `json:"price"       binding:"required"`
		Tags        []string `json:"tags"`
		ImageURL    string   `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	price, err := decimal.NewFromString(body.Price)
	if err != nil || price.IsNegative() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_PRICE", "price must be a non-negative decimal string")
		return
	}

	req := domain.CreateListingRequest{
		SellerID:    userID,
		Title:       body.Title,
		Description: body.Description,
		Price:       price,
		Tags:        body.Tags,
		ImageURL:    body.ImageURL,
	}

	listing, err := h.listingSvc.Create(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidListingInput):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not create listing")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, listing.ToResponse())
}

// Update godoc
// PATCH /api/listings/:id [JWT, seller only]
// Omitted fields are left unchanged.
func (h *ListingHandler) Update(c *gin.Context) {
	userID := middleware.GetUserID(c)

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING_ID", "invalid listing id")
		return
	}

	var body struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Price       *string  `json:"price"`
		Tags        []string `json:"tags"`
		ImageURL    *string  `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	req := domain.UpdateListingRequest{
		Title:       body.Title,
		Description: body.Description,
		Tags:        body.Tags,
		ImageURL:    body.ImageURL,
	}
	if body.Price != nil {
		price, err := decimal.NewFromString(*body.Price)
		if err != nil || price.IsNegative() {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_PRICE", "price must be a non-negative decimal string")
			return
		}
		req.Price = &price
	}

	listing, err := h.listingSvc.Update(c.Request.Context(), listingID, userID, req)
	if err != nil {
		h.respondLifecycleError(c, err, "could not update listing")
		return
	}
	respondSuccess(c, http.StatusOK, listing.ToResponse())
}

// Withdraw godoc
// POST /api/listings/:id/withdraw [JWT, seller only]
func (h *ListingHandler) Withdraw(c *gin.Context) {
	userID := middleware.GetUserID(c)

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING_ID", "invalid listing id")
		return
	}

	listing, err := h.listingSvc.Withdraw(c.Request.Context(), listingID, userID)
	if err != nil {
		h.respondLifecycleError(c, err, "could not withdraw listing")
		return
	}
	respondSuccess(c, http.StatusOK, listing.ToResponse())
}

// AcceptBid godoc
// POST /api/listings/:id/accept/:bidID [JWT, seller only]
func (h *ListingHandler) AcceptBid(c *gin.Context) {
	userID := middleware.GetUserID(c)

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING_ID", "invalid listing id")
		return
	}
	bidID, err := uuid.Parse(c.Param("bidID"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BID_ID", "invalid bid id")
		return
	}

	listing, err := h.listingSvc.AcceptBid(c.Request.Context(), listingID, userID, bidID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBidNotFound):
			respondError(c, http.StatusNotFound, "ERR_BID_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrBidNotActive):
			respondError(c, http.StatusConflict, "ERR_BID_NOT_ACTIVE", err.Error())
		default:
			h.respondLifecycleError(c, err, "could not accept bid")
		}
		return
	}
	respondSuccess(c, http.StatusOK, listing.ToResponse())
}

// GetByID godoc
// GET /api/listings/:id
func (h *ListingHandler) GetByID(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING_ID", "invalid listing id")
		return
	}

	listing, err := h.listingSvc.GetListing(c.Request.Context(), listingID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrListingNotFound):
			respondError(c, http.StatusNotFound, "ERR_LISTING_NOT_FOUND", "listing not found")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch listing")
		}
		return
	}
	respondSuccess(c, http.StatusOK, listing.ToResponse())
}

// GetMine godoc
// GET /api/listings/my [JWT]
func (h *ListingHandler) GetMine(c *gin.Context) {
	userID := middleware.GetUserID(c)

	listings, err := h.listingSvc.GetBySeller(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch listings")
		return
	}
	out := make([]domain.ListingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ToResponse())
	}
	respondSuccess(c, http.StatusOK, out)
}

// respondLifecycleError maps the shared ownership and state errors of listing
// mutations to HTTP statuses.
func (h *ListingHandler) respondLifecycleError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrListingNotFound):
		respondError(c, http.StatusNotFound, "ERR_LISTING_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrNotSeller):
		respondError(c, http.StatusForbidden, "ERR_NOT_SELLER", "this listing does not belong to you")
	case errors.Is(err, domain.ErrListingNotActive):
		respondError(c, http.StatusConflict, "ERR_LISTING_NOT_ACTIVE", err.Error())
	case errors.Is(err, domain.ErrInvalidListingInput):
		respondError(c, http.StatusBadRequest, "ERR_INVALID_LISTING", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", fallback)
	}
}
