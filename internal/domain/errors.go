package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Bid errors
var (
	// ErrBidNotFound is returned when no bid matches the given id.
	ErrBidNotFound = errors.New("bid not found")

	// ErrInvalidAmount is returned when a bid amount is zero or negative.
	ErrInvalidAmount = errors.New("bid amount must be positive")

	// ErrBidAlreadyWithdrawn is returned when withdrawing a bid that is no
	// longer active. Withdrawn is terminal for bids.
	ErrBidAlreadyWithdrawn = errors.New("bid is already withdrawn")

	// ErrBidNotActive is returned when accepting a bid that has been withdrawn.
	ErrBidNotActive = errors.New("bid is not active")

	// ErrNotBidOwner is returned when someone other than the bidder tries to
	// withdraw a bid.
	ErrNotBidOwner = errors.New("caller is not the owner of this bid")
)

// Listing errors
var (
	// ErrListingNotFound is returned when no listing matches the given id.
	ErrListingNotFound = errors.New("listing not found")

	// ErrListingNotActive is returned when a mutation is attempted on a listing
	// that has reached a terminal state (withdrawn or sold).
	ErrListingNotActive = errors.New("listing is not active")

	// ErrNotSeller is returned when someone other than the recorded seller
	// tries to withdraw a listing or accept a bid on it.
	ErrNotSeller = errors.New("caller is not the seller of this listing")

	// ErrInvalidListingInput is returned when listing fields fail validation
	// (empty title, negative price).
	ErrInvalidListingInput = errors.New("invalid listing fields")
)

// Feed errors
var (
	// ErrInvalidLimit is returned when a feed page size is zero or negative.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidPriceRange is returned when min/max are negative or min > max.
	ErrInvalidPriceRange = errors.New("invalid price range")

	// ErrListingSourceUnavailable is returned when the listing detail source
	// cannot be reached while projecting the feed.
	ErrListingSourceUnavailable = errors.New("listing source unavailable")
)

// User / auth errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned on registration when the email already exists.
	ErrEmailTaken = errors.New("email address is already registered")

	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserInactive is returned when a suspended account attempts an action.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ErrInvariantViolation is returned when a conditional update matched no row
// and the follow-up read cannot explain why (the record exists, is owned by
// the caller, and is still active). It indicates a logic defect, never a
// normal domain outcome, and must not be mapped to a not-found response.
var ErrInvariantViolation = errors.New("storage invariant violation")

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrBidNotFound,
	ErrListingNotFound,
	ErrUserNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors. Use this instead of comparing error values
// directly when translating domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a terminal-state conflict
// (e.g. double-withdrawal or mutating a sold listing).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrBidAlreadyWithdrawn,
		ErrBidNotActive,
		ErrListingNotActive,
		ErrEmailTaken,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsInvalidInput returns true for validation errors that fail before any
// storage access.
func IsInvalidInput(err error) bool {
	invalidErrors := []error{
		ErrInvalidAmount,
		ErrInvalidLimit,
		ErrInvalidPriceRange,
		ErrInvalidListingInput,
	}
	for _, target := range invalidErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrTokenInvalid,
		ErrInvalidCredentials,
		ErrNotBidOwner,
		ErrNotSeller,
		ErrUserInactive,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
