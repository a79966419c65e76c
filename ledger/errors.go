/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All ledger error types in one place for consistency and discoverability.
  Callers branch with errors.Is / errors.As; the HTTP layer maps these to
  status codes.

ERROR CATEGORIES:
  1. Validation errors  - caller-fixable, rejected with no side effects
  2. Business rejections - surfaced verbatim to the caller
  3. Store errors       - transient infrastructure faults, retryable
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidType is returned for a payment type outside {rent, tax, utility}.
	ErrInvalidType = errors.New("invalid payment type")

	// ErrInvalidAmount is returned for a payment amount that is not a
	// positive finite number.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrUnknownItem is returned when a redemption names an item that is
	// not in the catalog.
	ErrUnknownItem = errors.New("unknown reward item")

	// ErrInsufficientPoints is returned when a redemption costs more than
	// the user's current balance. The balance is left untouched.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrStoreUnavailable indicates a persistence-layer fault. The write
	// sequence is atomic, so a retry with the same request id is safe.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrBalanceDrift means the stored aggregate disagrees with the value
	// derived from transaction history. Reconcile repairs it.
	ErrBalanceDrift = errors.New("balance drift")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError reports how far short a redemption fell.
type InsufficientPointsError struct {
	UserID    string
	Available int64
	Required  int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: have %d, need %d", e.Available, e.Required)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// BalanceDriftError reports a stored aggregate that diverged from the
// derived value. Logged on detection; Reconcile writes the repair.
type BalanceDriftError struct {
	UserID  string
	Stored  RewardsBalance
	Derived RewardsBalance
}

func (e *BalanceDriftError) Error() string {
	return fmt.Sprintf("balance drift for %s: stored %d points, derived %d",
		e.UserID, e.Stored.Points, e.Derived.Points)
}

func (e *BalanceDriftError) Unwrap() error {
	return ErrBalanceDrift
}

// StoreError wraps a persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return ErrStoreUnavailable
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid input or a
// business-rule rejection, i.e. retrying the same call cannot succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownItem) ||
		errors.Is(err, ErrInsufficientPoints)
}

// IsRetryable reports whether the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
