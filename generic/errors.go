/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Rejected before anything is written
  2. Lookup errors - Referenced item does not exist
  3. Funding errors - Cash balance does not cover a purchase
  4. Store errors - Database-level failures

USAGE:
  if errors.Is(err, generic.ErrInsufficientFunds) {
      var fe *generic.InsufficientFundsError
      errors.As(err, &fe)
      log.Printf("short by %s", fe.Shortfall)
  }

SEE ALSO:
  - ledger.go: Returns ValidationError
  - inventory/reorder.go: Returns NotFoundError, InsufficientFundsError
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced item doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds is returned when cash does not cover a purchase.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOrderRejected is returned when fulfilling a quote with unavailable lines.
	ErrOrderRejected = errors.New("order rejected: unavailable items")

	// ErrTransactionFailed is returned when a transaction cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrLockNotAcquired is returned when the append lock stays busy.
	ErrLockNotAcquired = errors.New("ledger lock not acquired")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing item.
type NotFoundError struct {
	ItemName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item %q not found in inventory", e.ItemName)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientFundsError provides details about a cash shortage.
type InsufficientFundsError struct {
	ItemName  string
	Quantity  int
	Required  decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds to order %d units of %s: required $%s, available $%s",
		e.Quantity, e.ItemName, e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a business rule the client can act on.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrOrderRejected)
}

// IsNotFound returns true if the error indicates a missing item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
// Funding failures are deliberately not retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockNotAcquired)
}
