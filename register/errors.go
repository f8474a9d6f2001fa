/*
errors.go - Centralized error types for the register core

ERROR CATEGORIES:
  1. NotFound    - referenced request/asset/entry does not exist
  2. Conflict    - a precondition failed (asset unavailable, entry already
                   returned, quantity mismatch, duplicate ids, re-assignment)
  3. Transient   - store transaction aborted; the whole call is retryable
  4. Validation  - malformed input, rejected before any store access

Batch operations report ALL offending ids in one error so a caller can
correct the entire batch in one round trip.

USAGE:
  var unavailable *register.UnavailableAssetsError
  if errors.As(err, &unavailable) {
      // unavailable.AssetIDs lists every blocked asset
  }
*/
package register

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRequestNotFound is returned when a custody request id does not resolve.
	ErrRequestNotFound = errors.New("custody request not found")

	// ErrAssetNotFound is returned when an asset id does not resolve.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrEntryNotFound is returned when a register id does not resolve.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrHolderNotFound is returned when the requester identity cannot be resolved.
	ErrHolderNotFound = errors.New("holder not found")

	// ErrAssetsUnavailable is returned when any asset in a batch is not available.
	ErrAssetsUnavailable = errors.New("assets unavailable")

	// ErrAlreadyReturned is returned when any entry in a return batch is
	// already completed.
	ErrAlreadyReturned = errors.New("entries already returned")

	// ErrRequestNotAssignable is returned when the request is not in a state
	// that accepts assignment (already assigned, rejected, or still pending).
	ErrRequestNotAssignable = errors.New("request not assignable")

	// ErrQuantityMismatch is returned when the asset batch size does not match
	// the requested quantity. Partial assignment is rejected.
	ErrQuantityMismatch = errors.New("asset count does not match requested quantity")

	// ErrDuplicateAssets is returned when the same asset id appears twice in
	// one assignment batch.
	ErrDuplicateAssets = errors.New("duplicate asset ids in batch")

	// ErrValidation is returned for malformed input before any store access.
	ErrValidation = errors.New("invalid input")

	// ErrStoreConflict is returned when the backing store aborts a transaction
	// due to contention. The whole call is safe to retry.
	ErrStoreConflict = errors.New("store transaction conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the offending ids
// =============================================================================

// UnavailableAssetsError lists every asset in the batch that blocked the
// assignment, so the caller can correct the batch in one pass.
type UnavailableAssetsError struct {
	AssetIDs []string
}

func (e *UnavailableAssetsError) Error() string {
	return fmt.Sprintf("assets unavailable: %s", strings.Join(e.AssetIDs, ", "))
}

func (e *UnavailableAssetsError) Unwrap() error { return ErrAssetsUnavailable }

// AlreadyReturnedError lists every entry in the batch that is already
// completed.
type AlreadyReturnedError struct {
	RegisterIDs []string
}

func (e *AlreadyReturnedError) Error() string {
	return fmt.Sprintf("entries already returned: %s", strings.Join(e.RegisterIDs, ", "))
}

func (e *AlreadyReturnedError) Unwrap() error { return ErrAlreadyReturned }

// QuantityMismatchError reports the expected and submitted batch sizes.
type QuantityMismatchError struct {
	Requested int
	Submitted int
}

func (e *QuantityMismatchError) Error() string {
	return fmt.Sprintf("request wants %d assets, batch has %d", e.Requested, e.Submitted)
}

func (e *QuantityMismatchError) Unwrap() error { return ErrQuantityMismatch }

// NotAssignableError reports the request's current status when assignment
// is rejected. A second Assign call with the same request id lands here.
type NotAssignableError struct {
	RequestID string
	Status    RequestStatus
}

func (e *NotAssignableError) Error() string {
	return fmt.Sprintf("request %s is in state %s", e.RequestID, e.Status)
}

func (e *NotAssignableError) Unwrap() error { return ErrRequestNotAssignable }

// ValidationError reports a malformed field before any store access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the whole call might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreConflict)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrAssetNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrHolderNotFound)
}

// IsConflict returns true if a precondition failed and the caller must
// correct the batch before resubmitting.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAssetsUnavailable) ||
		errors.Is(err, ErrAlreadyReturned) ||
		errors.Is(err, ErrRequestNotAssignable) ||
		errors.Is(err, ErrQuantityMismatch) ||
		errors.Is(err, ErrDuplicateAssets)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return IsConflict(err) || errors.Is(err, ErrValidation)
}
