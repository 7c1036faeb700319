package domain

import "errors"

// Sentinel errors for business-rule violations. Callers match with
// errors.Is; wrapping sites attach the account/position id context.
var (
	// ErrInvalidInput indicates a malformed quantity, leverage, or symbol.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAccountNotActive indicates the account is not in active status.
	ErrAccountNotActive = errors.New("account is not active")

	// ErrAccountClosed indicates a mutation attempt on a terminal account.
	ErrAccountClosed = errors.New("account is closed")

	// ErrInvalidTransition indicates a disallowed account status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPositionNotFound indicates the position does not exist or does not
	// belong to the given account.
	ErrPositionNotFound = errors.New("position not found")

	// ErrPositionNotOpen indicates the position is already closed or liquidated.
	ErrPositionNotOpen = errors.New("position is not open")

	// ErrInsufficientMargin indicates the margin requirement exceeds the
	// usable balance.
	ErrInsufficientMargin = errors.New("insufficient balance for this trade")

	// ErrPriceUnavailable indicates the price lookup collaborator failed.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrStorageFailure indicates the persistent store rejected a write after
	// a valid decision; the whole operation rolled back and may be retried.
	ErrStorageFailure = errors.New("storage failure")

	// ErrLockTimeout indicates the per-account critical section could not be
	// acquired in time; the operation may be retried.
	ErrLockTimeout = errors.New("account lock timeout")
)
