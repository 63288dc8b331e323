package settlement

import "errors"

var (
	// Business-rule failures: terminal FAILED, audited, notified, never retried.
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrStockNotFound       = errors.New("stock not found")
	ErrExceedingStockLimit = errors.New("exceeding system stock limit")

	// ErrIntakeFailed wraps a cache or publish failure during intake. The
	// intent was compensated away; the caller may retry the whole request.
	ErrIntakeFailed = errors.New("order intake failed")

	// ErrLockNotAcquired means the attempt was abandoned before any
	// mutation; the event must not be committed so the broker redelivers.
	ErrLockNotAcquired = errors.New("order lock not acquired")

	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderIDRequired = errors.New("order id required")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)
