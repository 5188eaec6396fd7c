package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateReference = errors.New("conflict: donation reference already exists")
	ErrInvalidDonor       = errors.New("donor name must not be empty")
	ErrInvalidAmount      = errors.New("amount must be a decimal with two fraction digits, e.g. 100.00")
	ErrInvalidCurrency    = errors.New("currency must be a three-letter ISO code")
	ErrMissingToken       = errors.New("transient card token is required")
	ErrRateLimited        = errors.New("too many attempts from this address, try again later")
	ErrQueueFull          = errors.New("dispatch queue is at capacity, try again later")
)
