// README: Error taxonomy shared by the settlement engine and its adapters.
package errs

import "errors"

// Domain rule violations. These are recoverable and must never be retried automatically.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidBidState   = errors.New("invalid bid state")
	ErrBookingNotOpen    = errors.New("booking is not open for bids")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("concurrent modification conflict")
)

// ErrStorageUnavailable marks connectivity failures of the persistence layer.
// Callers may retry these with backoff.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Retryable reports whether err is worth retrying at the caller level.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsDomain reports whether err is one of the recoverable domain rule violations.
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrBadRequest, ErrInvalidAmount, ErrInvalidTransition, ErrInvalidBidState,
		ErrBookingNotOpen, ErrUnauthorized, ErrForbidden, ErrUnauthenticated,
		ErrNotFound, ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
