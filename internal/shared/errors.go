package shared

import "errors"

var (
	// ErrUnauthenticated indicates no valid actor on the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the actor is authenticated but not allowed.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates a referenced resource is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a concurrent mutation invalidated a precondition.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput indicates the request was rejected before any mutation.
	ErrInvalidInput = errors.New("invalid input")
)

// UserSafeMessage returns a message that can be shown to API clients without
// leaking internals. Only the sentinel taxonomy is surfaced verbatim.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "authentication required"
	case errors.Is(err, ErrForbidden):
		return "you are not allowed to perform this action"
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrConflict):
		return "the resource changed concurrently, please retry"
	case errors.Is(err, ErrInvalidInput):
		return "request is invalid"
	default:
		return "internal error"
	}
}
