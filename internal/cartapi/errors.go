package cartapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrItemNotFound means the item is not in the remote cart snapshot.
	ErrItemNotFound = errors.New("item not found in cart")
	// ErrClearFailed marks a ClearAll that stopped partway.
	ErrClearFailed = errors.New("clear cart failed")
)

// NetworkError describes a transport failure or a non-2xx response.
type NetworkError struct {
	Op     string
	Status int    // zero for transport failures
	Body   string // trimmed response body, if any
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": network error"
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Transient reports whether retrying could help: transport failures, 408,
// 429 and 5xx.
func (e *NetworkError) Transient() bool {
	if e.Status == 0 {
		return true
	}
	return e.Status == http.StatusRequestTimeout ||
		e.Status == http.StatusTooManyRequests ||
		e.Status >= 500
}

// IsNetworkError reports whether err carries a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
