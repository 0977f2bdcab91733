package panoptes

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound marks a 404 from the platform: the entity was deleted or
// never existed. Callers recover from this locally (pruning, lookup
// fallback); it is never fatal.
var ErrNotFound = errors.New("panoptes: not found")

// ErrAlreadyLinked marks the platform rejecting a duplicate link between
// a workflow and a subject set. Expected during idempotent re-runs.
var ErrAlreadyLinked = errors.New("panoptes: already linked")

// APIError is any non-2xx platform response. 404 and 409 unwrap to the
// sentinel errors above; everything else is unexpected and propagates to
// the top-level caller.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("panoptes: API error %d", e.StatusCode)
	}
	return fmt.Sprintf("panoptes: API error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrAlreadyLinked
	default:
		return nil
	}
}
