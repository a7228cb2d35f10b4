package binding

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLabelID is returned when a label id cannot be decoded into key and value.
	ErrInvalidLabelID = errors.New("invalid label id")
	// ErrNoMatch is returned when a label selects no workloads or no clusters.
	ErrNoMatch = errors.New("no matching workloads or clusters")
	// ErrBackend is returned when the binding-policy backend rejects or fails a request.
	ErrBackend = errors.New("binding backend request failed")
	// ErrDuplicateItem is returned when an item is already on the canvas.
	ErrDuplicateItem = errors.New("item already on canvas")
	// ErrIncompleteCanvas is returned when a policy is prepared without both sides of the canvas.
	ErrIncompleteCanvas = errors.New("both clusters and workloads are required to create binding policies")
	// ErrNoDraft is returned when deploy is requested before a policy was previewed.
	ErrNoDraft = errors.New("no binding policy prepared")
)

// BackendError carries the response of a failed backend call.
type BackendError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Operation, e.Body)
	}
	return fmt.Sprintf("%s failed: status=%d body=%s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap lets callers match any BackendError with errors.Is(err, ErrBackend).
func (e *BackendError) Unwrap() error {
	return ErrBackend
}
