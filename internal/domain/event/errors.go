package event

import "errors"

// ErrNotFound is returned when an event does not exist in the current tenant.
var ErrNotFound = errors.New("event not found")

// ErrStateChanged is returned by repository writes when the guarded update
// matched no rows because the confirmation state moved concurrently. Callers
// re-read the event to report the state that won.
var ErrStateChanged = errors.New("event confirmation state changed")

// ConflictError reports that an operation is not allowed in the event's
// current confirmation state.
type ConflictError struct {
	State  ConfirmationState `json:"confirmation_state"`
	Reason string            `json:"reason"`
}

func (e *ConflictError) Error() string { return e.Reason }

// AsConflict returns the ConflictError wrapped in err, or nil.
func AsConflict(err error) *ConflictError {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}
