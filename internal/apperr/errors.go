package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a uniqueness conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound is used for missing shipments, missing tracking codes and
// lookups the caller is not allowed to see alike.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition means the target status is not a successor of the current one.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrTerminalState means the shipment already reached delivered, failed or returned.
var ErrTerminalState = errors.New("shipment is in a terminal state")

// ErrFixRequired rejects a delivery without a recent location fix or a signature override.
var ErrFixRequired = errors.New("delivery requires a recent location fix or signature override")

// ErrNotTrackable rejects samples for shipments that are not on the road.
var ErrNotTrackable = errors.New("shipment is not trackable")

// ErrInvalidTimestamp rejects samples recorded too far in the future.
var ErrInvalidTimestamp = errors.New("invalid sample timestamp")
