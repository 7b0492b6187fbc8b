package domain

import "errors"

// ErrNotATripThread is returned when a command targets a thread that has no
// live Trip Cache entry. It is a user error: the handler answers with an
// ephemeral "not a trip thread" message and nothing changes.
var ErrNotATripThread = errors.New("not a trip thread")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. unparsable amount, empty thread name).
// Validation always happens before any shared state is touched.
var ErrValidation = errors.New("validation error")

// ErrAlreadyExists is returned by the trip cache when a thread already has
// an entry. It guards against binding the same thread twice.
var ErrAlreadyExists = errors.New("already exists")

// ErrUnknownField is returned by set-field for a field name the trip record
// does not have. The operation is a no-op.
var ErrUnknownField = errors.New("unknown field")

// ErrPlatform marks a failed outbound call to the chat platform. It is
// joined with the underlying client error so callers can still extract
// the raw platform message with errors.As.
var ErrPlatform = errors.New("platform error")
