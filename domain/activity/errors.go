package activity

import "errors"

// Sentinel errors (exported for error checking via errors.Is).
var (
	// ErrNotFound is returned when an event does not exist or does not
	// belong to the requested subject.
	ErrNotFound = errors.New("event not found")
	// ErrForbidden is returned when a non-owner attempts an owner-only
	// operation.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports rejected input. The message is safe to show to
// the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
