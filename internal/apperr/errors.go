package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid request")
	ErrLastDay       = errors.New("cannot remove the last remaining day")
	ErrStaleSession  = errors.New("session no longer shows this trip")
)

// Failure is a persistence failure converted for display. Message is what the
// user sees; Err keeps the cause for logs and errors.Is.
type Failure struct {
	Op      string
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// NewFailure wraps err as a user-facing failure of op.
func NewFailure(op string, err error) *Failure {
	return &Failure{Op: op, Message: Message(op, err), Err: err}
}

// Message renders the user-facing text for a failed operation.
func Message(op string, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "Could not " + op + ": the trip or item no longer exists."
	case errors.Is(err, ErrConflict):
		return "Could not " + op + ": someone else changed this trip. Reload and try again."
	case errors.Is(err, ErrLastDay):
		return "Could not " + op + ": a trip needs at least one day."
	case errors.Is(err, ErrInvalid):
		return "Could not " + op + ": " + err.Error() + "."
	default:
		return "Could not " + op + ". Please try again."
	}
}
