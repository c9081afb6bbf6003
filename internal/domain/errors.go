package domain

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrNoSelection       = errors.New("no selection available")
)

// ErrorKind names a user-facing failure class.
type ErrorKind string

const (
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindFileTooLarge      ErrorKind = "file_too_large"
	KindNoSelection       ErrorKind = "no_selection"
)

// UserError is a failure that is reported to the user as-is and leaves
// the page in its previous state.
type UserError struct {
	Kind    ErrorKind
	Message string
	err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.err }

func NewUserError(kind ErrorKind, msg string, err error) *UserError {
	return &UserError{Kind: kind, Message: msg, err: err}
}

// AsUserError reports whether err carries a user-visible message.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
