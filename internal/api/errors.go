package api

import "errors"

var (
	// ErrInvalidRequest marks errors caused by the request itself.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoProblemTree is returned when the server was started without one.
	ErrNoProblemTree = errors.New("no problem tree loaded")
)

type invalidRequestError struct {
	field string
	msg   string
}

func (e invalidRequestError) Error() string {
	if e.field == "" {
		return e.msg
	}
	return e.field + ": " + e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

func invalidField(field, msg string) error {
	return invalidRequestError{field: field, msg: msg}
}
