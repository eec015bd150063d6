package benchdb

import "errors"

var (
	ErrValidationConflict = errors.New("conflicting validation reports")
	ErrNotFound           = errors.New("not found")
	ErrInvalidBucket      = errors.New("invalid shape bucket")
)
