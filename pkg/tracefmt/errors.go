package tracefmt

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed matches every *ParseError.
	ErrMalformed        = errors.New("malformed trace")
	ErrMissingAttribute = errors.New("missing attribute")
	ErrKernelSlot       = errors.New("kernel slot out of range")
	ErrNegativeCount    = errors.New("negative element count")
	// ErrInvalidProblem wraps the contraction error of a problem that fails
	// validation.
	ErrInvalidProblem = errors.New("invalid problem")
)

// ParseError locates a bad record: the line of the offending element, its
// tag and, when one attribute is at fault, the attribute name.
type ParseError struct {
	Line int
	Tag  string
	Attr string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Attr != "" {
		return fmt.Sprintf("tracefmt: line %d: <%s %s>: %v", e.Line, e.Tag, e.Attr, e.Err)
	}
	return fmt.Sprintf("tracefmt: line %d: <%s>: %v", e.Line, e.Tag, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrMalformed }
