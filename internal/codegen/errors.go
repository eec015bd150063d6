package codegen

import "errors"

var (
	// ErrIncompleteSolution reports a solution missing fields the generated
	// code depends on. Nothing is emitted for it.
	ErrIncompleteSolution = errors.New("incomplete solution")
	// ErrIncompatibleProblem reports a problem whose runtime arguments the
	// solution compiled out.
	ErrIncompatibleProblem = errors.New("solution cannot serve problem")
	ErrInvalidName         = errors.New("solution name is not an identifier")
)
