package contraction

import "errors"

var (
	ErrOperandNumDimensionsMismatch = errors.New("operand dimensionality mismatch")
	ErrNumFreeIndicesInvalid        = errors.New("invalid number of free indices")
	ErrOperandNumIndicesMismatch    = errors.New("operand index count mismatch")
	ErrNumSummationIndicesInvalid   = errors.New("problem has no summation index")
	ErrIndexAssignmentInvalid       = errors.New("index assignment out of range")
	ErrIndexAssignmentDuplicate     = errors.New("duplicate index assignment")
	ErrIndexSizeMismatch            = errors.New("paired index sizes differ")
	ErrIndexUnassigned              = errors.New("index unassigned")
	ErrSummationAssignmentInvalid   = errors.New("summation index present in only one operand")
	ErrDeviceProfileEmpty           = errors.New("device profile has no devices")
	ErrIndexCountsMismatch          = errors.New("operation index counts disagree with assignments")
	ErrUnresolvedIndices            = errors.New("index assignment unresolved")
)
