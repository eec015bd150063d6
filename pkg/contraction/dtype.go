package contraction

import "strconv"

// DataType identifies the scalar element kind of a tensor or scaling factor.
// The numeric codes match the trace format.
type DataType int

const (
	Single                 DataType = 0
	Double                 DataType = 1
	ComplexSingle          DataType = 2
	ComplexDouble          DataType = 3
	ComplexConjugateSingle DataType = 4
	ComplexConjugateDouble DataType = 5
	Half                   DataType = 6
	ComplexHalf            DataType = 7
	ComplexConjugateHalf   DataType = 8
	// None is only valid for alpha/beta: the scalar is compiled out.
	None DataType = 10
)

func errorString(code int) string {
	return "ERROR(" + strconv.Itoa(code) + ")"
}

// Valid reports whether d is one of the known codes.
func (d DataType) Valid() bool {
	switch d {
	case Single, Double, ComplexSingle, ComplexDouble,
		ComplexConjugateSingle, ComplexConjugateDouble,
		Half, ComplexHalf, ComplexConjugateHalf, None:
		return true
	}
	return false
}

// Char returns the single character code used in names and fingerprints.
func (d DataType) Char() string {
	switch d {
	case Half:
		return "H"
	case Single:
		return "S"
	case Double:
		return "D"
	case ComplexHalf:
		return "Q"
	case ComplexSingle:
		return "C"
	case ComplexDouble:
		return "Z"
	case ComplexConjugateHalf:
		return "W"
	case ComplexConjugateSingle:
		return "X"
	case ComplexConjugateDouble:
		return "Y"
	case None:
		return "0"
	default:
		return errorString(int(d))
	}
}

func (d DataType) String() string {
	return d.Char()
}

// OpenCL returns the OpenCL C type name.
func (d DataType) OpenCL() string {
	switch d {
	case Single:
		return "float"
	case Double:
		return "double"
	case ComplexSingle, ComplexConjugateSingle:
		return "float2"
	case ComplexDouble, ComplexConjugateDouble:
		return "double2"
	default:
		return errorString(int(d))
	}
}

// HIP returns the HIP device type name.
func (d DataType) HIP() string {
	switch d {
	case Single:
		return "float"
	case Double:
		return "double"
	case ComplexSingle, ComplexConjugateSingle:
		return "float_2"
	case ComplexDouble, ComplexConjugateDouble:
		return "double_2"
	default:
		return errorString(int(d))
	}
}

// Device returns the device-side type name for the backend.
func (d DataType) Device(b Backend) string {
	if b == OpenCL12 {
		return d.OpenCL()
	}
	return d.HIP()
}

// Cpp returns the host-side C++ type name.
func (d DataType) Cpp() string {
	switch d {
	case Single:
		return "float"
	case Double:
		return "double"
	case ComplexSingle, ComplexConjugateSingle:
		return "TensileComplexFloat"
	case ComplexDouble, ComplexConjugateDouble:
		return "TensileComplexDouble"
	case None:
		return "void"
	default:
		return errorString(int(d))
	}
}

// LibString returns the library enumerator name.
func (d DataType) LibString() string {
	switch d {
	case Half:
		return "tensileDataTypeHalf"
	case Single:
		return "tensileDataTypeSingle"
	case Double:
		return "tensileDataTypeDouble"
	case ComplexHalf:
		return "tensileDataTypeComplexHalf"
	case ComplexSingle:
		return "tensileDataTypeComplexSingle"
	case ComplexDouble:
		return "tensileDataTypeComplexDouble"
	case ComplexConjugateHalf:
		return "tensileDataTypeComplexConjugateHalf"
	case ComplexConjugateSingle:
		return "tensileDataTypeComplexConjugateSingle"
	case ComplexConjugateDouble:
		return "tensileDataTypeComplexConjugateDouble"
	case None:
		return "tensileDataTypeNone"
	default:
		return errorString(int(d))
	}
}

// ZeroString returns a zero literal of the device type.
func (d DataType) ZeroString(b Backend) string {
	zero := "0.0"
	if !d.IsReal() {
		zero = "0.0, 0.0"
	}
	if b == OpenCL12 {
		return "(" + d.OpenCL() + ")(" + zero + ")"
	}
	return d.HIP() + "(" + zero + ")"
}

func (d DataType) IsReal() bool {
	return d == Half || d == Single || d == Double
}

func (d DataType) IsComplex() bool {
	return !d.IsReal()
}

func (d DataType) IsConjugate() bool {
	return d == ComplexConjugateHalf || d == ComplexConjugateSingle || d == ComplexConjugateDouble
}

func (d DataType) IsDouble() bool {
	return d == Double || d == ComplexDouble || d == ComplexConjugateDouble
}

// NumRegisters returns the number of 32-bit registers one element occupies,
// or 0 for types without a register mapping.
func (d DataType) NumRegisters() int {
	switch d {
	case Single:
		return 1
	case Double, ComplexSingle, ComplexConjugateSingle:
		return 2
	case ComplexDouble, ComplexConjugateDouble:
		return 4
	default:
		return 0
	}
}

func (d DataType) NumBytes() int {
	return d.NumRegisters() * 4
}

// OperationType selects how indices are interpreted downstream.
type OperationType int

const (
	Contraction OperationType = iota
	Convolution
	Correlation
)

func (o OperationType) String() string {
	switch o {
	case Contraction:
		return "CT"
	case Convolution:
		return "CV"
	case Correlation:
		return "CR"
	default:
		return errorString(int(o))
	}
}

// LibString returns the library enumerator name.
func (o OperationType) LibString() string {
	switch o {
	case Contraction:
		return "tensileOperationTypeContraction"
	case Convolution:
		return "tensileOperationTypeConvolution"
	case Correlation:
		return "tensileOperationTypeCorrelation"
	default:
		return errorString(int(o))
	}
}

// BranchType selects how a tile dimension's edge is handled.
type BranchType int

const (
	BranchNone BranchType = iota
	BranchMultiple
	BranchBranched
)

func (b BranchType) String() string {
	switch b {
	case BranchNone:
		return "none"
	case BranchMultiple:
		return "multiple"
	case BranchBranched:
		return "branched"
	default:
		return errorString(int(b))
	}
}

// Char returns the naming character: m, b, or x for none.
func (b BranchType) Char() string {
	switch b {
	case BranchMultiple:
		return "m"
	case BranchBranched:
		return "b"
	case BranchNone:
		return "x"
	default:
		return errorString(int(b))
	}
}

func (b BranchType) Valid() bool {
	return b >= BranchNone && b <= BranchBranched
}

func (b BranchType) IsNone() bool     { return b == BranchNone }
func (b BranchType) IsMultiple() bool { return b == BranchMultiple }
func (b BranchType) IsBranched() bool { return b == BranchBranched }

// Backend is the host/device API generated code targets.
type Backend int

const (
	OpenCL12 Backend = iota
	HIP
)

func (b Backend) String() string {
	switch b {
	case OpenCL12:
		return "OpenCL 1.2"
	case HIP:
		return "HIP"
	default:
		return errorString(int(b))
	}
}

// ParseBackend accepts the spellings used on the command line.
func ParseBackend(s string) (Backend, bool) {
	switch s {
	case "opencl", "opencl12", "opencl_1.2", "OpenCL_1.2", "cl", "OpenCL 1.2":
		return OpenCL12, true
	case "hip", "HIP":
		return HIP, true
	}
	return 0, false
}
