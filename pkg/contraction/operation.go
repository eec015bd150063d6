package contraction

import (
	"fmt"
	"slices"
)

// Operation describes how A and B are combined into C.
//
// IndexAssignmentsA[i] is the logical index carried by A's physical
// dimension i (likewise for B). Logical indices below NumFree+NumBatch are
// also C's dimensions in the same order; the rest are summation indices.
type Operation struct {
	Type              OperationType
	AlphaType         DataType
	BetaType          DataType
	UseOffsets        bool
	NumIndicesFree    int
	NumIndicesBatch   int
	NumIndicesSum     int
	IndexAssignmentsA []int
	IndexAssignmentsB []int
}

// UseAlpha reports whether alpha is a runtime argument.
func (o Operation) UseAlpha() bool { return o.AlphaType != None }

// UseBeta reports whether beta is a runtime argument.
func (o Operation) UseBeta() bool { return o.BetaType != None }

// NumIndicesC is the count of indices that appear in C.
func (o Operation) NumIndicesC() int { return o.NumIndicesFree + o.NumIndicesBatch }

// NumIndices is the count of all logical indices.
func (o Operation) NumIndices() int { return o.NumIndicesC() + o.NumIndicesSum }

func (o Operation) Clone() Operation {
	o.IndexAssignmentsA = slices.Clone(o.IndexAssignmentsA)
	o.IndexAssignmentsB = slices.Clone(o.IndexAssignmentsB)
	return o
}

func (o Operation) Equal(x Operation) bool {
	return o.Type == x.Type &&
		o.AlphaType == x.AlphaType &&
		o.BetaType == x.BetaType &&
		o.UseOffsets == x.UseOffsets &&
		o.NumIndicesFree == x.NumIndicesFree &&
		o.NumIndicesBatch == x.NumIndicesBatch &&
		o.NumIndicesSum == x.NumIndicesSum &&
		slices.Equal(o.IndexAssignmentsA, x.IndexAssignmentsA) &&
		slices.Equal(o.IndexAssignmentsB, x.IndexAssignmentsB)
}

func (o Operation) Key() string {
	var k keyBuilder
	k.int(int(o.Type)).int(int(o.AlphaType)).int(int(o.BetaType)).bool(o.UseOffsets).
		int(o.NumIndicesFree).int(o.NumIndicesBatch).int(o.NumIndicesSum).
		ints(o.IndexAssignmentsA).ints(o.IndexAssignmentsB)
	return k.String()
}

func (o Operation) String() string {
	return fmt.Sprintf("[Operation; %s; %s; %s; %t; %d; %d; %d; %v; %v]",
		o.Type, o.AlphaType, o.BetaType, o.UseOffsets,
		o.NumIndicesFree, o.NumIndicesBatch, o.NumIndicesSum,
		o.IndexAssignmentsA, o.IndexAssignmentsB)
}

// Optimization is the preprocessor-definition level: which kernel
// arguments are compiled in as constants instead of passed at launch.
type Optimization struct {
	Offsets        bool
	LeadingStrides bool
	All            bool
}

// Code returns O0..O4.
func (o Optimization) Code() string {
	switch {
	case o.Offsets && !o.LeadingStrides:
		return "O1"
	case !o.Offsets && o.LeadingStrides:
		return "O2"
	case o.Offsets && o.LeadingStrides && !o.All:
		return "O3"
	case o.All:
		return "O4"
	default:
		return "O0"
	}
}

func (o Optimization) String() string {
	return o.Code()
}
