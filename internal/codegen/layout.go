package codegen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samcharles93/tensile/pkg/contraction"
)

// TensorAssignments locates the tile and unroll indices within A and B.
// Positions are indices into the operand's assignment list, or -1.
type TensorAssignments struct {
	D0InTensorA bool
	AD0or1      int // position in A of whichever tile index A carries
	ADU         int // position in A of the unroll index
	BD0or1      int
	BDU         int
}

// ResolveTensorAssignments derives the operand positions from kernel k's
// resolved index fields and its problem copy.
func ResolveTensorAssignments(k *contraction.Kernel) TensorAssignments {
	t := TensorAssignments{AD0or1: -1, ADU: -1, BD0or1: -1, BDU: -1}
	unroll := k.UnrollIndex()
	for i, index := range k.Problem.Operation.IndexAssignmentsA {
		if index == k.IndexAssignmentDim0 {
			t.D0InTensorA = true
		}
		if index == k.IndexAssignmentDim0 || index == k.IndexAssignmentDim1 {
			t.AD0or1 = i
		}
		if index == unroll {
			t.ADU = i
		}
	}
	for i, index := range k.Problem.Operation.IndexAssignmentsB {
		if index == k.IndexAssignmentDim0 || index == k.IndexAssignmentDim1 {
			t.BD0or1 = i
		}
		if index == unroll {
			t.BDU = i
		}
	}
	return t
}

// ArgKind classifies a runtime kernel argument.
type ArgKind int

const (
	ArgStride ArgKind = iota
	ArgSize
)

// KernelArg is one runtime stride or size passed to every kernel of a
// solution, in launch order.
type KernelArg struct {
	Kind   ArgKind
	Tensor byte // 'C', 'A' or 'B'
	Pos    int  // physical dimension within Tensor
	Index  int  // logical index the dimension carries
}

// Expr is the host expression addressing the argument's value.
func (a KernelArg) Expr() string {
	field := "stride"
	if a.Kind == ArgSize {
		field = "size"
	}
	return fmt.Sprintf("&inputProblem.tensor%c[%d].%s", a.Tensor, a.Pos, field)
}

// Label names the argument in generated comments, e.g. strideAK or sizeI.
func (a KernelArg) Label() string {
	char := strings.ToUpper(contraction.IndexChar(a.Index))
	if a.Kind == ArgSize {
		return "size" + char
	}
	return "stride" + string(a.Tensor) + char
}

// ArgLayout is the ordered runtime argument list of a solution together
// with the slots the dispatch code needs to find.
type ArgLayout struct {
	Args          []KernelArg
	Dim0Slot      int
	Dim1Slot      int
	SummationSlot int
}

// LayoutKernelArgs lays out, in order: C strides, A strides, B strides,
// free and batch sizes, then summation sizes. Leading strides are skipped
// when compiled in; nothing is laid out when everything is compiled in.
// Slots index Args; generated code offsets them by the pointer and offset
// arguments that precede the layout.
func LayoutKernelArgs(s *contraction.Solution) ArgLayout {
	layout := ArgLayout{Dim0Slot: -1, Dim1Slot: -1, SummationSlot: -1}
	if s.Optimization.All {
		return layout
	}
	k := s.Kernels[0]
	op := k.Problem.Operation

	first := 0
	if s.Optimization.LeadingStrides {
		first = 1
	}
	for i := first; i < len(k.IndexOrderC); i++ {
		layout.Args = append(layout.Args, KernelArg{Kind: ArgStride, Tensor: 'C', Pos: i, Index: i})
	}
	for i := first; i < len(op.IndexAssignmentsA); i++ {
		layout.Args = append(layout.Args, KernelArg{Kind: ArgStride, Tensor: 'A', Pos: i, Index: op.IndexAssignmentsA[i]})
	}
	for i := first; i < len(op.IndexAssignmentsB); i++ {
		layout.Args = append(layout.Args, KernelArg{Kind: ArgStride, Tensor: 'B', Pos: i, Index: op.IndexAssignmentsB[i]})
	}

	numC := op.NumIndicesC()
	for i := range numC {
		if i == k.IndexAssignmentDim0 {
			layout.Dim0Slot = len(layout.Args)
		}
		if i == k.IndexAssignmentDim1 {
			layout.Dim1Slot = len(layout.Args)
		}
		layout.Args = append(layout.Args, KernelArg{Kind: ArgSize, Tensor: 'C', Pos: i, Index: i})
	}
	last := op.NumIndices() - 1
	for i := numC; i <= last; i++ {
		if i == last {
			layout.SummationSlot = len(layout.Args)
		}
		layout.Args = append(layout.Args, KernelArg{Kind: ArgSize, Tensor: 'A', Pos: slices.Index(op.IndexAssignmentsA, i), Index: i})
	}
	return layout
}
