package codegen

import (
	"fmt"
	"slices"

	"github.com/samcharles93/tensile/pkg/contraction"
)

// CheckCompatible reports whether s can run p: offsets and non-unit
// leading strides must not be needed by p when s compiled them out. The
// generated constructor performs the same check.
func CheckCompatible(s *contraction.Solution, p contraction.Problem) error {
	if s.Optimization.Offsets && p.Operation.UseOffsets {
		return fmt.Errorf("codegen: problem uses offsets, solution compiled them out: %w", ErrIncompatibleProblem)
	}
	if s.Optimization.LeadingStrides && p.HasNonUnitLeadingStride() {
		return fmt.Errorf("codegen: problem has non-unit leading strides, solution compiled them out: %w", ErrIncompatibleProblem)
	}
	return nil
}

func incomplete(format string, args ...any) error {
	return fmt.Errorf("codegen: "+format+": %w", append(args, ErrIncompleteSolution)...)
}

// checkSolution rejects solutions the writer cannot emit correctly.
func checkSolution(s *contraction.Solution) error {
	if s == nil {
		return incomplete("nil solution")
	}
	if s.Kernels[0] == nil {
		return incomplete("kernel 0 missing")
	}
	for d, g := range s.KernelGrid {
		if g < 1 {
			return incomplete("kernel grid dim %d is %d", d, g)
		}
	}
	for d, b := range s.Branch {
		if !b.Valid() {
			return incomplete("solution branch %d is %s", d, b)
		}
	}
	for i, k := range s.Kernels {
		if k == nil {
			continue
		}
		if err := checkKernel(i, k, s.Optimization); err != nil {
			return err
		}
	}

	k := s.Kernels[0]
	if k.Tile.Branch != s.Branch {
		return incomplete("solution branch %v not mirrored on kernel 0 tile %v", s.Branch, k.Tile.Branch)
	}
	op := k.Problem.Operation
	if len(k.IndexOrderC) != k.Problem.TensorC.NumDims() || op.NumIndicesC() != len(k.IndexOrderC) {
		return incomplete("kernel 0 orders %d C indices for a %d-dim C", len(k.IndexOrderC), k.Problem.TensorC.NumDims())
	}
	t := ResolveTensorAssignments(k)
	if t.AD0or1 < 0 || t.BD0or1 < 0 || t.ADU < 0 || t.BDU < 0 {
		return incomplete("kernel 0 tile/unroll indices not carried by A and B: %+v", t)
	}
	for i := op.NumIndicesC(); i < op.NumIndices(); i++ {
		if !slices.Contains(op.IndexAssignmentsA, i) {
			return incomplete("summation index %s not in A", contraction.IndexChar(i))
		}
	}
	return nil
}

func checkKernel(i int, k *contraction.Kernel, opt contraction.Optimization) error {
	if !k.IndexResolved() {
		return incomplete("kernel %d index assignment unresolved", i)
	}
	if len(k.Unrolls) == 0 {
		return incomplete("kernel %d has no unroll", i)
	}
	for d := range 2 {
		if !k.Tile.Branch[d].Valid() {
			return incomplete("kernel %d tile branch %d is %s", i, d, k.Tile.Branch[d])
		}
		if k.Tile.WorkGroup[d] < 1 || k.Tile.MicroTile[d] < 1 {
			return incomplete("kernel %d tile %s", i, k.Tile)
		}
	}
	if k.Optimization != opt {
		return incomplete("kernel %d optimization %s differs from solution %s", i, k.Optimization, opt)
	}
	return nil
}
