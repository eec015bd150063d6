package contraction

import (
	"fmt"
	"slices"
	"strings"
)

// MaxKernels is the number of kernel slots in a solution: one per
// combination of the two tile dimensions' edge variants.
const MaxKernels = 4

// Solution is one benchmarkable unit: up to four kernels launched over a
// kernel grid. Nil slots are unused branch combinations.
type Solution struct {
	Kernels      [MaxKernels]*Kernel
	KernelGrid   [3]int
	Branch       [2]BranchType
	Optimization Optimization
}

// NumKernels counts non-empty slots.
func (s *Solution) NumKernels() int {
	n := 0
	for _, k := range s.Kernels {
		if k != nil {
			n++
		}
	}
	return n
}

func (s *Solution) Clone() *Solution {
	if s == nil {
		return nil
	}
	c := *s
	for i, k := range s.Kernels {
		c.Kernels[i] = k.Clone()
	}
	return &c
}

func (s *Solution) Key() string {
	var b keyBuilder
	for _, k := range s.Kernels {
		b.nested(k.Key())
	}
	b.int(s.KernelGrid[0]).int(s.KernelGrid[1]).int(s.KernelGrid[2]).
		int(int(s.Branch[0])).int(int(s.Branch[1])).
		bool(s.Optimization.Offsets).bool(s.Optimization.LeadingStrides).bool(s.Optimization.All)
	return b.String()
}

func (s *Solution) Equal(o *Solution) bool {
	return s.Key() == o.Key()
}

func (s *Solution) String() string {
	ks := make([]string, len(s.Kernels))
	for i, k := range s.Kernels {
		ks[i] = k.String()
	}
	return fmt.Sprintf("[Solution; %v; [%s]]", s.KernelGrid, strings.Join(ks, ", "))
}

// Validation states of a solution benchmark.
const (
	ValidationInvalid = -1
	ValidationUnset   = 0
	ValidationValid   = 1
)

// SolutionBenchmark accumulates timings and the validation verdict for one
// (problem, solution) pair.
type SolutionBenchmark struct {
	Times            []float64
	ValidationStatus int
}

func (b SolutionBenchmark) Clone() SolutionBenchmark {
	return SolutionBenchmark{Times: slices.Clone(b.Times), ValidationStatus: b.ValidationStatus}
}

// Mean returns the average time, or 0 with no samples.
func (b SolutionBenchmark) Mean() float64 {
	if len(b.Times) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range b.Times {
		sum += t
	}
	return sum / float64(len(b.Times))
}

// Min returns the fastest time, or 0 with no samples.
func (b SolutionBenchmark) Min() float64 {
	if len(b.Times) == 0 {
		return 0
	}
	return slices.Min(b.Times)
}
