package contraction

import (
	"slices"
	"strings"
)

// ExactMatch is the projection of a problem that a solution must share
// exactly to be reusable for it. Sizes and strides are runtime arguments
// and are not part of the match.
type ExactMatch struct {
	DeviceProfile     DeviceProfile
	TypeC             DataType
	TypeA             DataType
	TypeB             DataType
	TypeAlpha         DataType
	TypeBeta          DataType
	OperationType     OperationType
	NumIndicesFree    int
	IndexAssignmentsA []int
	IndexAssignmentsB []int
	Optimization      Optimization
}

// ComputeExactMatch copies the matching fields of p and the optimization
// level under which the solution was compiled.
func ComputeExactMatch(p Problem, opt Optimization) ExactMatch {
	return ExactMatch{
		DeviceProfile:     p.DeviceProfile.Clone(),
		TypeC:             p.TensorC.DataType,
		TypeA:             p.TensorA.DataType,
		TypeB:             p.TensorB.DataType,
		TypeAlpha:         p.Operation.AlphaType,
		TypeBeta:          p.Operation.BetaType,
		OperationType:     p.Operation.Type,
		NumIndicesFree:    p.TensorC.NumDims(),
		IndexAssignmentsA: slices.Clone(p.Operation.IndexAssignmentsA),
		IndexAssignmentsB: slices.Clone(p.Operation.IndexAssignmentsB),
		Optimization:      opt,
	}
}

func (m ExactMatch) Equal(o ExactMatch) bool {
	return m.Key() == o.Key()
}

// Key encodes every field, optimization flags included.
func (m ExactMatch) Key() string {
	var k keyBuilder
	k.nested(m.DeviceProfile.Key()).
		int(int(m.TypeC)).int(int(m.TypeA)).int(int(m.TypeB)).
		int(int(m.TypeAlpha)).int(int(m.TypeBeta)).
		int(int(m.OperationType)).int(m.NumIndicesFree).
		ints(m.IndexAssignmentsA).ints(m.IndexAssignmentsB).
		bool(m.Optimization.Offsets).bool(m.Optimization.LeadingStrides).bool(m.Optimization.All)
	return k.String()
}

// LibString is the canonical name, optimization level included, e.g.
// Fiji_CT_SSSSS_Cij_Aik_Bkj_O0.
func (m ExactMatch) LibString() string {
	return m.display() + "_" + m.Optimization.Code()
}

// String is the display form: LibString without the optimization level,
// which describes the compiled kernel rather than the problem.
func (m ExactMatch) String() string {
	return m.display()
}

func (m ExactMatch) display() string {
	var sb strings.Builder
	sb.WriteString(m.DeviceProfile.LibString())
	sb.WriteByte('_')
	sb.WriteString(m.OperationType.String())
	sb.WriteByte('_')
	for _, dt := range []DataType{m.TypeC, m.TypeA, m.TypeB, m.TypeAlpha, m.TypeBeta} {
		sb.WriteString(strings.ToUpper(dt.Char()))
	}
	sb.WriteString("_C")
	for i := range m.NumIndicesFree {
		sb.WriteString(IndexChar(i))
	}
	sb.WriteString("_A")
	for _, i := range m.IndexAssignmentsA {
		sb.WriteString(IndexChar(i))
	}
	sb.WriteString("_B")
	for _, i := range m.IndexAssignmentsB {
		sb.WriteString(IndexChar(i))
	}
	return sb.String()
}
