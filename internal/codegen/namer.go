package codegen

import (
	"strconv"
	"strings"

	"github.com/samcharles93/tensile/pkg/contraction"
)

// KernelNamer supplies the canonical name of a kernel. The kernel body
// generator owns this naming; the solution writer only references it.
type KernelNamer interface {
	KernelName(k *contraction.Kernel) string
}

// KernelNamerFunc adapts a function to KernelNamer.
type KernelNamerFunc func(k *contraction.Kernel) string

func (f KernelNamerFunc) KernelName(k *contraction.Kernel) string { return f(k) }

// DefaultKernelNamer names a kernel by operation, types, index layout,
// tile per dimension and unrolls, e.g. CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4x_k8_O0.
type DefaultKernelNamer struct{}

func (DefaultKernelNamer) KernelName(k *contraction.Kernel) string {
	var sb strings.Builder
	p := k.Problem
	sb.WriteString(p.Operation.Type.String())
	sb.WriteByte('_')
	for _, dt := range []contraction.DataType{k.DataTypeC, k.DataTypeA, k.DataTypeB, k.DataTypeAlpha, k.DataTypeBeta} {
		sb.WriteString(dt.Char())
	}
	sb.WriteString("_C")
	for i := range p.TensorC.NumDims() {
		sb.WriteString(contraction.IndexChar(i))
	}
	sb.WriteString("_A")
	for _, i := range p.Operation.IndexAssignmentsA {
		sb.WriteString(contraction.IndexChar(i))
	}
	sb.WriteString("_B")
	for _, i := range p.Operation.IndexAssignmentsB {
		sb.WriteString(contraction.IndexChar(i))
	}
	dims := [2]int{k.IndexAssignmentDim0, k.IndexAssignmentDim1}
	for d, index := range dims {
		sb.WriteByte('_')
		sb.WriteString(contraction.IndexChar(index))
		sb.WriteString(strconv.Itoa(k.Tile.WorkGroup[d]))
		sb.WriteByte('x')
		sb.WriteString(strconv.Itoa(k.Tile.MicroTile[d]))
		sb.WriteString(k.Tile.Branch[d].Char())
	}
	sb.WriteByte('_')
	if len(k.IndexOrderSummation) > 0 {
		sb.WriteString(contraction.IndexChar(k.UnrollIndex()))
	}
	for i, u := range k.Unrolls {
		if i > 0 {
			sb.WriteByte('x')
		}
		sb.WriteString(strconv.Itoa(u))
	}
	sb.WriteByte('_')
	sb.WriteString(k.Optimization.Code())
	return sb.String()
}

// validIdentifier accepts C identifiers.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
