package contraction

import (
	"slices"
	"strconv"
	"strings"
)

// Problem is one tensor contraction on one device profile. Problems are
// value-like: once built they are not mutated, so every derived property is
// a pure function of the fields.
type Problem struct {
	TensorC       Tensor
	TensorA       Tensor
	TensorB       Tensor
	Operation     Operation
	DeviceProfile DeviceProfile
}

func (p Problem) Clone() Problem {
	return Problem{
		TensorC:       p.TensorC.Clone(),
		TensorA:       p.TensorA.Clone(),
		TensorB:       p.TensorB.Clone(),
		Operation:     p.Operation.Clone(),
		DeviceProfile: p.DeviceProfile.Clone(),
	}
}

func (p Problem) Equal(o Problem) bool {
	return p.TensorC.Equal(o.TensorC) &&
		p.TensorA.Equal(o.TensorA) &&
		p.TensorB.Equal(o.TensorB) &&
		p.Operation.Equal(o.Operation) &&
		p.DeviceProfile.Equal(o.DeviceProfile)
}

// Key is the canonical encoding of the full attribute tuple.
func (p Problem) Key() string {
	var k keyBuilder
	k.nested(p.TensorC.Key()).nested(p.TensorA.Key()).nested(p.TensorB.Key()).
		nested(p.Operation.Key()).nested(p.DeviceProfile.Key())
	return k.String()
}

// SizeFree is the number of elements of C.
func (p Problem) SizeFree() int64 {
	size := int64(1)
	for _, d := range p.TensorC.Dimensions {
		size *= int64(d.Size)
	}
	return size
}

// NumFlops counts floating-point operations: 2 per multiply-add for real
// types, 8 for complex, over every C element and every summation index.
func (p Problem) NumFlops() int64 {
	flops := p.SizeFree()
	if p.TensorA.DataType.IsReal() {
		flops *= 2
	} else {
		flops *= 8
	}
	numC := p.TensorC.NumDims()
	for i, index := range p.Operation.IndexAssignmentsA {
		inC := index < numC
		inB := slices.Contains(p.Operation.IndexAssignmentsB, index)
		if inB && !inC && i < p.TensorA.NumDims() {
			flops *= int64(p.TensorA.Dimensions[i].Size)
		}
	}
	return flops
}

// Sizes01U returns the sizes along tile dim0, tile dim1, and the unroll
// index. sizeU is -1 when A does not carry the unroll index.
func (p Problem) Sizes01U(a IndexAssignment) (size0, size1, sizeU int) {
	size0, size1, sizeU = -1, -1, -1
	if a.Dim0 >= 0 && a.Dim0 < p.TensorC.NumDims() {
		size0 = p.TensorC.Dimensions[a.Dim0].Size
	}
	if a.Dim1 >= 0 && a.Dim1 < p.TensorC.NumDims() {
		size1 = p.TensorC.Dimensions[a.Dim1].Size
	}
	for i, index := range p.Operation.IndexAssignmentsA {
		if index == a.Unroll && i < p.TensorA.NumDims() {
			sizeU = p.TensorA.Dimensions[i].Size
			break
		}
	}
	return size0, size1, sizeU
}

// Shape buckets partition benchmark data.
const (
	ShapeSquare    = 0 // dim0/dim1/unroll tile aligned and within 1 of each other
	ShapeIrregular = 1

	NumShapeBuckets = 2
)

// ShapeBucket classifies the problem along the resolved tile dimensions.
// A size is aligned when it or its successor is a multiple of 16.
func (p Problem) ShapeBucket(a IndexAssignment) int {
	s0, s1, sU := p.Sizes01U(a)
	aligned := func(n int) bool { return n%16 == 0 || (n+1)%16 == 0 }
	near := func(x, y int) bool { return abs(x-y) <= 1 }

	if !aligned(s0) || !aligned(s1) || !aligned(sU) {
		return ShapeIrregular
	}
	if !near(s0, s1) || !near(s0, sU) || !near(s1, sU) {
		return ShapeIrregular
	}
	return ShapeSquare
}

// ShapeBucketWith resolves the index assignment before classifying.
func (p Problem) ShapeBucketWith(r IndexResolver) (int, error) {
	a, err := r.ResolveIndices(p)
	if err != nil {
		return 0, err
	}
	return p.ShapeBucket(a), nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// summationSize returns A's size for logical index i, or -1.
func (p Problem) summationSize(i int) int {
	for j, index := range p.Operation.IndexAssignmentsA {
		if index == i && j < p.TensorA.NumDims() {
			return p.TensorA.Dimensions[j].Size
		}
	}
	return -1
}

// String renders devices, types, strides and sizes, e.g.
// Fiji_CT_SSSSS_C_i1_512_j512_512_Sum_k512_A_i1_k512_B_k1_j512.
func (p Problem) String() string {
	var sb strings.Builder
	for _, d := range p.DeviceProfile.Devices {
		sb.WriteString(d.Name)
		sb.WriteByte('_')
	}
	sb.WriteString(p.Operation.Type.String())
	sb.WriteByte('_')
	sb.WriteString(p.TensorC.DataType.Char())
	sb.WriteString(p.TensorA.DataType.Char())
	sb.WriteString(p.TensorB.DataType.Char())
	sb.WriteString(p.Operation.AlphaType.Char())
	sb.WriteString(p.Operation.BetaType.Char())

	numC := p.TensorC.NumDims()
	sb.WriteString("_C")
	for i, d := range p.TensorC.Dimensions {
		sb.WriteByte('_')
		sb.WriteString(IndexChar(i))
		sb.WriteString(strconv.Itoa(d.Stride))
		sb.WriteByte('_')
		sb.WriteString(strconv.Itoa(d.Size))
	}
	sb.WriteString("_Sum")
	for i := range p.Operation.NumIndicesSum {
		sb.WriteByte('_')
		sb.WriteString(IndexChar(numC + i))
		if size := p.summationSize(numC + i); size >= 0 {
			sb.WriteString(strconv.Itoa(size))
		}
	}
	writeStrides := func(tag string, t Tensor, assignments []int) {
		sb.WriteString("_" + tag)
		for i, d := range t.Dimensions {
			sb.WriteByte('_')
			if i < len(assignments) {
				sb.WriteString(IndexChar(assignments[i]))
			}
			sb.WriteString(strconv.Itoa(d.Stride))
		}
	}
	writeStrides("A", p.TensorA, p.Operation.IndexAssignmentsA)
	writeStrides("B", p.TensorB, p.Operation.IndexAssignmentsB)
	return sb.String()
}

// Expression renders the contraction in index notation, e.g.
// C[i:512,j:512] = Sum(k:512) A[i,k] * B[k,j].
func (p Problem) Expression() string {
	var sb strings.Builder
	numC := p.TensorC.NumDims()
	sb.WriteString("C[")
	for i, d := range p.TensorC.Dimensions {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(IndexChar(i) + ":" + strconv.Itoa(d.Size))
	}
	sb.WriteString("] = Sum(")
	for i := range p.Operation.NumIndicesSum {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(IndexChar(numC+i) + ":" + strconv.Itoa(p.summationSize(numC+i)))
	}
	sb.WriteString(") A[")
	for i, index := range p.Operation.IndexAssignmentsA {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(IndexChar(index))
	}
	sb.WriteString("] * B[")
	for i, index := range p.Operation.IndexAssignmentsB {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(IndexChar(index))
	}
	sb.WriteString("]")
	return sb.String()
}

// HasNonUnitLeadingStride reports whether any tensor's first stride is not 1.
func (p Problem) HasNonUnitLeadingStride() bool {
	for _, t := range []Tensor{p.TensorC, p.TensorA, p.TensorB} {
		if t.NumDims() > 0 && t.Dimensions[0].Stride != 1 {
			return true
		}
	}
	return false
}
