package contraction

import (
	"fmt"
	"slices"
	"strings"
)

// Dimension describes one tensor axis.
type Dimension struct {
	Stride int
	Size   int
}

func (d Dimension) String() string {
	return fmt.Sprintf("[%d,%d]", d.Stride, d.Size)
}

// Tensor is an element type plus ordered dimensions. Position i of
// Dimensions corresponds to position i of the operation's index assignments.
type Tensor struct {
	DataType   DataType
	Dimensions []Dimension
}

// NewTensor copies dims.
func NewTensor(dt DataType, dims ...Dimension) Tensor {
	return Tensor{DataType: dt, Dimensions: slices.Clone(dims)}
}

func (t Tensor) NumDims() int {
	return len(t.Dimensions)
}

func (t Tensor) Clone() Tensor {
	return Tensor{DataType: t.DataType, Dimensions: slices.Clone(t.Dimensions)}
}

func (t Tensor) Equal(o Tensor) bool {
	return t.DataType == o.DataType && slices.Equal(t.Dimensions, o.Dimensions)
}

func (t Tensor) Key() string {
	var k keyBuilder
	k.int(int(t.DataType)).int(len(t.Dimensions))
	for _, d := range t.Dimensions {
		k.int(d.Stride).int(d.Size)
	}
	return k.String()
}

func (t Tensor) String() string {
	dims := make([]string, len(t.Dimensions))
	for i, d := range t.Dimensions {
		dims[i] = d.String()
	}
	return "[Tensor; " + t.DataType.Char() + "; [" + strings.Join(dims, ", ") + "]]"
}
