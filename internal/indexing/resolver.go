// Package indexing assigns a problem's logical indices to kernel tile
// dimensions and the unroll loop.
package indexing

import (
	"fmt"
	"slices"
	"sort"

	"github.com/samcharles93/tensile/pkg/contraction"
)

// StrideResolver orders indices by memory stride: tile dim0 is the free
// index with the smallest stride in C, tile dim1 the smallest-stride free
// index of the other operand, and the unroll loop runs over the summation
// index with the smallest combined stride in A and B.
type StrideResolver struct{}

var _ contraction.IndexResolver = StrideResolver{}

// Default is the resolver used when none is configured.
var Default contraction.IndexResolver = StrideResolver{}

func (StrideResolver) ResolveIndices(p contraction.Problem) (contraction.IndexAssignment, error) {
	var a contraction.IndexAssignment
	c, ta, tb := p.TensorC, p.TensorA, p.TensorB
	ia, ib := p.Operation.IndexAssignmentsA, p.Operation.IndexAssignmentsB
	if len(ia) != ta.NumDims() || len(ib) != tb.NumDims() {
		return a, fmt.Errorf("assignments do not cover operand dims: %w", contraction.ErrUnresolvedIndices)
	}
	numC := c.NumDims()

	a.IndexOrderC = make([]int, numC)
	for i := range a.IndexOrderC {
		a.IndexOrderC[i] = i
	}
	sort.SliceStable(a.IndexOrderC, func(i, j int) bool {
		return c.Dimensions[a.IndexOrderC[i]].Stride > c.Dimensions[a.IndexOrderC[j]].Stride
	})

	type sumIndex struct {
		offset int
		stride int
	}
	var sums []sumIndex
	for i := numC; i < numC+ta.NumDims(); i++ {
		posA, posB := slices.Index(ia, i), slices.Index(ib, i)
		if posA < 0 || posB < 0 {
			continue
		}
		sums = append(sums, sumIndex{offset: i - numC, stride: ta.Dimensions[posA].Stride + tb.Dimensions[posB].Stride})
	}
	if len(sums) == 0 {
		return a, fmt.Errorf("no summation index: %w", contraction.ErrUnresolvedIndices)
	}
	sort.SliceStable(sums, func(i, j int) bool { return sums[i].stride > sums[j].stride })
	a.IndexOrderSummation = make([]int, len(sums))
	for i, s := range sums {
		a.IndexOrderSummation[i] = s.offset
	}
	a.Unroll = numC + a.IndexOrderSummation[len(a.IndexOrderSummation)-1]

	inA := func(i int) bool { return slices.Contains(ia, i) }
	inB := func(i int) bool { return slices.Contains(ib, i) }
	isBatch := func(i int) bool { return inA(i) && inB(i) }

	a.Dim0, a.Dim1 = -1, -1
	for j := numC - 1; j >= 0; j-- {
		if i := a.IndexOrderC[j]; !isBatch(i) {
			a.Dim0 = i
			break
		}
	}
	if a.Dim0 < 0 {
		return a, fmt.Errorf("no free index for tile dim0: %w", contraction.ErrUnresolvedIndices)
	}
	d0InA := inA(a.Dim0)
	for j := numC - 1; j >= 0; j-- {
		i := a.IndexOrderC[j]
		if i == a.Dim0 || isBatch(i) || inA(i) == d0InA {
			continue
		}
		a.Dim1 = i
		break
	}
	if a.Dim1 < 0 {
		return a, fmt.Errorf("no free index of the other operand for tile dim1: %w", contraction.ErrUnresolvedIndices)
	}

	tileA, tileB := a.Dim0, a.Dim1
	if !d0InA {
		tileA, tileB = a.Dim1, a.Dim0
	}
	posUA, posUB := slices.Index(ia, a.Unroll), slices.Index(ib, a.Unroll)
	posTA, posTB := slices.Index(ia, tileA), slices.Index(ib, tileB)
	if posTA < 0 || posTB < 0 {
		return a, fmt.Errorf("tile indices %s/%s not carried by A/B: %w",
			contraction.IndexChar(tileA), contraction.IndexChar(tileB), contraction.ErrUnresolvedIndices)
	}
	if posUA < 0 || posUB < 0 {
		return a, fmt.Errorf("unroll index %s not carried by A and B: %w",
			contraction.IndexChar(a.Unroll), contraction.ErrUnresolvedIndices)
	}

	strideUA, strideUB := ta.Dimensions[posUA].Stride, tb.Dimensions[posUB].Stride
	a.UnrollDimSize = ta.Dimensions[posUA].Size
	if d0InA {
		a.UnrollDimStride0, a.UnrollDimStride1 = strideUA, strideUB
	} else {
		a.UnrollDimStride0, a.UnrollDimStride1 = strideUB, strideUA
	}
	a.UnrollDimStrideGreaterThanTileDimStrideA = strideUA > ta.Dimensions[posTA].Stride
	a.UnrollDimStrideLessThanTileDimStrideB = strideUB < tb.Dimensions[posTB].Stride
	return a, nil
}

// ApplyToKernel resolves p and stores the assignment in k.
func ApplyToKernel(r contraction.IndexResolver, k *contraction.Kernel, p contraction.Problem) error {
	a, err := r.ResolveIndices(p)
	if err != nil {
		return err
	}
	k.SetIndexAssignment(a)
	return nil
}
