package contraction

import (
	"fmt"
	"slices"
)

// Tile is the work-group and micro-tile shape of a kernel with the edge
// policy of each tile dimension.
type Tile struct {
	WorkGroup [2]int
	MicroTile [2]int
	Branch    [2]BranchType
}

func (t Tile) String() string {
	return fmt.Sprintf("[Tile; %dx%d; %dx%d; %sx%s]",
		t.WorkGroup[0], t.WorkGroup[1], t.MicroTile[0], t.MicroTile[1], t.Branch[0], t.Branch[1])
}

// MacroTile returns the elements covered per work-group along dim.
func (t Tile) MacroTile(dim int) int {
	return t.WorkGroup[dim] * t.MicroTile[dim]
}

// IndexAssignment is the output of an IndexResolver: which logical indices
// carry tile dim0, tile dim1 and the unroll loop.
type IndexAssignment struct {
	// IndexOrderC lists C's indices by descending stride.
	IndexOrderC []int
	// IndexOrderSummation lists summation indices, as offsets past the C
	// indices, by descending combined A+B stride. The last entry is the
	// unroll index.
	IndexOrderSummation []int

	Dim0   int
	Dim1   int
	Unroll int

	UnrollDimStride0 int // unroll stride in the operand carrying dim0
	UnrollDimStride1 int // unroll stride in the operand carrying dim1
	UnrollDimSize    int

	UnrollDimStrideGreaterThanTileDimStrideA bool
	UnrollDimStrideLessThanTileDimStrideB    bool
}

// IndexResolver computes index assignments for a problem. Implementations
// must be pure functions of the problem.
type IndexResolver interface {
	ResolveIndices(p Problem) (IndexAssignment, error)
}

// IndexResolverFunc adapts a function to IndexResolver.
type IndexResolverFunc func(p Problem) (IndexAssignment, error)

func (f IndexResolverFunc) ResolveIndices(p Problem) (IndexAssignment, error) {
	return f(p)
}

// LoadGeometry describes global-to-local staging of one operand: the
// number and size of loads parallel and perpendicular to the coalesced
// direction, and the element totals they must cover.
type LoadGeometry struct {
	NumLoadsPara      int
	LoadSizePara      int
	TotalLoadSizePara int
	NumLoadsPerp      int
	LoadSizePerp      int
	TotalLoadSizePerp int
}

// LastLoadRequiresGuardPara reports a ragged final parallel load.
func (g LoadGeometry) LastLoadRequiresGuardPara() bool {
	return g.TotalLoadSizePara < g.NumLoadsPara*g.LoadSizePara
}

// LastLoadRequiresGuardPerp reports a ragged final perpendicular load.
func (g LoadGeometry) LastLoadRequiresGuardPerp() bool {
	return g.TotalLoadSizePerp < g.NumLoadsPerp*g.LoadSizePerp
}

// Kernel is one compiled GPU kernel variant of a solution.
type Kernel struct {
	DataTypeC     DataType
	DataTypeA     DataType
	DataTypeB     DataType
	DataTypeAlpha DataType
	DataTypeBeta  DataType

	IndexOrderC         []int
	IndexOrderSummation []int
	IndexAssignmentDim0 int
	IndexAssignmentDim1 int
	IndexUnroll         int
	UnrollDimStride0    int
	UnrollDimStride1    int
	UnrollDimSize       int

	UnrollDimStrideGreaterThanTileDimStrideA bool
	UnrollDimStrideLessThanTileDimStrideB    bool
	TransposeWorkGroupOrder                  bool

	// Problem is the kernel's own copy of the problem it was built for.
	Problem Problem

	Tile    Tile
	Unrolls []int

	LoadA LoadGeometry
	LoadB LoadGeometry

	Optimization Optimization
}

// NewKernel returns a kernel with unresolved index fields.
func NewKernel() *Kernel {
	return &Kernel{
		IndexAssignmentDim0: -1,
		IndexAssignmentDim1: -1,
		IndexUnroll:         -1,
		UnrollDimStride0:    -1,
		UnrollDimStride1:    -1,
		UnrollDimSize:       -1,
	}
}

// SetIndexAssignment copies a resolved assignment into the kernel.
func (k *Kernel) SetIndexAssignment(a IndexAssignment) {
	k.IndexOrderC = slices.Clone(a.IndexOrderC)
	k.IndexOrderSummation = slices.Clone(a.IndexOrderSummation)
	k.IndexAssignmentDim0 = a.Dim0
	k.IndexAssignmentDim1 = a.Dim1
	k.IndexUnroll = a.Unroll
	k.UnrollDimStride0 = a.UnrollDimStride0
	k.UnrollDimStride1 = a.UnrollDimStride1
	k.UnrollDimSize = a.UnrollDimSize
	k.UnrollDimStrideGreaterThanTileDimStrideA = a.UnrollDimStrideGreaterThanTileDimStrideA
	k.UnrollDimStrideLessThanTileDimStrideB = a.UnrollDimStrideLessThanTileDimStrideB
}

// IndexResolved reports whether the tile and unroll indices are assigned.
func (k *Kernel) IndexResolved() bool {
	return len(k.IndexOrderC) > 0 &&
		len(k.IndexOrderSummation) > 0 &&
		k.IndexAssignmentDim0 >= 0 &&
		k.IndexAssignmentDim1 >= 0 &&
		k.IndexAssignmentDim0 != k.IndexAssignmentDim1
}

// UnrollIndex returns the logical index of the innermost summation.
func (k *Kernel) UnrollIndex() int {
	return len(k.IndexOrderC) + k.IndexOrderSummation[len(k.IndexOrderSummation)-1]
}

func (k *Kernel) UseAlpha() bool { return k.DataTypeAlpha != None }
func (k *Kernel) UseBeta() bool  { return k.DataTypeBeta != None }

// LoadRequiresFewerThreadsA reports loads of A that leave threads idle.
func (k *Kernel) LoadRequiresFewerThreadsA() bool {
	return k.Tile.WorkGroup[0]*k.Tile.WorkGroup[1] > k.LoadA.LoadSizePara*k.LoadA.LoadSizePerp
}

// LoadRequiresFewerThreadsB reports loads of B that leave threads idle.
func (k *Kernel) LoadRequiresFewerThreadsB() bool {
	return k.Tile.WorkGroup[0]*k.Tile.WorkGroup[1] > k.LoadB.LoadSizePara*k.LoadB.LoadSizePerp
}

func (k *Kernel) Clone() *Kernel {
	if k == nil {
		return nil
	}
	c := *k
	c.IndexOrderC = slices.Clone(k.IndexOrderC)
	c.IndexOrderSummation = slices.Clone(k.IndexOrderSummation)
	c.Unrolls = slices.Clone(k.Unrolls)
	c.Problem = k.Problem.Clone()
	return &c
}

// Key encodes the attributes that make two kernels the same compiled
// code. The problem copy is deliberately not part of it: one kernel serves
// every problem sharing its exact match.
func (k *Kernel) Key() string {
	if k == nil {
		return "nil"
	}
	var b keyBuilder
	b.int(int(k.DataTypeC)).int(int(k.DataTypeA)).int(int(k.DataTypeB)).
		int(int(k.DataTypeAlpha)).int(int(k.DataTypeBeta)).
		ints(k.IndexOrderC).ints(k.IndexOrderSummation).
		int(k.IndexAssignmentDim0).int(k.IndexAssignmentDim1).
		bool(k.UnrollDimStrideGreaterThanTileDimStrideA).
		bool(k.UnrollDimStrideLessThanTileDimStrideB).
		int(k.Tile.WorkGroup[0]).int(k.Tile.WorkGroup[1]).
		int(k.Tile.MicroTile[0]).int(k.Tile.MicroTile[1]).
		int(int(k.Tile.Branch[0])).int(int(k.Tile.Branch[1])).
		ints(k.Unrolls).
		bool(k.Optimization.Offsets).bool(k.Optimization.LeadingStrides).bool(k.Optimization.All)
	for _, g := range []LoadGeometry{k.LoadA, k.LoadB} {
		b.int(g.NumLoadsPara).int(g.NumLoadsPerp).int(g.LoadSizePara).int(g.LoadSizePerp)
	}
	return b.String()
}

func (k *Kernel) String() string {
	if k == nil {
		return "None"
	}
	return fmt.Sprintf("[Kernel; %s; %s; %s; %s; %s; %s; %v; %v; %d; %d; %v; %d; %d]",
		k.Tile, k.DataTypeC, k.DataTypeA, k.DataTypeB, k.DataTypeAlpha, k.DataTypeBeta,
		k.IndexOrderC, k.IndexOrderSummation, k.IndexAssignmentDim0, k.IndexAssignmentDim1,
		k.Unrolls, k.LoadA.NumLoadsPara, k.LoadB.NumLoadsPara)
}
