package codegen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/tensile/internal/indexing"
	"github.com/samcharles93/tensile/pkg/contraction"
)

func matmul(n int) contraction.Problem {
	return contraction.Problem{
		TensorC: contraction.NewTensor(contraction.Single, contraction.Dimension{Stride: 1, Size: n}, contraction.Dimension{Stride: n, Size: n}),
		TensorA: contraction.NewTensor(contraction.Single, contraction.Dimension{Stride: 1, Size: n}, contraction.Dimension{Stride: n, Size: n}),
		TensorB: contraction.NewTensor(contraction.Single, contraction.Dimension{Stride: 1, Size: n}, contraction.Dimension{Stride: n, Size: n}),
		Operation: contraction.Operation{
			Type:              contraction.Contraction,
			AlphaType:         contraction.Single,
			BetaType:          contraction.Single,
			NumIndicesFree:    2,
			NumIndicesSum:     1,
			IndexAssignmentsA: []int{0, 2},
			IndexAssignmentsB: []int{2, 1},
		},
		DeviceProfile: contraction.NewDeviceProfile(contraction.Device{Name: "Fiji", NumComputeUnits: 64, ClockFrequency: 1000, FlopsPerClock: 128}),
	}
}

func kernel(t *testing.T, p contraction.Problem, opt contraction.Optimization, branch contraction.BranchType) *contraction.Kernel {
	t.Helper()
	k := contraction.NewKernel()
	k.DataTypeC, k.DataTypeA, k.DataTypeB = p.TensorC.DataType, p.TensorA.DataType, p.TensorB.DataType
	k.DataTypeAlpha, k.DataTypeBeta = p.Operation.AlphaType, p.Operation.BetaType
	k.Problem = p.Clone()
	k.Tile = contraction.Tile{
		WorkGroup: [2]int{16, 16},
		MicroTile: [2]int{4, 4},
		Branch:    [2]contraction.BranchType{branch, branch},
	}
	k.Unrolls = []int{8}
	k.Optimization = opt
	require.NoError(t, indexing.ApplyToKernel(indexing.Default, k, p))
	return k
}

func matmulSolution(t *testing.T, opt contraction.Optimization) *contraction.Solution {
	t.Helper()
	p := matmul(512)
	s := &contraction.Solution{
		KernelGrid:   [3]int{1, 1, 1},
		Branch:       [2]contraction.BranchType{contraction.BranchMultiple, contraction.BranchMultiple},
		Optimization: opt,
	}
	s.Kernels[0] = kernel(t, p, opt, contraction.BranchMultiple)
	return s
}

func TestDefaultKernelNamer(t *testing.T) {
	t.Parallel()

	s := matmulSolution(t, contraction.Optimization{})
	got := DefaultKernelNamer{}.KernelName(s.Kernels[0])
	assert.Equal(t, "CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4m_k8_O0", got)

	s.Kernels[0].Unrolls = []int{8, 1}
	s.Kernels[0].Optimization = contraction.Optimization{Offsets: true, LeadingStrides: true}
	got = DefaultKernelNamer{}.KernelName(s.Kernels[0])
	assert.Equal(t, "CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4m_k8x1_O3", got)
}

func TestSolutionName(t *testing.T) {
	t.Parallel()

	s := matmulSolution(t, contraction.Optimization{})
	s.KernelGrid = [3]int{2, 3, 1}
	s.Branch[0] = contraction.BranchBranched
	w := New(contraction.HIP, nil)
	assert.Equal(t, "CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4m_k8_O0_G2b3", w.Name(s))
}

func TestResolveTensorAssignments(t *testing.T) {
	t.Parallel()

	s := matmulSolution(t, contraction.Optimization{})
	got := ResolveTensorAssignments(s.Kernels[0])
	assert.Equal(t, TensorAssignments{D0InTensorA: true, AD0or1: 0, ADU: 1, BD0or1: 1, BDU: 0}, got)
}

func labels(layout ArgLayout) []string {
	out := make([]string, len(layout.Args))
	for i, a := range layout.Args {
		out[i] = a.Label()
	}
	return out
}

func TestLayoutKernelArgs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		opt           contraction.Optimization
		labels        []string
		dim0, dim1, u int
	}{
		{
			name:   "all runtime",
			opt:    contraction.Optimization{},
			labels: []string{"strideCI", "strideCJ", "strideAI", "strideAK", "strideBK", "strideBJ", "sizeI", "sizeJ", "sizeK"},
			dim0:   6, dim1: 7, u: 8,
		},
		{
			name:   "leading strides compiled in",
			opt:    contraction.Optimization{Offsets: true, LeadingStrides: true},
			labels: []string{"strideCJ", "strideAK", "strideBJ", "sizeI", "sizeJ", "sizeK"},
			dim0:   3, dim1: 4, u: 5,
		},
		{
			name:   "everything compiled in",
			opt:    contraction.Optimization{Offsets: true, LeadingStrides: true, All: true},
			labels: []string{},
			dim0:   -1, dim1: -1, u: -1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			layout := LayoutKernelArgs(matmulSolution(t, tc.opt))
			assert.Equal(t, tc.labels, labels(layout))
			assert.Equal(t, tc.dim0, layout.Dim0Slot)
			assert.Equal(t, tc.dim1, layout.Dim1Slot)
			assert.Equal(t, tc.u, layout.SummationSlot)
		})
	}
}

func TestKernelArgExpr(t *testing.T) {
	t.Parallel()

	a := KernelArg{Kind: ArgStride, Tensor: 'A', Pos: 1, Index: 2}
	assert.Equal(t, "&inputProblem.tensorA[1].stride", a.Expr())
	assert.Equal(t, "strideAK", a.Label())

	b := KernelArg{Kind: ArgSize, Tensor: 'C', Pos: 0, Index: 0}
	assert.Equal(t, "&inputProblem.tensorC[0].size", b.Expr())
	assert.Equal(t, "sizeI", b.Label())
}

func TestGenerateHIP(t *testing.T) {
	t.Parallel()

	s := matmulSolution(t, contraction.Optimization{})
	a, err := New(contraction.HIP, nil).Generate(s)
	require.NoError(t, err)

	name := "CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4m_k8_O0_G1m1"
	assert.Equal(t, name, a.Name)

	assert.True(t, strings.HasPrefix(a.Header, "// Code generated by tensile "))
	assert.Contains(t, a.Header, "#ifndef "+strings.ToUpper(name)+"_H")
	assert.Contains(t, a.Header, "#include \"CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4m_k8_O0.h\"")
	assert.Contains(t, a.Header, "public SolutionHIP<TypeC,TypeA,TypeB,TypeAlpha,TypeBeta>")
	assert.Contains(t, a.Header, "TensileStatus enqueue(")

	assert.Contains(t, a.Source, "#include \""+name+".h\"")
	assert.Contains(t, a.Source, "this->indexAssignmentCd0 = 0;")
	assert.Contains(t, a.Source, "this->indexAssignmentCd1 = 1;")
	assert.Contains(t, a.Source, "this->d0InTensorA = true;")
	assert.Contains(t, a.Source, "this->indexAssignmentAdU = 1;")
	assert.Contains(t, a.Source, "this->indexAssignmentBdU = 0;")
	assert.Contains(t, a.Source, "this->workGroup[0] = 16;")
	assert.Contains(t, a.Source, "this->microTile[1] = 4;")
	assert.Contains(t, a.Source, "this->kernelGrid[2] = 1;")
	assert.Contains(t, a.Source, "this->edge[0] = true;")
	assert.Contains(t, a.Source, "this->numKernelArgs = 3;")
	assert.Contains(t, a.Source, "this->kernelArgs[this->numKernelArgs] = &inputProblem.tensorA[1].stride; // strideAK")
	assert.Contains(t, a.Source, "this->kernelArgIdxSummation = this->numKernelArgs;")
	assert.Contains(t, a.Source, "this->requireAlpha = true;")
	assert.Contains(t, a.Source, "HIP_KERNEL_NAME(CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4m_k8_O0)")
	assert.Contains(t, a.Source, "this->enqueueArgs[kernelIdx][i][11]);")
	assert.NotContains(t, a.Source, "[12]")
	assert.NotContains(t, a.Source, "kernelSources")
	assert.Contains(t, a.Source, "#pragma clang diagnostic push")
	assert.Contains(t, a.Source, "template class "+name+"<float,float,float,float,float>;")
	assert.Equal(t, 2, strings.Count(a.Source, "throw tensileStatusInvalidParameter;"))
}

func TestGenerateOpenCL(t *testing.T) {
	t.Parallel()

	s := matmulSolution(t, contraction.Optimization{Offsets: true, LeadingStrides: true, All: true})
	a, err := New(contraction.OpenCL12, nil).Generate(s)
	require.NoError(t, err)

	assert.Contains(t, a.Header, "public SolutionOpenCL<TypeC,TypeA,TypeB,TypeAlpha,TypeBeta>")
	assert.NotContains(t, a.Header, "enqueue")
	assert.NotContains(t, a.Source, "hipLaunchKernel")
	assert.NotContains(t, a.Source, "#pragma")
	assert.Contains(t, a.Source, "this->kernelSources[0] = CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4m_k8_O4_src;")
	assert.Contains(t, a.Source, "this->kernelSources[1] = nullptr;")
	assert.Contains(t, a.Source, "this->numKernels = 1;")
	assert.Contains(t, a.Source, "this->numKernelArgs = 0;")
	assert.Contains(t, a.Source, "this->argSizes = false;")
	assert.NotContains(t, a.Source, "kernelArgIdxDim0")
	assert.Contains(t, a.Source, "this->globalWorkSize[kernelIdx][i] *= this->localWorkSize[i];")
}

func TestGenerateDetailXML(t *testing.T) {
	t.Parallel()

	s := matmulSolution(t, contraction.Optimization{})
	a, err := New(contraction.HIP, nil).Generate(s)
	require.NoError(t, err)

	assert.Contains(t, a.Source, `detail += indent + "<ID";`)
	assert.Contains(t, a.Source, `detail += " kG0=\"1\"";`)
	assert.Contains(t, a.Source, `detail += " ppdAll=\"0\"";`)
	assert.Equal(t, 1, strings.Count(a.Source, `detail += indent + "  <K";`))
	assert.Contains(t, a.Source, `detail += " wG0=\"16\"";`)
	assert.Contains(t, a.Source, `detail += " u1=\"0\"";`)
}

func TestGenerateUnusedScalars(t *testing.T) {
	t.Parallel()

	p := matmul(64)
	p.Operation.BetaType = contraction.None
	s := &contraction.Solution{
		KernelGrid: [3]int{1, 1, 1},
		Branch:     [2]contraction.BranchType{contraction.BranchMultiple, contraction.BranchMultiple},
	}
	s.Kernels[0] = kernel(t, p, contraction.Optimization{}, contraction.BranchMultiple)

	a, err := New(contraction.HIP, nil).Generate(s)
	require.NoError(t, err)
	assert.Contains(t, a.Source, "<float,float,float,float,void>;")
	assert.Contains(t, a.Source, "this->requireBeta = false;")
}

func TestGenerateRejectsIncompleteSolution(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(s *contraction.Solution)
	}{
		{"missing kernel 0", func(s *contraction.Solution) { s.Kernels[0] = nil }},
		{"zero grid", func(s *contraction.Solution) { s.KernelGrid[1] = 0 }},
		{"unresolved indices", func(s *contraction.Solution) { s.Kernels[0].IndexAssignmentDim0 = -1 }},
		{"no unroll", func(s *contraction.Solution) { s.Kernels[0].Unrolls = nil }},
		{"zero tile", func(s *contraction.Solution) { s.Kernels[0].Tile.WorkGroup[0] = 0 }},
		{"invalid branch", func(s *contraction.Solution) { s.Branch[1] = contraction.BranchType(7) }},
		{"optimization mismatch", func(s *contraction.Solution) { s.Kernels[0].Optimization.Offsets = true }},
		{"branch not mirrored", func(s *contraction.Solution) { s.Branch[0] = contraction.BranchBranched }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := matmulSolution(t, contraction.Optimization{})
			tc.mutate(s)
			a, err := New(contraction.HIP, nil).Generate(s)
			require.ErrorIs(t, err, ErrIncompleteSolution)
			assert.Empty(t, a.Source)
		})
	}

	_, err := New(contraction.HIP, nil).Generate(nil)
	require.ErrorIs(t, err, ErrIncompleteSolution)
}

func TestGenerateRejectsInvalidName(t *testing.T) {
	t.Parallel()

	namer := KernelNamerFunc(func(*contraction.Kernel) string { return "bad-name" })
	_, err := New(contraction.HIP, namer).Generate(matmulSolution(t, contraction.Optimization{}))
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestCustomKernelNamer(t *testing.T) {
	t.Parallel()

	namer := KernelNamerFunc(func(*contraction.Kernel) string { return "gemm" })
	a, err := New(contraction.HIP, namer).Generate(matmulSolution(t, contraction.Optimization{}))
	require.NoError(t, err)
	assert.Equal(t, "gemm_G1m1", a.Name)
	assert.Contains(t, a.Source, "HIP_KERNEL_NAME(gemm)")
}

func TestGenerateIsDeterministic(t *testing.T) {
	t.Parallel()

	w := New(contraction.OpenCL12, nil)
	first, err := w.Generate(matmulSolution(t, contraction.Optimization{}))
	require.NoError(t, err)
	second, err := w.Generate(matmulSolution(t, contraction.Optimization{}))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	a, err := New(contraction.HIP, nil).WriteFiles(dir, matmulSolution(t, contraction.Optimization{}))
	require.NoError(t, err)

	header, err := os.ReadFile(filepath.Join(dir, a.Name+".h"))
	require.NoError(t, err)
	assert.Equal(t, a.Header, string(header))
	source, err := os.ReadFile(filepath.Join(dir, a.Name+".cpp"))
	require.NoError(t, err)
	assert.Equal(t, a.Source, string(source))
}

func TestCheckCompatible(t *testing.T) {
	t.Parallel()

	p := matmul(128)
	require.NoError(t, CheckCompatible(matmulSolution(t, contraction.Optimization{Offsets: true, LeadingStrides: true}), p))

	withOffsets := p.Clone()
	withOffsets.Operation.UseOffsets = true
	require.ErrorIs(t, CheckCompatible(matmulSolution(t, contraction.Optimization{Offsets: true}), withOffsets), ErrIncompatibleProblem)
	require.NoError(t, CheckCompatible(matmulSolution(t, contraction.Optimization{}), withOffsets))

	strided := p.Clone()
	strided.TensorA.Dimensions[0].Stride = 2
	require.ErrorIs(t, CheckCompatible(matmulSolution(t, contraction.Optimization{LeadingStrides: true}), strided), ErrIncompatibleProblem)
	require.NoError(t, CheckCompatible(matmulSolution(t, contraction.Optimization{Offsets: true}), strided))
}
