package tracefmt

import (
	"strconv"

	"github.com/samcharles93/tensile/pkg/contraction"
)

// Tag names of the trace document.
const (
	TagRoot       = "Tensile"
	TagEntry      = "TE"
	TagProblem    = "P"
	TagTensorC    = "TC"
	TagTensorA    = "TA"
	TagTensorB    = "TB"
	TagOperation  = "O"
	TagIndicesA   = "IA"
	TagIndicesB   = "IB"
	TagDevices    = "DP"
	TagSolution   = "ID"
	TagKernel     = "K"
	TagTiming     = "B"
	TagValidation = "V"
)

// Validation markers carried by the s attribute of V.
const (
	ValidationPass = "P"
	ValidationFail = "F"
)

// Attr is one name="value" pair in document order.
type Attr struct {
	Name  string
	Value string
}

func itoa(v int) string { return strconv.Itoa(v) }

func btoa(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// SolutionAttrs returns the attributes of the ID element describing s.
func SolutionAttrs(s *contraction.Solution) []Attr {
	return []Attr{
		{"kG0", itoa(s.KernelGrid[0])},
		{"kG1", itoa(s.KernelGrid[1])},
		{"kG2", itoa(s.KernelGrid[2])},
		{"b0", itoa(int(s.Branch[0]))},
		{"b1", itoa(int(s.Branch[1]))},
		{"ppdO", btoa(s.Optimization.Offsets)},
		{"ppdLS", btoa(s.Optimization.LeadingStrides)},
		{"ppdAll", btoa(s.Optimization.All)},
	}
}

// KernelAttrs returns the attributes of the K element for kernel slot i.
// u1 is 0 when the kernel has a single unroll.
func KernelAttrs(i int, k *contraction.Kernel) []Attr {
	u0, u1 := 0, 0
	if len(k.Unrolls) > 0 {
		u0 = k.Unrolls[0]
	}
	if len(k.Unrolls) > 1 {
		u1 = k.Unrolls[1]
	}
	a, b := k.LoadA, k.LoadB
	return []Attr{
		{"i", itoa(i)},
		{"wG0", itoa(k.Tile.WorkGroup[0])},
		{"wG1", itoa(k.Tile.WorkGroup[1])},
		{"mT0", itoa(k.Tile.MicroTile[0])},
		{"mT1", itoa(k.Tile.MicroTile[1])},
		{"b0", itoa(int(k.Tile.Branch[0]))},
		{"b1", itoa(int(k.Tile.Branch[1]))},
		{"nlpaA", itoa(a.NumLoadsPara)},
		{"lspaA", itoa(a.LoadSizePara)},
		{"tspaA", itoa(a.TotalLoadSizePara)},
		{"nlpeA", itoa(a.NumLoadsPerp)},
		{"lspeA", itoa(a.LoadSizePerp)},
		{"tspeA", itoa(a.TotalLoadSizePerp)},
		{"nlpaB", itoa(b.NumLoadsPara)},
		{"lspaB", itoa(b.LoadSizePara)},
		{"tspaB", itoa(b.TotalLoadSizePara)},
		{"nlpeB", itoa(b.NumLoadsPerp)},
		{"lspeB", itoa(b.LoadSizePerp)},
		{"tspeB", itoa(b.TotalLoadSizePerp)},
		{"u0", itoa(u0)},
		{"u1", itoa(u1)},
	}
}

func tensorAttrs(t contraction.Tensor) []Attr {
	attrs := []Attr{{"t", itoa(int(t.DataType))}, {"n", itoa(t.NumDims())}}
	for i, d := range t.Dimensions {
		attrs = append(attrs, Attr{"st" + itoa(i), itoa(d.Stride)}, Attr{"sz" + itoa(i), itoa(d.Size)})
	}
	return attrs
}

func operationAttrs(o contraction.Operation) []Attr {
	return []Attr{
		{"t", itoa(int(o.Type))},
		{"a", itoa(int(o.AlphaType))},
		{"b", itoa(int(o.BetaType))},
		{"o", btoa(o.UseOffsets)},
		{"nF", itoa(o.NumIndicesFree)},
		{"nB", itoa(o.NumIndicesBatch)},
		{"nS", itoa(o.NumIndicesSum)},
	}
}

func indexAttrs(assignments []int) []Attr {
	attrs := []Attr{{"n", itoa(len(assignments))}}
	for i, v := range assignments {
		attrs = append(attrs, Attr{"i" + itoa(i), itoa(v)})
	}
	return attrs
}

func deviceAttrs(p contraction.DeviceProfile) []Attr {
	attrs := []Attr{{"n", itoa(len(p.Devices))}}
	for i, d := range p.Devices {
		s := itoa(i)
		attrs = append(attrs,
			Attr{"d" + s, d.Name},
			Attr{"CU" + s, itoa(d.NumComputeUnits)},
			Attr{"MHz" + s, itoa(d.ClockFrequency)},
			Attr{"FPC" + s, itoa(d.FlopsPerClock)},
		)
	}
	return attrs
}
