// Package tracefmt reads and writes the tag-attribute trace document that
// benchmark runs emit: problem descriptions, the solutions benchmarked on
// them, and their timing and validation outcomes.
package tracefmt

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/samcharles93/tensile/pkg/contraction"
)

// Handler receives records as they complete. Every argument is a private
// copy the handler may keep.
type Handler interface {
	Timing(p contraction.Problem, s *contraction.Solution, elapsed float64) error
	Validation(p contraction.Problem, s *contraction.Solution, passed bool) error
	ProblemDone(p contraction.Problem) error
}

// HandlerFuncs adapts optional callbacks to Handler. Nil fields ignore
// their records.
type HandlerFuncs struct {
	OnTiming      func(p contraction.Problem, s *contraction.Solution, elapsed float64) error
	OnValidation  func(p contraction.Problem, s *contraction.Solution, passed bool) error
	OnProblemDone func(p contraction.Problem) error
}

func (h HandlerFuncs) Timing(p contraction.Problem, s *contraction.Solution, elapsed float64) error {
	if h.OnTiming == nil {
		return nil
	}
	return h.OnTiming(p, s, elapsed)
}

func (h HandlerFuncs) Validation(p contraction.Problem, s *contraction.Solution, passed bool) error {
	if h.OnValidation == nil {
		return nil
	}
	return h.OnValidation(p, s, passed)
}

func (h HandlerFuncs) ProblemDone(p contraction.Problem) error {
	if h.OnProblemDone == nil {
		return nil
	}
	return h.OnProblemDone(p)
}

// Mode selects which records a decode delivers.
type Mode int

const (
	// ModeSolutions reads solutions and delivers timing and validation
	// records. Problem ends are not reported.
	ModeSolutions Mode = iota
	// ModeProblems ignores solution content and reports each problem when
	// its element closes.
	ModeProblems
)

// Options configure a Decoder.
type Options struct {
	Mode Mode
	// When OptimizeAlpha is false the alpha type is forced to C's type and
	// the a attribute is not read. Likewise for beta.
	OptimizeAlpha bool
	OptimizeBeta  bool
	// Resolver fills kernel index fields as kernels are read. Kernels stay
	// unresolved when nil.
	Resolver contraction.IndexResolver
	// Lenient delivers records about problems that fail
	// contraction.Problem.Validate. By default the first kernel, timing,
	// validation or problem end that refers to such a problem fails the
	// decode with a *ParseError.
	Lenient bool
}

// Decoder streams a trace document. It owns a single working problem and
// solution that each element updates in place.
type Decoder struct {
	dec  *xml.Decoder
	opts Options

	problem  contraction.Problem
	solution contraction.Solution
	// checked is set once problem passed validation and cleared by every
	// element that changes it.
	checked bool

	line int
	tag  string
}

func NewDecoder(r io.Reader, opts Options) *Decoder {
	return &Decoder{dec: xml.NewDecoder(r), opts: opts}
}

// Decode reads r to the end, delivering records to h.
func Decode(r io.Reader, opts Options, h Handler) error {
	return NewDecoder(r, opts).Decode(h)
}

// Decode consumes the document. The first malformed element or handler
// error stops decoding.
func (d *Decoder) Decode(h Handler) error {
	for {
		tok, err := d.dec.Token()
		line, _ := d.dec.InputPos()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &ParseError{Line: line, Tag: d.tag, Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			d.line, d.tag = line, t.Name.Local
			if err := d.start(t, h); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local == TagProblem && d.opts.Mode == ModeProblems {
				d.line, d.tag = line, t.Name.Local
				if err := d.checkProblem(); err != nil {
					return err
				}
				if err := h.ProblemDone(d.problem.Clone()); err != nil {
					return fmt.Errorf("tracefmt: line %d: %w", line, err)
				}
			}
		}
	}
}

func (d *Decoder) start(el xml.StartElement, h Handler) error {
	a := d.attrs(el)
	readSolutions := d.opts.Mode == ModeSolutions
	switch el.Name.Local {
	case TagProblem, TagTensorC, TagTensorA, TagTensorB, TagOperation, TagIndicesA, TagIndicesB, TagDevices:
		d.checked = false
	}
	switch el.Name.Local {
	case TagProblem:
		d.problem = contraction.Problem{}
	case TagTensorC:
		return d.readTensor(a, &d.problem.TensorC)
	case TagTensorA:
		return d.readTensor(a, &d.problem.TensorA)
	case TagTensorB:
		return d.readTensor(a, &d.problem.TensorB)
	case TagOperation:
		return d.readOperation(a)
	case TagIndicesA:
		return d.readIndices(a, &d.problem.Operation.IndexAssignmentsA)
	case TagIndicesB:
		return d.readIndices(a, &d.problem.Operation.IndexAssignmentsB)
	case TagDevices:
		return d.readDevices(a)
	case TagSolution:
		if readSolutions {
			return d.readSolution(a)
		}
	case TagKernel:
		if readSolutions {
			return d.readKernel(a)
		}
	case TagTiming:
		if readSolutions {
			elapsed := a.float("t")
			if a.err != nil {
				return a.err
			}
			if err := d.checkProblem(); err != nil {
				return err
			}
			if err := h.Timing(d.problem.Clone(), d.solution.Clone(), elapsed); err != nil {
				return fmt.Errorf("tracefmt: line %d: %w", d.line, err)
			}
		}
	case TagValidation:
		if readSolutions {
			status := a.str("s")
			if a.err != nil {
				return a.err
			}
			if err := d.checkProblem(); err != nil {
				return err
			}
			if err := h.Validation(d.problem.Clone(), d.solution.Clone(), status == ValidationPass); err != nil {
				return fmt.Errorf("tracefmt: line %d: %w", d.line, err)
			}
		}
	}
	return nil
}

// checkProblem validates the working problem once per change.
func (d *Decoder) checkProblem() error {
	if d.opts.Lenient || d.checked {
		return nil
	}
	if err := d.problem.Validate(); err != nil {
		return &ParseError{Line: d.line, Tag: d.tag, Err: fmt.Errorf("%w: %w", ErrInvalidProblem, err)}
	}
	d.checked = true
	return nil
}

func (d *Decoder) readTensor(a *attrReader, t *contraction.Tensor) error {
	t.DataType = contraction.DataType(a.int("t"))
	n := a.count("n")
	t.Dimensions = t.Dimensions[:0]
	for i := 0; i < n && a.err == nil; i++ {
		s := strconv.Itoa(i)
		t.Dimensions = append(t.Dimensions, contraction.Dimension{Stride: a.int("st" + s), Size: a.int("sz" + s)})
	}
	return a.err
}

func (d *Decoder) readOperation(a *attrReader) error {
	op := &d.problem.Operation
	op.Type = contraction.OperationType(a.int("t"))
	op.AlphaType = d.problem.TensorC.DataType
	if d.opts.OptimizeAlpha {
		op.AlphaType = contraction.DataType(a.int("a"))
	}
	op.BetaType = d.problem.TensorC.DataType
	if d.opts.OptimizeBeta {
		op.BetaType = contraction.DataType(a.int("b"))
	}
	op.UseOffsets = a.int("o") != 0
	op.NumIndicesFree = a.int("nF")
	op.NumIndicesBatch = a.int("nB")
	op.NumIndicesSum = a.int("nS")
	return a.err
}

func (d *Decoder) readIndices(a *attrReader, dst *[]int) error {
	n := a.count("n")
	out := make([]int, 0, min(n, len(a.values)))
	for i := 0; i < n && a.err == nil; i++ {
		out = append(out, a.int("i"+strconv.Itoa(i)))
	}
	*dst = out
	return a.err
}

func (d *Decoder) readDevices(a *attrReader) error {
	n := a.count("n")
	devices := make([]contraction.Device, 0, min(n, len(a.values)))
	for i := 0; i < n && a.err == nil; i++ {
		s := strconv.Itoa(i)
		devices = append(devices, contraction.Device{
			Name:            contraction.SanitizeDeviceName(a.str("d" + s)),
			NumComputeUnits: a.int("CU" + s),
			ClockFrequency:  a.int("MHz" + s),
			FlopsPerClock:   a.int("FPC" + s),
		})
	}
	d.problem.DeviceProfile.Devices = devices
	return a.err
}

func (d *Decoder) readSolution(a *attrReader) error {
	s := contraction.Solution{
		KernelGrid: [3]int{a.int("kG0"), a.int("kG1"), a.int("kG2")},
		Branch:     [2]contraction.BranchType{contraction.BranchType(a.int("b0")), contraction.BranchType(a.int("b1"))},
		Optimization: contraction.Optimization{
			Offsets:        a.int("ppdO") != 0,
			LeadingStrides: a.int("ppdLS") != 0,
			All:            a.int("ppdAll") != 0,
		},
	}
	if a.err != nil {
		return a.err
	}
	d.solution = s
	return nil
}

func (d *Decoder) readKernel(a *attrReader) error {
	slot := a.int("i")
	if a.err == nil && (slot < 0 || slot >= contraction.MaxKernels) {
		return &ParseError{Line: d.line, Tag: d.tag, Attr: "i", Err: ErrKernelSlot}
	}
	k := contraction.NewKernel()
	k.Tile = contraction.Tile{
		WorkGroup: [2]int{a.int("wG0"), a.int("wG1")},
		MicroTile: [2]int{a.int("mT0"), a.int("mT1")},
		Branch:    [2]contraction.BranchType{contraction.BranchType(a.int("b0")), contraction.BranchType(a.int("b1"))},
	}
	k.LoadA = contraction.LoadGeometry{
		NumLoadsPara: a.int("nlpaA"), LoadSizePara: a.int("lspaA"), TotalLoadSizePara: a.int("tspaA"),
		NumLoadsPerp: a.int("nlpeA"), LoadSizePerp: a.int("lspeA"), TotalLoadSizePerp: a.int("tspeA"),
	}
	k.LoadB = contraction.LoadGeometry{
		NumLoadsPara: a.int("nlpaB"), LoadSizePara: a.int("lspaB"), TotalLoadSizePara: a.int("tspaB"),
		NumLoadsPerp: a.int("nlpeB"), LoadSizePerp: a.int("lspeB"), TotalLoadSizePerp: a.int("tspeB"),
	}
	k.Unrolls = []int{a.int("u0")}
	if u1 := a.int("u1"); u1 > 0 {
		k.Unrolls = append(k.Unrolls, u1)
	}
	if a.err != nil {
		return a.err
	}
	if err := d.checkProblem(); err != nil {
		return err
	}

	p := d.problem
	k.DataTypeC = p.TensorC.DataType
	k.DataTypeA = p.TensorA.DataType
	k.DataTypeB = p.TensorB.DataType
	k.DataTypeAlpha = p.Operation.AlphaType
	k.DataTypeBeta = p.Operation.BetaType
	k.Problem = p.Clone()
	k.Optimization = d.solution.Optimization
	if d.opts.Resolver != nil {
		assignment, err := d.opts.Resolver.ResolveIndices(p)
		if err != nil {
			return &ParseError{Line: d.line, Tag: d.tag, Err: err}
		}
		k.SetIndexAssignment(assignment)
	}
	d.solution.Kernels[slot] = k
	return nil
}

// attrReader looks up attributes by name and keeps the first failure, so a
// run of reads can be checked once.
type attrReader struct {
	values map[string]string
	line   int
	tag    string
	err    error
}

func (d *Decoder) attrs(el xml.StartElement) *attrReader {
	values := make(map[string]string, len(el.Attr))
	for _, at := range el.Attr {
		values[at.Name.Local] = at.Value
	}
	return &attrReader{values: values, line: d.line, tag: el.Name.Local}
}

func (a *attrReader) fail(name string, err error) {
	if a.err == nil {
		a.err = &ParseError{Line: a.line, Tag: a.tag, Attr: name, Err: err}
	}
}

func (a *attrReader) str(name string) string {
	v, ok := a.values[name]
	if !ok {
		a.fail(name, ErrMissingAttribute)
	}
	return v
}

func (a *attrReader) int(name string) int {
	v, ok := a.values[name]
	if !ok {
		a.fail(name, ErrMissingAttribute)
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		a.fail(name, err)
	}
	return n
}

// count reads a non-negative element count. A failed read yields zero.
func (a *attrReader) count(name string) int {
	n := a.int(name)
	if a.err != nil {
		return 0
	}
	if n < 0 {
		a.fail(name, ErrNegativeCount)
		return 0
	}
	return n
}

func (a *attrReader) float(name string) float64 {
	v, ok := a.values[name]
	if !ok {
		a.fail(name, ErrMissingAttribute)
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		a.fail(name, err)
	}
	return f
}
