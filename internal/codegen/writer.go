// Package codegen turns a resolved solution into the host-side C++ class
// that configures and launches its kernels, for OpenCL 1.2 or HIP.
package codegen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samcharles93/tensile/internal/version"
	"github.com/samcharles93/tensile/pkg/contraction"
	"github.com/samcharles93/tensile/pkg/tracefmt"
)

const templateParams = "template< typename TypeC, typename TypeA, typename TypeB, typename TypeAlpha, typename TypeBeta >"

// Artifact is the generated header and source of one solution.
type Artifact struct {
	Name   string
	Header string
	Source string
}

// SolutionWriter emits solution classes for one backend.
type SolutionWriter struct {
	backend contraction.Backend
	namer   KernelNamer
	banner  string
}

// New returns a writer for backend. A nil namer uses DefaultKernelNamer.
func New(backend contraction.Backend, namer KernelNamer) *SolutionWriter {
	if namer == nil {
		namer = DefaultKernelNamer{}
	}
	return &SolutionWriter{
		backend: backend,
		namer:   namer,
		banner:  "// Code generated by tensile " + version.String() + ". DO NOT EDIT.",
	}
}

func (w *SolutionWriter) Backend() contraction.Backend { return w.backend }

// WithBackend returns a writer sharing w's namer that targets b.
func (w *SolutionWriter) WithBackend(b contraction.Backend) *SolutionWriter {
	if b == w.backend {
		return w
	}
	c := *w
	c.backend = b
	return &c
}

// Name derives the solution name from kernel 0's name, grid dim 0, the
// dim 0 branch character and grid dim 1.
func (w *SolutionWriter) Name(s *contraction.Solution) string {
	return w.namer.KernelName(s.Kernels[0]) + "_G" +
		strconv.Itoa(s.KernelGrid[0]) + s.Branch[0].Char() + strconv.Itoa(s.KernelGrid[1])
}

// Generate validates s and emits its header and source. Nothing is
// returned for a solution that fails validation.
func (w *SolutionWriter) Generate(s *contraction.Solution) (Artifact, error) {
	if err := checkSolution(s); err != nil {
		return Artifact{}, err
	}
	name := w.Name(s)
	if !validIdentifier(name) {
		return Artifact{}, fmt.Errorf("codegen: %q: %w", name, ErrInvalidName)
	}
	for i, k := range s.Kernels {
		if k == nil {
			continue
		}
		if kn := w.namer.KernelName(k); !validIdentifier(kn) {
			return Artifact{}, fmt.Errorf("codegen: kernel %d name %q: %w", i, kn, ErrInvalidName)
		}
	}
	return Artifact{
		Name:   name,
		Header: w.header(name, s),
		Source: w.source(name, s),
	}, nil
}

// WriteFiles generates s and writes <Name>.h and <Name>.cpp into dir.
func (w *SolutionWriter) WriteFiles(dir string, s *contraction.Solution) (Artifact, error) {
	a, err := w.Generate(s)
	if err != nil {
		return Artifact{}, err
	}
	return a, a.Write(dir)
}

// Write stores the header and source as <Name>.h and <Name>.cpp in dir.
func (a Artifact) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("codegen: create %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, a.Name+".h"), []byte(a.Header), 0o644); err != nil {
		return fmt.Errorf("codegen: write header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, a.Name+".cpp"), []byte(a.Source), 0o644); err != nil {
		return fmt.Errorf("codegen: write source: %w", err)
	}
	return nil
}

func (w *SolutionWriter) baseClass() string {
	if w.backend == contraction.OpenCL12 {
		return "SolutionOpenCL<TypeC,TypeA,TypeB,TypeAlpha,TypeBeta>"
	}
	return "SolutionHIP<TypeC,TypeA,TypeB,TypeAlpha,TypeBeta>"
}

// templateArgs is the explicit instantiation argument list.
func templateArgs(s *contraction.Solution) string {
	k := s.Kernels[0]
	op := k.Problem.Operation
	alpha, beta := "void", "void"
	if op.UseAlpha() {
		alpha = op.AlphaType.Cpp()
	}
	if op.UseBeta() {
		beta = op.BetaType.Cpp()
	}
	return "<" + strings.Join([]string{k.DataTypeC.Cpp(), k.DataTypeA.Cpp(), k.DataTypeB.Cpp(), alpha, beta}, ",") + ">"
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func cppBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (w *SolutionWriter) header(name string, s *contraction.Solution) string {
	var buf bytes.Buffer
	guard := strings.ToUpper(name) + "_H"
	fmt.Fprintf(&buf, "%s\n", w.banner)
	fmt.Fprintf(&buf, "#ifndef %s\n", guard)
	fmt.Fprintf(&buf, "#define %s\n\n", guard)
	fmt.Fprintf(&buf, "#include \"Solution.h\"\n")
	fmt.Fprintf(&buf, "#include \"Tools.h\"\n\n")
	for _, k := range s.Kernels {
		if k != nil {
			fmt.Fprintf(&buf, "#include \"%s.h\"\n", w.namer.KernelName(k))
		}
	}
	fmt.Fprintf(&buf, "\n\nnamespace Tensile {\n\n")
	fmt.Fprintf(&buf, "/* solution class */\n")
	fmt.Fprintf(&buf, "%s\n", templateParams)
	fmt.Fprintf(&buf, "class %s : public %s {\n", name, w.baseClass())
	fmt.Fprintf(&buf, "public:\n")
	fmt.Fprintf(&buf, "  /* constructor */\n")
	fmt.Fprintf(&buf, "  %s( const Problem & inputProblem );\n\n", name)
	fmt.Fprintf(&buf, "  std::string toString( size_t indentLevel) const;\n")
	fmt.Fprintf(&buf, "  std::string toStringDetailXML( size_t indentLevel) const;\n")
	if w.backend == contraction.HIP {
		fmt.Fprintf(&buf, "  TensileStatus enqueue(\n")
		emitEnqueueParams(&buf)
		fmt.Fprintf(&buf, ";\n")
	}
	fmt.Fprintf(&buf, "\n}; // class\n\n")
	fmt.Fprintf(&buf, "} // namespace\n\n")
	fmt.Fprintf(&buf, "#endif\n\n")
	return buf.String()
}

func emitEnqueueParams(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "      TensileTensorData tensorDataC,\n")
	fmt.Fprintf(buf, "      TensileTensorDataConst tensorDataA,\n")
	fmt.Fprintf(buf, "      TensileTensorDataConst tensorDataB,\n")
	fmt.Fprintf(buf, "      TensileScalarData alpha,\n")
	fmt.Fprintf(buf, "      TensileScalarData beta,\n")
	fmt.Fprintf(buf, "      TensileControl & ctrl )")
}

func (w *SolutionWriter) source(name string, s *contraction.Solution) string {
	var buf bytes.Buffer
	qualified := name + "<TypeC,TypeA,TypeB,TypeAlpha,TypeBeta>"
	fmt.Fprintf(&buf, "%s\n", w.banner)
	fmt.Fprintf(&buf, "#include \"%s.h\"\n\n", name)
	fmt.Fprintf(&buf, "namespace Tensile {\n\n")

	fmt.Fprintf(&buf, "/* solution constructor */\n")
	fmt.Fprintf(&buf, "%s\n", templateParams)
	fmt.Fprintf(&buf, "%s::%s( const Problem & inputProblem )\n", qualified, name)
	fmt.Fprintf(&buf, "    : %s( inputProblem ) {\n\n", w.baseClass())
	w.emitIndexAssignments(&buf, s)
	w.emitTile(&buf, s)
	w.emitKernels(&buf, s)
	emitGuards(&buf, s)
	layout := LayoutKernelArgs(s)
	if !s.Optimization.All {
		emitKernelArgs(&buf, layout)
	}
	op := s.Kernels[0].Problem.Operation
	fmt.Fprintf(&buf, "  /* alpha & beta */\n")
	fmt.Fprintf(&buf, "  this->requireAlpha = %s;\n", cppBool(op.UseAlpha()))
	fmt.Fprintf(&buf, "  this->requireBeta = %s;\n\n", cppBool(op.UseBeta()))
	fmt.Fprintf(&buf, "  /* determine globalWorkSize */\n")
	fmt.Fprintf(&buf, "  this->assignKernelArgs();\n\n")
	if w.backend == contraction.OpenCL12 {
		fmt.Fprintf(&buf, "\n")
		fmt.Fprintf(&buf, "  for (unsigned int kernelIdx = 0; kernelIdx < this->maxNumKernels; kernelIdx++) {\n")
		fmt.Fprintf(&buf, "    for (unsigned int i = 0; i < this->workDim; i++) {\n")
		fmt.Fprintf(&buf, "      this->globalWorkSize[kernelIdx][i] *= this->localWorkSize[i];\n")
		fmt.Fprintf(&buf, "    }\n")
		fmt.Fprintf(&buf, "  }\n\n")
	}
	fmt.Fprintf(&buf, "} // constructor\n\n\n")

	fmt.Fprintf(&buf, "/* toString */\n")
	fmt.Fprintf(&buf, "%s\n", templateParams)
	fmt.Fprintf(&buf, "std::string %s::toString( size_t ) const {\n", qualified)
	fmt.Fprintf(&buf, "  return \"%s\";\n", name)
	fmt.Fprintf(&buf, "} // toString\n\n")

	emitDetailXML(&buf, qualified, s)

	if w.backend == contraction.HIP {
		w.emitEnqueue(&buf, qualified, s, layout)
	}

	fmt.Fprintf(&buf, "/* explicit template instantiation */\n")
	if w.backend == contraction.HIP {
		fmt.Fprintf(&buf, "#pragma clang diagnostic push\n")
		fmt.Fprintf(&buf, "#pragma clang diagnostic ignored \"-Wweak-template-vtables\"\n")
	}
	fmt.Fprintf(&buf, "template class %s%s;\n", name, templateArgs(s))
	if w.backend == contraction.HIP {
		fmt.Fprintf(&buf, "#pragma clang diagnostic pop\n")
	}
	fmt.Fprintf(&buf, "\n} // namespace\n\n")
	return buf.String()
}

func (w *SolutionWriter) emitIndexAssignments(buf *bytes.Buffer, s *contraction.Solution) {
	k := s.Kernels[0]
	fmt.Fprintf(buf, "  /* solution properties */\n")
	fmt.Fprintf(buf, "  // size_t indexOrderC[%d] = { %s };\n", len(k.IndexOrderC), joinInts(k.IndexOrderC))
	fmt.Fprintf(buf, "  // size_t indexOrderSummation[%d] = { %s };\n", len(k.IndexOrderSummation), joinInts(k.IndexOrderSummation))
	fmt.Fprintf(buf, "  // size_t indexAssignmentDim[3] = { %d, %d, %d };\n\n", k.IndexAssignmentDim0, k.IndexAssignmentDim1, k.UnrollIndex())

	t := ResolveTensorAssignments(k)
	fmt.Fprintf(buf, "  this->indexAssignmentCd0 = %d;\n", k.IndexAssignmentDim0)
	fmt.Fprintf(buf, "  this->indexAssignmentCd1 = %d;\n", k.IndexAssignmentDim1)
	fmt.Fprintf(buf, "  this->d0InTensorA = %s;\n", cppBool(t.D0InTensorA))
	fmt.Fprintf(buf, "  this->indexAssignmentAd0or1 = %d;\n", t.AD0or1)
	fmt.Fprintf(buf, "  this->indexAssignmentAdU = %d;\n", t.ADU)
	fmt.Fprintf(buf, "  this->indexAssignmentBd0or1 = %d;\n", t.BD0or1)
	fmt.Fprintf(buf, "  this->indexAssignmentBdU = %d;\n\n", t.BDU)
}

func (w *SolutionWriter) emitTile(buf *bytes.Buffer, s *contraction.Solution) {
	k := s.Kernels[0]
	fmt.Fprintf(buf, "  /* tile properties */\n")
	fmt.Fprintf(buf, "  this->workGroup[0] = %d;\n", k.Tile.WorkGroup[0])
	fmt.Fprintf(buf, "  this->workGroup[1] = %d;\n", k.Tile.WorkGroup[1])
	fmt.Fprintf(buf, "  this->workGroup[2] = 1;\n")
	fmt.Fprintf(buf, "  this->microTile[0] = %d;\n", k.Tile.MicroTile[0])
	fmt.Fprintf(buf, "  this->microTile[1] = %d;\n", k.Tile.MicroTile[1])
	fmt.Fprintf(buf, "  this->microTile[2] = 1;\n")
	fmt.Fprintf(buf, "  // size_t numUnrolls[%d] = { %s };\n\n", len(k.Unrolls), joinInts(k.Unrolls))
}

func (w *SolutionWriter) emitKernels(buf *bytes.Buffer, s *contraction.Solution) {
	fmt.Fprintf(buf, "  /* kernels */\n")
	for d, g := range s.KernelGrid {
		fmt.Fprintf(buf, "  this->kernelGrid[%d] = %d;\n", d, g)
	}
	numKernels := 0
	if w.backend == contraction.OpenCL12 {
		for i, k := range s.Kernels {
			if k == nil {
				fmt.Fprintf(buf, "  this->kernelSources[%d] = nullptr;\n", i)
				continue
			}
			fmt.Fprintf(buf, "  this->kernelSources[%d] = %s_src;\n", i, w.namer.KernelName(k))
			numKernels++
		}
	}
	fmt.Fprintf(buf, "  this->numKernels = %d;\n", numKernels)
	fmt.Fprintf(buf, "  this->edge[0] = %s;\n", cppBool(s.Branch[0].IsMultiple()))
	fmt.Fprintf(buf, "  this->edge[1] = %s;\n", cppBool(s.Branch[1].IsMultiple()))
	fmt.Fprintf(buf, "  this->edge[2] = false;\n\n")
}

// emitGuards makes construction fail for problems needing arguments the
// solution compiled out.
func emitGuards(buf *bytes.Buffer, s *contraction.Solution) {
	opt := s.Optimization
	fmt.Fprintf(buf, "  /* kernel arguments */\n")
	if opt.Offsets {
		fmt.Fprintf(buf, "  this->numKernelArgs = 0; // pointers and offsets\n\n")
	} else {
		fmt.Fprintf(buf, "  this->numKernelArgs = 3; // pointers and offsets\n\n")
	}
	fmt.Fprintf(buf, "  /* preprocessor optimizations */\n")
	fmt.Fprintf(buf, "  this->argOffsets = %s;\n", cppBool(!opt.Offsets))
	fmt.Fprintf(buf, "  this->argSizes = %s;\n", cppBool(!opt.All))
	fmt.Fprintf(buf, "  this->argLeadingStrides = %s;\n", cppBool(!opt.LeadingStrides))
	fmt.Fprintf(buf, "  if ( !this->argOffsets && inputProblem.useOffsets) {\n")
	fmt.Fprintf(buf, "    // offsets are compiled out of this solution\n")
	fmt.Fprintf(buf, "    throw tensileStatusInvalidParameter;\n")
	fmt.Fprintf(buf, "  }\n")
	fmt.Fprintf(buf, "  if ( !this->argLeadingStrides && (inputProblem.tensorC[0].stride != 1 || inputProblem.tensorA[0].stride != 1 ||  inputProblem.tensorB[0].stride != 1) ) {\n")
	fmt.Fprintf(buf, "    // leading strides are compiled out of this solution\n")
	fmt.Fprintf(buf, "    throw tensileStatusInvalidParameter;\n")
	fmt.Fprintf(buf, "  }\n\n")
}

func emitKernelArgs(buf *bytes.Buffer, layout ArgLayout) {
	section := ""
	for slot, a := range layout.Args {
		heading := "free index sizes"
		switch {
		case a.Kind == ArgStride:
			heading = string(a.Tensor) + " strides"
		case a.Tensor == 'A':
			heading = "summation index sizes"
		}
		if heading != section {
			if section != "" {
				fmt.Fprintf(buf, "\n")
			}
			fmt.Fprintf(buf, "  /* %s */\n", heading)
			section = heading
		}
		switch slot {
		case layout.Dim0Slot:
			fmt.Fprintf(buf, "  this->kernelArgIdxDim0 = this->numKernelArgs;\n")
		case layout.Dim1Slot:
			fmt.Fprintf(buf, "  this->kernelArgIdxDim1 = this->numKernelArgs;\n")
		case layout.SummationSlot:
			fmt.Fprintf(buf, "  this->kernelArgIdxSummation = this->numKernelArgs;\n")
		}
		fmt.Fprintf(buf, "  this->kernelArgs[this->numKernelArgs] = %s; // %s\n", a.Expr(), a.Label())
		fmt.Fprintf(buf, "  this->numKernelArgs++;\n")
	}
	fmt.Fprintf(buf, "\n")
}

// emitDetailXML emits toStringDetailXML, which renders the solution in the
// trace format so benchmark runs can log exactly what they executed.
func emitDetailXML(buf *bytes.Buffer, qualified string, s *contraction.Solution) {
	fmt.Fprintf(buf, "%s\n", templateParams)
	fmt.Fprintf(buf, "std::string %s::toStringDetailXML( size_t indentLevel) const {\n", qualified)
	fmt.Fprintf(buf, "  std::string indent = Tensile::indent(indentLevel);\n")
	fmt.Fprintf(buf, "  std::string detail = \"\";\n")
	fmt.Fprintf(buf, "  detail += indent + \"<%s\";\n", tracefmt.TagSolution)
	emitAttrs(buf, tracefmt.SolutionAttrs(s))
	fmt.Fprintf(buf, "  detail += \">\\n\";\n")
	for i, k := range s.Kernels {
		if k == nil {
			continue
		}
		fmt.Fprintf(buf, "  detail += indent + \"  <%s\";\n", tracefmt.TagKernel)
		emitAttrs(buf, tracefmt.KernelAttrs(i, k))
		fmt.Fprintf(buf, "  detail += \" />\\n\";\n")
	}
	fmt.Fprintf(buf, "  detail += indent + \"</%s>\\n\";\n", tracefmt.TagSolution)
	fmt.Fprintf(buf, "  return detail;\n")
	fmt.Fprintf(buf, "} // toStringDetailXML\n\n")
}

func emitAttrs(buf *bytes.Buffer, attrs []tracefmt.Attr) {
	for _, a := range attrs {
		fmt.Fprintf(buf, "  detail += \" %s=\\\"%s\\\"\";\n", a.Name, a.Value)
	}
}

// emitEnqueue emits the HIP dispatch: every present kernel is launched
// numEnqueues times, round-robin over the caller's queues.
func (w *SolutionWriter) emitEnqueue(buf *bytes.Buffer, qualified string, s *contraction.Solution, layout ArgLayout) {
	fmt.Fprintf(buf, "%s\n", templateParams)
	fmt.Fprintf(buf, "TensileStatus %s::enqueue(\n", qualified)
	emitEnqueueParams(buf)
	fmt.Fprintf(buf, " {\n\n")
	fmt.Fprintf(buf, "  unsigned int kernelIdx = 0;\n")
	fmt.Fprintf(buf, "  unsigned int enqueueIdx = 0;\n\n")
	for _, k := range s.Kernels {
		if k == nil {
			continue
		}
		fmt.Fprintf(buf, "  for (unsigned int i = 0; i < this->numEnqueues[kernelIdx]; i++) {\n\n")
		fmt.Fprintf(buf, "    hipLaunchKernel(\n")
		fmt.Fprintf(buf, "        HIP_KERNEL_NAME(%s),\n", w.namer.KernelName(k))
		fmt.Fprintf(buf, "        dim3(\n")
		fmt.Fprintf(buf, "            this->globalWorkSize[kernelIdx][0],\n")
		fmt.Fprintf(buf, "            this->globalWorkSize[kernelIdx][1],\n")
		fmt.Fprintf(buf, "            this->globalWorkSize[kernelIdx][2]),\n")
		fmt.Fprintf(buf, "        dim3(\n")
		fmt.Fprintf(buf, "            this->localWorkSize[0],\n")
		fmt.Fprintf(buf, "            this->localWorkSize[1],\n")
		fmt.Fprintf(buf, "            this->localWorkSize[2]),\n")
		fmt.Fprintf(buf, "        0, // groupMemBytes\n")
		fmt.Fprintf(buf, "        ctrl.queues[enqueueIdx%%ctrl.numQueues],\n")
		fmt.Fprintf(buf, "        static_cast<TypeC*>(tensorDataC.data),\n")
		fmt.Fprintf(buf, "        static_cast<const TypeA*>(tensorDataA.data),\n")
		fmt.Fprintf(buf, "        static_cast<const TypeB*>(tensorDataB.data),\n")
		fmt.Fprintf(buf, "        *static_cast<const TypeAlpha*>(alpha.data),\n")
		fmt.Fprintf(buf, "        *static_cast<const TypeBeta*>(beta.data),\n")
		fmt.Fprintf(buf, "        this->enqueueArgs[kernelIdx][i][0]+tensorDataC.offset,\n")
		fmt.Fprintf(buf, "        this->enqueueArgs[kernelIdx][i][1]+tensorDataA.offset,\n")
		fmt.Fprintf(buf, "        this->enqueueArgs[kernelIdx][i][2]+tensorDataB.offset")
		for i := range layout.Args {
			fmt.Fprintf(buf, ",\n        this->enqueueArgs[kernelIdx][i][%d]", i+3)
		}
		fmt.Fprintf(buf, ");\n")
		fmt.Fprintf(buf, "    hipStreamSynchronize( ctrl.queues[enqueueIdx%%ctrl.numQueues] );\n")
		fmt.Fprintf(buf, "    enqueueIdx++;\n")
		fmt.Fprintf(buf, "  }\n")
		fmt.Fprintf(buf, "  kernelIdx++;\n")
	}
	fmt.Fprintf(buf, "\n")
	fmt.Fprintf(buf, "  if (enqueueIdx > ctrl.numQueues) {\n")
	fmt.Fprintf(buf, "    ctrl.numQueuesUsed = ctrl.numQueues;\n")
	fmt.Fprintf(buf, "  } else {\n")
	fmt.Fprintf(buf, "    ctrl.numQueuesUsed = enqueueIdx;\n")
	fmt.Fprintf(buf, "  }\n")
	fmt.Fprintf(buf, "  return tensileStatusSuccess;\n")
	fmt.Fprintf(buf, "}\n\n")
}
