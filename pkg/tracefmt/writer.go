package tracefmt

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"

	"github.com/samcharles93/tensile/pkg/contraction"
)

// Writer emits a trace document Decode can read back. Entries are written
// as TE elements under a single root, which is opened on the first write
// and closed by Close.
type Writer struct {
	enc     *xml.Encoder
	started bool
	inEntry bool
	closed  bool
}

func NewWriter(w io.Writer) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &Writer{enc: enc}
}

func (w *Writer) open(tag string, attrs []Attr) error {
	el := xml.StartElement{Name: xml.Name{Local: tag}}
	for _, a := range attrs {
		el.Attr = append(el.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	return w.enc.EncodeToken(el)
}

func (w *Writer) close(tag string) error {
	return w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: tag}})
}

func (w *Writer) leaf(tag string, attrs []Attr) error {
	if err := w.open(tag, attrs); err != nil {
		return err
	}
	return w.close(tag)
}

func (w *Writer) ensureRoot() error {
	if w.closed {
		return errors.New("tracefmt: writer closed")
	}
	if w.started {
		return nil
	}
	w.started = true
	return w.open(TagRoot, nil)
}

// BeginEntry opens a trace entry. Entries group one problem with the
// solution benchmarked on it and its outcomes.
func (w *Writer) BeginEntry() error {
	if err := w.ensureRoot(); err != nil {
		return err
	}
	if w.inEntry {
		return errors.New("tracefmt: entry already open")
	}
	w.inEntry = true
	return w.open(TagEntry, nil)
}

func (w *Writer) EndEntry() error {
	if !w.inEntry {
		return errors.New("tracefmt: no open entry")
	}
	w.inEntry = false
	return w.close(TagEntry)
}

// WriteProblem emits a P element with its tensors, operation and devices.
func (w *Writer) WriteProblem(p contraction.Problem) error {
	if err := w.ensureRoot(); err != nil {
		return err
	}
	steps := []func() error{
		func() error { return w.open(TagProblem, nil) },
		func() error { return w.leaf(TagTensorC, tensorAttrs(p.TensorC)) },
		func() error { return w.leaf(TagTensorA, tensorAttrs(p.TensorA)) },
		func() error { return w.leaf(TagTensorB, tensorAttrs(p.TensorB)) },
		func() error { return w.open(TagOperation, operationAttrs(p.Operation)) },
		func() error { return w.leaf(TagIndicesA, indexAttrs(p.Operation.IndexAssignmentsA)) },
		func() error { return w.leaf(TagIndicesB, indexAttrs(p.Operation.IndexAssignmentsB)) },
		func() error { return w.close(TagOperation) },
		func() error { return w.leaf(TagDevices, deviceAttrs(p.DeviceProfile)) },
		func() error { return w.close(TagProblem) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// WriteSolution emits an ID element with one K child per present kernel.
func (w *Writer) WriteSolution(s *contraction.Solution) error {
	if err := w.ensureRoot(); err != nil {
		return err
	}
	if err := w.open(TagSolution, SolutionAttrs(s)); err != nil {
		return err
	}
	for i, k := range s.Kernels {
		if k == nil {
			continue
		}
		if err := w.leaf(TagKernel, KernelAttrs(i, k)); err != nil {
			return err
		}
	}
	return w.close(TagSolution)
}

func (w *Writer) WriteTiming(elapsed float64) error {
	if err := w.ensureRoot(); err != nil {
		return err
	}
	return w.leaf(TagTiming, []Attr{{"t", strconv.FormatFloat(elapsed, 'g', -1, 64)}})
}

func (w *Writer) WriteValidation(passed bool) error {
	if err := w.ensureRoot(); err != nil {
		return err
	}
	status := ValidationFail
	if passed {
		status = ValidationPass
	}
	return w.leaf(TagValidation, []Attr{{"s", status}})
}

// Close ends any open entry and the root element and flushes output.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if w.inEntry {
		if err := w.EndEntry(); err != nil {
			return err
		}
	}
	if w.started {
		if err := w.close(TagRoot); err != nil {
			return err
		}
	}
	w.closed = true
	return w.enc.Close()
}
