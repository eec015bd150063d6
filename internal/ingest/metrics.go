package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/samcharles93/tensile/pkg/contraction"
	"github.com/samcharles93/tensile/pkg/tracefmt"
)

// Record kinds reported by tensile_trace_records_total.
const (
	KindTiming     = "timing"
	KindValidation = "validation"
	KindProblem    = "problem"
)

var (
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tensile_trace_records_total",
		Help: "Trace records delivered to a database or problem tree",
	}, []string{"kind"})

	filesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tensile_trace_files_failed_total",
		Help: "Trace files skipped because they could not be decoded",
	})
)

// counter forwards records to next and counts the ones it accepted.
type counter struct {
	next tracefmt.Handler
	n    int
}

func (c *counter) Timing(p contraction.Problem, s *contraction.Solution, elapsed float64) error {
	if err := c.next.Timing(p, s, elapsed); err != nil {
		return err
	}
	c.accept(KindTiming)
	return nil
}

func (c *counter) Validation(p contraction.Problem, s *contraction.Solution, passed bool) error {
	if err := c.next.Validation(p, s, passed); err != nil {
		return err
	}
	c.accept(KindValidation)
	return nil
}

func (c *counter) ProblemDone(p contraction.Problem) error {
	if err := c.next.ProblemDone(p); err != nil {
		return err
	}
	c.accept(KindProblem)
	return nil
}

func (c *counter) accept(kind string) {
	c.n++
	recordsTotal.WithLabelValues(kind).Inc()
}
