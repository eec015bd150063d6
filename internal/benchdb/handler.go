package benchdb

import (
	"errors"

	"github.com/samcharles93/tensile/pkg/contraction"
	"github.com/samcharles93/tensile/pkg/tracefmt"
)

// Recorder feeds decoded records into a database under each solution's own
// optimization level. Validation conflicts do not stop a decode: the stored
// status is kept, as in Merge, and the conflicts are returned by Conflicts.
type Recorder struct {
	db        *Database
	conflicts []error
}

var _ tracefmt.Handler = (*Recorder)(nil)

// TraceHandler returns a Recorder writing into db.
func (db *Database) TraceHandler() *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Timing(p contraction.Problem, s *contraction.Solution, elapsed float64) error {
	return r.db.RecordTiming(p, s, s.Optimization, elapsed)
}

func (r *Recorder) Validation(p contraction.Problem, s *contraction.Solution, passed bool) error {
	err := r.db.RecordValidation(p, s, s.Optimization, passed)
	if errors.Is(err, ErrValidationConflict) {
		r.conflicts = append(r.conflicts, err)
		return nil
	}
	return err
}

func (r *Recorder) ProblemDone(contraction.Problem) error { return nil }

// Conflicts joins every validation conflict seen so far, or returns nil.
func (r *Recorder) Conflicts() error {
	return errors.Join(r.conflicts...)
}

// TraceHandler records every decoded problem into t.
func (t *ProblemTree) TraceHandler() tracefmt.Handler {
	return tracefmt.HandlerFuncs{
		OnProblemDone: func(p contraction.Problem) error {
			t.RecordProblem(p)
			return nil
		},
	}
}
