// Package benchdb folds benchmark records into a hierarchical index:
// device profile, exact match, shape bucket, problem, solution.
//
// Nodes are created on first reference and never removed. Stored problems
// and solutions are private copies. Neither Database nor ProblemTree is
// safe for concurrent mutation; parallel ingestion builds one instance per
// worker and merges them afterwards.
package benchdb

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/tensile/pkg/contraction"
)

// Database is the four-level benchmark index.
type Database struct {
	resolver contraction.IndexResolver
	profiles map[string]*profileNode
}

type profileNode struct {
	profile contraction.DeviceProfile
	matches map[string]*matchNode
}

type matchNode struct {
	match   contraction.ExactMatch
	buckets [contraction.NumShapeBuckets]map[string]*problemNode
}

type problemNode struct {
	problem   contraction.Problem
	solutions map[string]*solutionNode
}

type solutionNode struct {
	solution *contraction.Solution
	bench    contraction.SolutionBenchmark
}

// New returns an empty database classifying problems with r.
func New(r contraction.IndexResolver) *Database {
	return &Database{resolver: r, profiles: make(map[string]*profileNode)}
}

// Path addresses one cell by the canonical keys of its ancestors.
type Path struct {
	Profile  string
	Match    string
	Bucket   int
	Problem  string
	Solution string
}

// PathOf resolves the cell address of (p, s) compiled under opt.
func (db *Database) PathOf(p contraction.Problem, s *contraction.Solution, opt contraction.Optimization) (Path, error) {
	bucket, err := p.ShapeBucketWith(db.resolver)
	if err != nil {
		return Path{}, fmt.Errorf("benchdb: shape bucket: %w", err)
	}
	return Path{
		Profile:  p.DeviceProfile.Key(),
		Match:    contraction.ComputeExactMatch(p, opt).Key(),
		Bucket:   bucket,
		Problem:  p.Key(),
		Solution: s.Key(),
	}, nil
}

// cell walks to the (p, s) cell, creating missing nodes from clones.
func (db *Database) cell(p contraction.Problem, s *contraction.Solution, opt contraction.Optimization) (*solutionNode, error) {
	path, err := db.PathOf(p, s, opt)
	if err != nil {
		return nil, err
	}
	return db.insert(path, p, s, func() contraction.ExactMatch { return contraction.ComputeExactMatch(p, opt) }), nil
}

func (db *Database) insert(path Path, p contraction.Problem, s *contraction.Solution, match func() contraction.ExactMatch) *solutionNode {
	pn, ok := db.profiles[path.Profile]
	if !ok {
		pn = &profileNode{profile: p.DeviceProfile.Clone(), matches: make(map[string]*matchNode)}
		db.profiles[path.Profile] = pn
	}
	mn, ok := pn.matches[path.Match]
	if !ok {
		mn = &matchNode{match: match()}
		pn.matches[path.Match] = mn
	}
	if mn.buckets[path.Bucket] == nil {
		mn.buckets[path.Bucket] = make(map[string]*problemNode)
	}
	qn, ok := mn.buckets[path.Bucket][path.Problem]
	if !ok {
		qn = &problemNode{problem: p.Clone(), solutions: make(map[string]*solutionNode)}
		mn.buckets[path.Bucket][path.Problem] = qn
	}
	sn, ok := qn.solutions[path.Solution]
	if !ok {
		sn = &solutionNode{solution: s.Clone()}
		qn.solutions[path.Solution] = sn
	}
	return sn
}

// RecordTiming appends elapsed to the (p, s) cell. Identical calls append
// again.
func (db *Database) RecordTiming(p contraction.Problem, s *contraction.Solution, opt contraction.Optimization, elapsed float64) error {
	sn, err := db.cell(p, s, opt)
	if err != nil {
		return err
	}
	sn.bench.Times = append(sn.bench.Times, elapsed)
	return nil
}

// RecordValidation sets the cell's validation status, or checks it against
// the stored one. A contradiction is reported and the stored status kept.
func (db *Database) RecordValidation(p contraction.Problem, s *contraction.Solution, opt contraction.Optimization, passed bool) error {
	sn, err := db.cell(p, s, opt)
	if err != nil {
		return err
	}
	status := contraction.ValidationInvalid
	if passed {
		status = contraction.ValidationValid
	}
	return sn.validate(status, func() string {
		return fmt.Sprintf("%s: %s", contraction.ComputeExactMatch(p, opt).LibString(), p)
	})
}

func (sn *solutionNode) validate(status int, where func() string) error {
	switch sn.bench.ValidationStatus {
	case contraction.ValidationUnset:
		sn.bench.ValidationStatus = status
		return nil
	case status:
		return nil
	}
	return fmt.Errorf("benchdb: %s: solution %s: stored %d, reported %d: %w",
		where(), sn.solution, sn.bench.ValidationStatus, status, ErrValidationConflict)
}

// Lookup returns a copy of the (p, s) cell.
func (db *Database) Lookup(p contraction.Problem, s *contraction.Solution, opt contraction.Optimization) (contraction.SolutionBenchmark, bool) {
	path, err := db.PathOf(p, s, opt)
	if err != nil {
		return contraction.SolutionBenchmark{}, false
	}
	sn := db.find(path)
	if sn == nil {
		return contraction.SolutionBenchmark{}, false
	}
	return sn.bench.Clone(), true
}

func (db *Database) find(path Path) *solutionNode {
	pn := db.profiles[path.Profile]
	if pn == nil {
		return nil
	}
	mn := pn.matches[path.Match]
	if mn == nil || path.Bucket < 0 || path.Bucket >= contraction.NumShapeBuckets {
		return nil
	}
	qn := mn.buckets[path.Bucket][path.Problem]
	if qn == nil {
		return nil
	}
	return qn.solutions[path.Solution]
}

// Cell is one (problem, solution) benchmark with its ancestry.
type Cell struct {
	Path      Path
	Profile   contraction.DeviceProfile
	Match     contraction.ExactMatch
	Problem   contraction.Problem
	Solution  *contraction.Solution
	Benchmark contraction.SolutionBenchmark
}

// Walk visits every cell in key order. Values passed to fn are shared with
// the database and must not be modified.
func (db *Database) Walk(fn func(c Cell) error) error {
	for _, pk := range sortedKeys(db.profiles) {
		pn := db.profiles[pk]
		for _, mk := range sortedKeys(pn.matches) {
			mn := pn.matches[mk]
			for bucket, problems := range mn.buckets {
				for _, qk := range sortedKeys(problems) {
					qn := problems[qk]
					for _, sk := range sortedKeys(qn.solutions) {
						sn := qn.solutions[sk]
						err := fn(Cell{
							Path:      Path{Profile: pk, Match: mk, Bucket: bucket, Problem: qk, Solution: sk},
							Profile:   pn.profile,
							Match:     mn.match,
							Problem:   qn.problem,
							Solution:  sn.solution,
							Benchmark: sn.bench,
						})
						if err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

// Merge replays every cell of other into db: timings are appended and
// validation statuses merged under the conflict rule. Conflicts are
// collected and returned together; the rest of other is still merged.
func (db *Database) Merge(other *Database) error {
	var errs []error
	_ = other.Walk(func(c Cell) error {
		sn := db.insert(c.Path, c.Problem, c.Solution, func() contraction.ExactMatch { return cloneMatch(c.Match) })
		sn.bench.Times = append(sn.bench.Times, c.Benchmark.Times...)
		if c.Benchmark.ValidationStatus != contraction.ValidationUnset {
			err := sn.validate(c.Benchmark.ValidationStatus, func() string {
				return fmt.Sprintf("%s: %s", c.Match.LibString(), c.Problem)
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
		return nil
	})
	return errors.Join(errs...)
}

func cloneMatch(m contraction.ExactMatch) contraction.ExactMatch {
	m.DeviceProfile = m.DeviceProfile.Clone()
	m.IndexAssignmentsA = slices.Clone(m.IndexAssignmentsA)
	m.IndexAssignmentsB = slices.Clone(m.IndexAssignmentsB)
	return m
}

// Equal reports whether both databases hold the same cells with the same
// validation status and the same timings in any order.
func (db *Database) Equal(other *Database) bool {
	cells := make(map[Path]contraction.SolutionBenchmark)
	_ = db.Walk(func(c Cell) error {
		cells[c.Path] = c.Benchmark
		return nil
	})
	n := 0
	equal := true
	_ = other.Walk(func(c Cell) error {
		n++
		b, ok := cells[c.Path]
		if !ok || b.ValidationStatus != c.Benchmark.ValidationStatus || !sameMultiset(b.Times, c.Benchmark.Times) {
			equal = false
			return errStop
		}
		return nil
	})
	return equal && n == len(cells)
}

var errStop = errors.New("stop")

func sameMultiset(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Stats summarises database contents.
type Stats struct {
	Profiles     int `json:"profiles"`
	ExactMatches int `json:"exact_matches"`
	Problems     int `json:"problems"`
	Solutions    int `json:"solutions"`
	Timings      int `json:"timings"`
	Valid        int `json:"valid"`
	Invalid      int `json:"invalid"`
}

func (db *Database) Stats() Stats {
	var st Stats
	st.Profiles = len(db.profiles)
	for _, pn := range db.profiles {
		st.ExactMatches += len(pn.matches)
		for _, mn := range pn.matches {
			for _, problems := range mn.buckets {
				st.Problems += len(problems)
			}
		}
	}
	_ = db.Walk(func(c Cell) error {
		st.Solutions++
		st.Timings += len(c.Benchmark.Times)
		switch c.Benchmark.ValidationStatus {
		case contraction.ValidationValid:
			st.Valid++
		case contraction.ValidationInvalid:
			st.Invalid++
		}
		return nil
	})
	return st
}

func byID[T any](id func(T) string) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(id(a), id(b)) }
}
