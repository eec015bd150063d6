package benchdb

import (
	"fmt"
	"slices"

	"github.com/samcharles93/tensile/pkg/contraction"
)

// ProblemTree indexes problems still to be benchmarked: device profile,
// exact match, set of problems.
type ProblemTree struct {
	profiles map[string]*treeProfile
}

type treeProfile struct {
	profile contraction.DeviceProfile
	matches map[string]*treeMatch
}

type treeMatch struct {
	match    contraction.ExactMatch
	problems map[string]contraction.Problem
}

func NewProblemTree() *ProblemTree {
	return &ProblemTree{profiles: make(map[string]*treeProfile)}
}

// RecordProblem adds p under its exact match. Problems are grouped with no
// optimization requested, since none has been compiled for them yet.
func (t *ProblemTree) RecordProblem(p contraction.Problem) {
	t.add(contraction.ComputeExactMatch(p, contraction.Optimization{}), p)
}

func (t *ProblemTree) add(m contraction.ExactMatch, p contraction.Problem) {
	pk := p.DeviceProfile.Key()
	tp, ok := t.profiles[pk]
	if !ok {
		tp = &treeProfile{profile: p.DeviceProfile.Clone(), matches: make(map[string]*treeMatch)}
		t.profiles[pk] = tp
	}
	mk := m.Key()
	tm, ok := tp.matches[mk]
	if !ok {
		tm = &treeMatch{match: cloneMatch(m), problems: make(map[string]contraction.Problem)}
		tp.matches[mk] = tm
	}
	qk := p.Key()
	if _, ok := tm.problems[qk]; !ok {
		tm.problems[qk] = p.Clone()
	}
}

// Len counts distinct problems.
func (t *ProblemTree) Len() int {
	n := 0
	for _, tp := range t.profiles {
		for _, tm := range tp.matches {
			n += len(tm.problems)
		}
	}
	return n
}

// TreeGroup is one exact match with its problems in key order.
type TreeGroup struct {
	ID       string
	Profile  contraction.DeviceProfile
	Match    contraction.ExactMatch
	Problems []contraction.Problem
}

// Groups lists every exact match, ordered by profile then match key.
// Problems are shared with the tree and must not be modified.
func (t *ProblemTree) Groups() []TreeGroup {
	var out []TreeGroup
	for _, pk := range sortedKeys(t.profiles) {
		tp := t.profiles[pk]
		for _, mk := range sortedKeys(tp.matches) {
			tm := tp.matches[mk]
			g := TreeGroup{ID: NodeID(mk), Profile: tp.profile, Match: tm.match}
			for _, qk := range sortedKeys(tm.problems) {
				g.Problems = append(g.Problems, tm.problems[qk])
			}
			out = append(out, g)
		}
	}
	return out
}

// Problems returns copies of one exact match's problems.
func (t *ProblemTree) Problems(matchID string) ([]contraction.Problem, error) {
	for _, g := range t.Groups() {
		if g.ID != matchID {
			continue
		}
		out := make([]contraction.Problem, len(g.Problems))
		for i, p := range g.Problems {
			out[i] = p.Clone()
		}
		return out, nil
	}
	return nil, fmt.Errorf("benchdb: exact match %s: %w", matchID, ErrNotFound)
}

// Merge adds every problem of other.
func (t *ProblemTree) Merge(other *ProblemTree) {
	for _, g := range other.Groups() {
		for _, p := range g.Problems {
			t.add(g.Match, p)
		}
	}
}

func (t *ProblemTree) Equal(other *ProblemTree) bool {
	return slices.Equal(t.keys(), other.keys())
}

func (t *ProblemTree) keys() []string {
	var keys []string
	for _, g := range t.Groups() {
		for _, p := range g.Problems {
			keys = append(keys, g.Match.Key()+"|"+p.Key())
		}
	}
	return keys
}
