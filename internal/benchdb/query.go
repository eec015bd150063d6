package benchdb

import (
	"fmt"
	"slices"

	"github.com/samcharles93/tensile/pkg/contraction"
)

type ProfileEntry struct {
	ID         string
	Profile    contraction.DeviceProfile
	NumMatches int
}

type MatchEntry struct {
	ID          string
	ProfileID   string
	Match       contraction.ExactMatch
	NumProblems [contraction.NumShapeBuckets]int
}

type ProblemEntry struct {
	ID           string
	Problem      contraction.Problem
	Bucket       int
	NumSolutions int
}

type SolutionEntry struct {
	ID        string
	Solution  *contraction.Solution
	Benchmark contraction.SolutionBenchmark
}

// Profiles lists device profiles ordered by name.
func (db *Database) Profiles() []ProfileEntry {
	out := make([]ProfileEntry, 0, len(db.profiles))
	for key, pn := range db.profiles {
		out = append(out, ProfileEntry{ID: NodeID(key), Profile: pn.profile.Clone(), NumMatches: len(pn.matches)})
	}
	slices.SortFunc(out, byID(func(e ProfileEntry) string { return e.Profile.LibString() + "\x00" + e.ID }))
	return out
}

// ExactMatches lists the exact matches benchmarked on one profile.
func (db *Database) ExactMatches(profileID string) ([]MatchEntry, error) {
	for key, pn := range db.profiles {
		if NodeID(key) != profileID {
			continue
		}
		out := make([]MatchEntry, 0, len(pn.matches))
		for mk, mn := range pn.matches {
			e := MatchEntry{ID: NodeID(mk), ProfileID: profileID, Match: cloneMatch(mn.match)}
			for b, problems := range mn.buckets {
				e.NumProblems[b] = len(problems)
			}
			out = append(out, e)
		}
		slices.SortFunc(out, byID(func(e MatchEntry) string { return e.Match.LibString() + "\x00" + e.ID }))
		return out, nil
	}
	return nil, fmt.Errorf("benchdb: profile %s: %w", profileID, ErrNotFound)
}

func (db *Database) findMatch(matchID string) *matchNode {
	for _, pn := range db.profiles {
		for mk, mn := range pn.matches {
			if NodeID(mk) == matchID {
				return mn
			}
		}
	}
	return nil
}

// Problems lists the problems of one exact match in bucket, or in every
// bucket when bucket is negative.
func (db *Database) Problems(matchID string, bucket int) ([]ProblemEntry, error) {
	if bucket >= contraction.NumShapeBuckets {
		return nil, fmt.Errorf("benchdb: bucket %d: %w", bucket, ErrInvalidBucket)
	}
	mn := db.findMatch(matchID)
	if mn == nil {
		return nil, fmt.Errorf("benchdb: exact match %s: %w", matchID, ErrNotFound)
	}
	var out []ProblemEntry
	for b, problems := range mn.buckets {
		if bucket >= 0 && b != bucket {
			continue
		}
		for _, qk := range sortedKeys(problems) {
			qn := problems[qk]
			out = append(out, ProblemEntry{ID: NodeID(qk), Problem: qn.problem.Clone(), Bucket: b, NumSolutions: len(qn.solutions)})
		}
	}
	return out, nil
}

// Solutions lists the benchmarks recorded for one problem of an exact
// match, fastest mean first.
func (db *Database) Solutions(matchID, problemID string) ([]SolutionEntry, error) {
	mn := db.findMatch(matchID)
	if mn == nil {
		return nil, fmt.Errorf("benchdb: exact match %s: %w", matchID, ErrNotFound)
	}
	for _, problems := range mn.buckets {
		for qk, qn := range problems {
			if NodeID(qk) != problemID {
				continue
			}
			out := make([]SolutionEntry, 0, len(qn.solutions))
			for sk, sn := range qn.solutions {
				out = append(out, SolutionEntry{ID: NodeID(sk), Solution: sn.solution.Clone(), Benchmark: sn.bench.Clone()})
			}
			slices.SortFunc(out, func(a, b SolutionEntry) int {
				if c := compareMeans(a.Benchmark, b.Benchmark); c != 0 {
					return c
				}
				return byID(func(e SolutionEntry) string { return e.ID })(a, b)
			})
			return out, nil
		}
	}
	return nil, fmt.Errorf("benchdb: problem %s: %w", problemID, ErrNotFound)
}

// compareMeans orders benchmarks without timings last.
func compareMeans(a, b contraction.SolutionBenchmark) int {
	switch {
	case len(a.Times) == 0 && len(b.Times) == 0:
		return 0
	case len(a.Times) == 0:
		return 1
	case len(b.Times) == 0:
		return -1
	case a.Mean() < b.Mean():
		return -1
	case a.Mean() > b.Mean():
		return 1
	}
	return 0
}

// Solution returns one stored solution by id.
func (db *Database) Solution(matchID, problemID, solutionID string) (contraction.Problem, *contraction.Solution, error) {
	mn := db.findMatch(matchID)
	if mn == nil {
		return contraction.Problem{}, nil, fmt.Errorf("benchdb: exact match %s: %w", matchID, ErrNotFound)
	}
	for _, problems := range mn.buckets {
		for qk, qn := range problems {
			if NodeID(qk) != problemID {
				continue
			}
			for sk, sn := range qn.solutions {
				if NodeID(sk) == solutionID {
					return qn.problem.Clone(), sn.solution.Clone(), nil
				}
			}
		}
	}
	return contraction.Problem{}, nil, fmt.Errorf("benchdb: solution %s/%s: %w", problemID, solutionID, ErrNotFound)
}
