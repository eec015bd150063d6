package benchdb

import (
	"bytes"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/tensile/internal/indexing"
	"github.com/samcharles93/tensile/pkg/contraction"
)

func matmul(n, k int) contraction.Problem {
	return contraction.Problem{
		TensorC: contraction.NewTensor(contraction.Single, contraction.Dimension{Stride: 1, Size: n}, contraction.Dimension{Stride: n, Size: n}),
		TensorA: contraction.NewTensor(contraction.Single, contraction.Dimension{Stride: 1, Size: n}, contraction.Dimension{Stride: n, Size: k}),
		TensorB: contraction.NewTensor(contraction.Single, contraction.Dimension{Stride: 1, Size: k}, contraction.Dimension{Stride: k, Size: n}),
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

func solution(wg int) *contraction.Solution {
	k := contraction.NewKernel()
	k.Tile = contraction.Tile{WorkGroup: [2]int{wg, wg}, MicroTile: [2]int{4, 4}}
	k.Unrolls = []int{8}
	s := &contraction.Solution{KernelGrid: [3]int{1, 1, 1}}
	s.Kernels[0] = k
	return s
}

type record struct {
	p       contraction.Problem
	s       *contraction.Solution
	opt     contraction.Optimization
	timing  float64
	isValid bool
	passed  bool
}

func apply(t *testing.T, db *Database, recs ...record) {
	t.Helper()
	for _, r := range recs {
		if r.isValid {
			require.NoError(t, db.RecordValidation(r.p, r.s, r.opt, r.passed))
			continue
		}
		require.NoError(t, db.RecordTiming(r.p, r.s, r.opt, r.timing))
	}
}

func TestRecordTimingQuery(t *testing.T) {
	t.Parallel()

	db := New(indexing.Default)
	p, s := matmul(512, 512), solution(16)
	require.NoError(t, db.RecordTiming(p, s, contraction.Optimization{}, 1.23))

	got, ok := db.Lookup(p, s, contraction.Optimization{})
	require.True(t, ok)
	assert.Equal(t, []float64{1.23}, got.Times)
	assert.Equal(t, contraction.ValidationUnset, got.ValidationStatus)

	_, ok = db.Lookup(p, s, contraction.Optimization{Offsets: true})
	assert.False(t, ok, "optimization level is part of the cell address")
}

func TestRecordTimingAppends(t *testing.T) {
	t.Parallel()

	db := New(indexing.Default)
	p, s := matmul(512, 512), solution(16)
	require.NoError(t, db.RecordTiming(p, s, contraction.Optimization{}, 2.5))
	require.NoError(t, db.RecordTiming(p, s, contraction.Optimization{}, 2.5))

	got, ok := db.Lookup(p, s, contraction.Optimization{})
	require.True(t, ok)
	assert.Equal(t, []float64{2.5, 2.5}, got.Times)
	assert.Equal(t, 1, db.Stats().Solutions)
}

func TestRecordValidationConflict(t *testing.T) {
	t.Parallel()

	db := New(indexing.Default)
	p, s := matmul(512, 512), solution(16)
	require.NoError(t, db.RecordValidation(p, s, contraction.Optimization{}, true))
	require.NoError(t, db.RecordValidation(p, s, contraction.Optimization{}, true))

	err := db.RecordValidation(p, s, contraction.Optimization{}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationConflict))

	got, _ := db.Lookup(p, s, contraction.Optimization{})
	assert.Equal(t, contraction.ValidationValid, got.ValidationStatus, "stored status must survive a conflict")
}

func TestStoredValuesAreCopies(t *testing.T) {
	t.Parallel()

	db := New(indexing.Default)
	p, s := matmul(512, 512), solution(16)
	require.NoError(t, db.RecordTiming(p, s, contraction.Optimization{}, 1))

	p.TensorC.Dimensions[0].Size = 7
	s.Kernels[0].Unrolls[0] = 99

	_, ok := db.Lookup(matmul(512, 512), solution(16), contraction.Optimization{})
	assert.True(t, ok, "mutating caller buffers must not move stored entries")
}

func TestShapeBuckets(t *testing.T) {
	t.Parallel()

	db := New(indexing.Default)
	s := solution(16)
	apply(t, db,
		record{p: matmul(512, 512), s: s, timing: 1},
		record{p: matmul(512, 2048), s: s, timing: 2},
		record{p: matmul(100, 100), s: s, timing: 3},
	)

	profiles := db.Profiles()
	require.Len(t, profiles, 1)
	matches, err := db.ExactMatches(profiles[0].ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Fiji_CT_SSSSS_Cij_Aik_Bkj_O0", matches[0].Match.LibString())
	assert.Equal(t, [contraction.NumShapeBuckets]int{1, 2}, matches[0].NumProblems)

	square, err := db.Problems(matches[0].ID, contraction.ShapeSquare)
	require.NoError(t, err)
	require.Len(t, square, 1)
	assert.True(t, square[0].Problem.Equal(matmul(512, 512)))

	all, err := db.Problems(matches[0].ID, -1)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = db.Problems(matches[0].ID, contraction.NumShapeBuckets)
	assert.ErrorIs(t, err, ErrInvalidBucket)
	_, err = db.Problems("nope", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSolutionsOrderedByMean(t *testing.T) {
	t.Parallel()

	db := New(indexing.Default)
	p := matmul(512, 512)
	slow, fast, untimed := solution(8), solution(16), solution(32)
	apply(t, db,
		record{p: p, s: slow, timing: 5},
		record{p: p, s: fast, timing: 1},
		record{p: p, s: untimed, isValid: true, passed: true},
	)

	matches, err := db.ExactMatches(db.Profiles()[0].ID)
	require.NoError(t, err)
	problems, err := db.Problems(matches[0].ID, -1)
	require.NoError(t, err)
	sols, err := db.Solutions(matches[0].ID, problems[0].ID)
	require.NoError(t, err)
	require.Len(t, sols, 3)
	assert.True(t, sols[0].Solution.Equal(fast))
	assert.True(t, sols[1].Solution.Equal(slow))
	assert.True(t, sols[2].Solution.Equal(untimed))

	gotP, gotS, err := db.Solution(matches[0].ID, problems[0].ID, sols[0].ID)
	require.NoError(t, err)
	assert.True(t, gotP.Equal(p))
	assert.True(t, gotS.Equal(fast))
}

func TestMergeCommutes(t *testing.T) {
	t.Parallel()

	p1, p2 := matmul(512, 512), matmul(256, 1024)
	s1, s2 := solution(16), solution(8)
	r1 := record{p: p1, s: s1, timing: 1.5}
	r2 := record{p: p1, s: s1, isValid: true, passed: true}
	r3 := record{p: p2, s: s2, opt: contraction.Optimization{Offsets: true}, timing: 0.75}
	r4 := record{p: p1, s: s1, timing: 1.25}

	direct := New(indexing.Default)
	apply(t, direct, r1, r2, r3, r4)

	first := New(indexing.Default)
	apply(t, first, r1, r2)
	second := New(indexing.Default)
	apply(t, second, r3, r4)

	ab := New(indexing.Default)
	require.NoError(t, ab.Merge(first))
	require.NoError(t, ab.Merge(second))

	ba := New(indexing.Default)
	require.NoError(t, ba.Merge(second))
	require.NoError(t, ba.Merge(first))

	into := New(indexing.Default)
	apply(t, into, r3, r4)
	require.NoError(t, into.Merge(first))

	assert.True(t, direct.Equal(ab))
	assert.True(t, direct.Equal(ba))
	assert.True(t, direct.Equal(into))
	assert.True(t, ab.Equal(direct))

	extra := New(indexing.Default)
	apply(t, extra, r1, r2, r3, r4, r4)
	assert.False(t, direct.Equal(extra))
	assert.False(t, extra.Equal(direct))
}

func TestMergeReportsConflicts(t *testing.T) {
	t.Parallel()

	p, s := matmul(512, 512), solution(16)
	a := New(indexing.Default)
	apply(t, a, record{p: p, s: s, isValid: true, passed: true})
	b := New(indexing.Default)
	apply(t, b,
		record{p: p, s: s, isValid: true, passed: false},
		record{p: p, s: s, timing: 3},
	)

	err := a.Merge(b)
	require.ErrorIs(t, err, ErrValidationConflict)
	got, ok := a.Lookup(p, s, contraction.Optimization{})
	require.True(t, ok)
	assert.Equal(t, contraction.ValidationValid, got.ValidationStatus)
	assert.Equal(t, []float64{3}, got.Times, "timings still merge past a conflict")
}

func TestUnresolvableProblem(t *testing.T) {
	t.Parallel()

	p := matmul(512, 512)
	p.Operation.IndexAssignmentsB = []int{0, 1} // no summation index
	db := New(indexing.Default)
	err := db.RecordTiming(p, solution(16), contraction.Optimization{}, 1)
	require.ErrorIs(t, err, contraction.ErrUnresolvedIndices)
	assert.Empty(t, db.Profiles())
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	db := New(indexing.Default)
	apply(t, db,
		record{p: matmul(512, 512), s: solution(16), timing: 1.23},
		record{p: matmul(100, 100), s: solution(16), timing: 4},
	)

	var buf bytes.Buffer
	require.NoError(t, db.WriteJSON(&buf))

	var doc exportDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 2, doc.Stats.Problems)
	require.Len(t, doc.Profiles, 1)
	assert.Equal(t, "Fiji", doc.Profiles[0].Name)
	require.Len(t, doc.Profiles[0].Matches, 1)
	buckets := doc.Profiles[0].Matches[0].Buckets
	require.Len(t, buckets, 2)
	assert.Equal(t, 0, buckets[0].Bucket)
	assert.Equal(t, []float64{1.23}, buckets[0].Problems[0].Solutions[0].Times)
	assert.Equal(t, int64(268435456), buckets[0].Problems[0].Flops)
}

func TestProblemTree(t *testing.T) {
	t.Parallel()

	tree := NewProblemTree()
	tree.RecordProblem(matmul(512, 512))
	tree.RecordProblem(matmul(512, 512))
	tree.RecordProblem(matmul(256, 256))

	double := matmul(64, 64)
	double.TensorC.DataType = contraction.Double
	tree.RecordProblem(double)

	assert.Equal(t, 3, tree.Len())
	groups := tree.Groups()
	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.Equal(t, contraction.Optimization{}, g.Match.Optimization)
	}

	other := NewProblemTree()
	other.RecordProblem(double)
	other.RecordProblem(matmul(256, 256))
	other.RecordProblem(matmul(512, 512))
	assert.True(t, tree.Equal(other))

	merged := NewProblemTree()
	merged.Merge(other)
	merged.Merge(tree)
	assert.True(t, merged.Equal(tree))

	var id string
	for _, g := range groups {
		if g.Match.TypeC == contraction.Single {
			id = g.ID
		}
	}
	problems, err := tree.Problems(id)
	require.NoError(t, err)
	assert.Len(t, problems, 2)
}
