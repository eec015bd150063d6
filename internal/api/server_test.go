package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/tensile/internal/benchdb"
	"github.com/samcharles93/tensile/internal/codegen"
	"github.com/samcharles93/tensile/internal/indexing"
	"github.com/samcharles93/tensile/pkg/contraction"
)

func matmul(n int) contraction.Problem {
	return contraction.Problem{
		TensorC: contraction.NewTensor(contraction.Single, contraction.Dimension{Stride: 1, Size: n}, contraction.Dimension{Stride: n, Size: n}),
		TensorA: contraction.NewTensor(contraction.Single, contraction.Dimension{Stride: 1, Size: n}, contraction.Dimension{Stride: n, Size: n}),
		TensorB: contraction.NewTensor(contraction.Single, contraction.Dimension{Stride: 1, Size: n}, contraction.Dimension{Stride: n, Size: n}),
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

func solution(t *testing.T, p contraction.Problem, wg int) *contraction.Solution {
	t.Helper()
	k := contraction.NewKernel()
	k.DataTypeC, k.DataTypeA, k.DataTypeB = p.TensorC.DataType, p.TensorA.DataType, p.TensorB.DataType
	k.DataTypeAlpha, k.DataTypeBeta = p.Operation.AlphaType, p.Operation.BetaType
	k.Problem = p.Clone()
	k.Tile = contraction.Tile{
		WorkGroup: [2]int{wg, wg},
		MicroTile: [2]int{4, 4},
		Branch:    [2]contraction.BranchType{contraction.BranchMultiple, contraction.BranchMultiple},
	}
	k.Unrolls = []int{8}
	require.NoError(t, indexing.ApplyToKernel(indexing.Default, k, p))
	s := &contraction.Solution{
		KernelGrid: [3]int{1, 1, 1},
		Branch:     [2]contraction.BranchType{contraction.BranchMultiple, contraction.BranchMultiple},
	}
	s.Kernels[0] = k
	return s
}

type fixture struct {
	e       *echo.Echo
	db      *benchdb.Database
	profile string
	match   string
	problem string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := benchdb.New(indexing.Default)
	p := matmul(512)
	fast, slow := solution(t, p, 16), solution(t, p, 8)
	require.NoError(t, db.RecordTiming(p, fast, contraction.Optimization{}, 1.0))
	require.NoError(t, db.RecordTiming(p, fast, contraction.Optimization{}, 2.0))
	require.NoError(t, db.RecordValidation(p, fast, contraction.Optimization{}, true))
	require.NoError(t, db.RecordTiming(p, slow, contraction.Optimization{}, 5.0))

	tree := benchdb.NewProblemTree()
	tree.RecordProblem(matmul(1024))

	e := echo.New()
	NewServer(db, tree, codegen.New(contraction.HIP, nil)).Register(e)

	path, err := db.PathOf(p, fast, contraction.Optimization{})
	require.NoError(t, err)
	return fixture{
		e:       e,
		db:      db,
		profile: benchdb.NodeID(path.Profile),
		match:   benchdb.NodeID(path.Match),
		problem: benchdb.NodeID(path.Problem),
	}
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body=%s", rec.Body.String())
	return out
}

func TestProfilesAndMatches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := do(t, f.e, http.MethodGet, "/v1/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	profiles := decode[ProfilesResponse](t, rec)
	require.Len(t, profiles.Profiles, 1)
	assert.Equal(t, f.profile, profiles.Profiles[0].ID)
	assert.Equal(t, "Fiji", profiles.Profiles[0].Name)
	assert.Equal(t, 64, profiles.Profiles[0].Devices[0].ComputeUnits)
	assert.True(t, strings.HasPrefix(profiles.RequestID, "req_"))
	assert.Equal(t, profiles.RequestID, rec.Header().Get(echo.HeaderXRequestID))

	rec = do(t, f.e, http.MethodGet, "/v1/profiles/"+f.profile+"/matches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decode[MatchesResponse](t, rec)
	require.Len(t, matches.Matches, 1)
	assert.Equal(t, f.match, matches.Matches[0].ID)
	assert.Equal(t, "Fiji_CT_SSSSS_Cij_Aik_Bkj_O0", matches.Matches[0].Name)
	assert.Equal(t, 1, matches.Matches[0].NumProblems[0]+matches.Matches[0].NumProblems[1])
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, path := range []string{
		"/v1/profiles/nope/matches",
		"/v1/matches/nope/problems",
		"/v1/matches/" + f.match + "/problems/nope/solutions",
	} {
		rec := do(t, f.e, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		body := decode[ErrorResponse](t, rec)
		assert.Equal(t, "not_found_error", body.Error.Type)
	}
}

func TestProblemsBucketFilter(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := do(t, f.e, http.MethodGet, "/v1/matches/"+f.match+"/problems", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[ProblemsResponse](t, rec)
	require.Len(t, all.Problems, 1)
	got := all.Problems[0]
	assert.Equal(t, f.problem, got.ID)
	assert.Equal(t, int64(268435456), got.Flops)
	assert.Equal(t, 2, got.NumSolutions)

	other := 1 - got.Bucket
	rec = do(t, f.e, http.MethodGet, "/v1/matches/"+f.match+"/problems?bucket="+string(rune('0'+other)), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[ProblemsResponse](t, rec).Problems)

	for _, bad := range []string{"x", "-1", "2"} {
		rec = do(t, f.e, http.MethodGet, "/v1/matches/"+f.match+"/problems?bucket="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestSolutionsOrderedByMean(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := do(t, f.e, http.MethodGet, "/v1/matches/"+f.match+"/problems/"+f.problem+"/solutions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[SolutionsResponse](t, rec)
	require.Len(t, out.Solutions, 2)

	first, second := out.Solutions[0], out.Solutions[1]
	assert.Equal(t, []float64{1.0, 2.0}, first.Times)
	require.NotNil(t, first.Mean)
	assert.InDelta(t, 1.5, *first.Mean, 1e-9)
	assert.Equal(t, "valid", first.Validation)
	assert.Equal(t, "CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4m_k8_O0_G1m1", first.Name)
	assert.Equal(t, "unset", second.Validation)
	assert.InDelta(t, 5.0, *second.Min, 1e-9)
}

func TestStatsAndTree(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := do(t, f.e, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StatsResponse](t, rec)
	assert.Equal(t, 2, stats.Database.Solutions)
	assert.Equal(t, 3, stats.Database.Timings)
	assert.Equal(t, 1, stats.Database.Valid)
	assert.Equal(t, 1, stats.PendingProblems)
	assert.NotEmpty(t, stats.Version)

	rec = do(t, f.e, http.MethodGet, "/v1/tree", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[TreeResponse](t, rec)
	require.Len(t, tree.Groups, 1)
	assert.Equal(t, []string{matmul(1024).String()}, tree.Groups[0].Problems)
}

func TestTreeWithoutProblemTree(t *testing.T) {
	t.Parallel()
	e := echo.New()
	NewServer(nil, nil, nil).Register(e)

	rec := do(t, e, http.MethodGet, "/v1/tree", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, e, http.MethodGet, "/v1/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[ProfilesResponse](t, rec).Profiles)
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := do(t, f.e, http.MethodGet, "/v1/matches/"+f.match+"/problems/"+f.problem+"/solutions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	solutionID := decode[SolutionsResponse](t, rec).Solutions[0].ID

	body, err := json.Marshal(GenerateRequest{Match: f.match, Problem: f.problem, Solution: solutionID})
	require.NoError(t, err)
	rec = do(t, f.e, http.MethodPost, "/v1/generate", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[GenerateResponse](t, rec)
	assert.Equal(t, "CT_SSSSS_Cij_Aik_Bkj_i16x4m_j16x4m_k8_O0_G1m1", out.Name)
	assert.Equal(t, "HIP", out.Backend)
	assert.Contains(t, out.Source, "hipLaunchKernel")
	assert.Contains(t, out.Header, "#ifndef")

	body, err = json.Marshal(GenerateRequest{Match: f.match, Problem: f.problem, Solution: solutionID, Backend: "opencl"})
	require.NoError(t, err)
	rec = do(t, f.e, http.MethodPost, "/v1/generate", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out = decode[GenerateResponse](t, rec)
	assert.Equal(t, "OpenCL 1.2", out.Backend)
	assert.NotContains(t, out.Source, "hipLaunchKernel")
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"unknown field", `{"match":"a","problem":"b","solution":"c","extra":1}`, http.StatusBadRequest},
		{"missing ids", `{"match":"a"}`, http.StatusBadRequest},
		{"bad backend", `{"match":"a","problem":"b","solution":"c","backend":"cuda"}`, http.StatusBadRequest},
		{"unknown solution", `{"match":"` + f.match + `","problem":"` + f.problem + `","solution":"nope"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := do(t, f.e, http.MethodPost, "/v1/generate", tc.body)
		assert.Equal(t, tc.status, rec.Code, "%s: %s", tc.name, rec.Body.String())
	}
}

func TestGenerateIncompleteSolution(t *testing.T) {
	t.Parallel()

	db := benchdb.New(indexing.Default)
	p := matmul(64)
	s := solution(t, p, 8)
	s.KernelGrid[0] = 0
	require.NoError(t, db.RecordTiming(p, s, contraction.Optimization{}, 1))
	path, err := db.PathOf(p, s, contraction.Optimization{})
	require.NoError(t, err)

	e := echo.New()
	NewServer(db, nil, nil).Register(e)
	body, err := json.Marshal(GenerateRequest{
		Match:    benchdb.NodeID(path.Match),
		Problem:  benchdb.NodeID(path.Problem),
		Solution: benchdb.NodeID(path.Solution),
	})
	require.NoError(t, err)
	rec := do(t, e, http.MethodPost, "/v1/generate", string(body))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := do(t, f.e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
