// Package api serves a built benchmark database over HTTP: read-only
// queries down the profile, exact match, problem and solution hierarchy,
// plus on-demand solution code generation.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/tensile/internal/benchdb"
	"github.com/samcharles93/tensile/internal/codegen"
	"github.com/samcharles93/tensile/internal/version"
	"github.com/samcharles93/tensile/pkg/contraction"
)

// Server answers queries against a database that is no longer written to.
type Server struct {
	db     *benchdb.Database
	tree   *benchdb.ProblemTree
	writer *codegen.SolutionWriter
}

// NewServer wraps db. tree may be nil. writer supplies the default backend
// and the kernel naming used for generation and solution names.
func NewServer(db *benchdb.Database, tree *benchdb.ProblemTree, writer *codegen.SolutionWriter) *Server {
	if db == nil {
		db = benchdb.New(nil)
	}
	if writer == nil {
		writer = codegen.New(contraction.HIP, nil)
	}
	return &Server{db: db, tree: tree, writer: writer}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/profiles", s.handleProfiles)
	e.GET("/v1/profiles/:profile/matches", s.handleMatches)
	e.GET("/v1/matches/:match/problems", s.handleProblems)
	e.GET("/v1/matches/:match/problems/:problem/solutions", s.handleSolutions)
	e.GET("/v1/stats", s.handleStats)
	e.GET("/v1/tree", s.handleTree)
	e.POST("/v1/generate", s.handleGenerate)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) handleProfiles(c *echo.Context) error {
	entries := s.db.Profiles()
	out := ProfilesResponse{RequestID: requestID(c), Profiles: make([]Profile, 0, len(entries))}
	for _, e := range entries {
		p := Profile{ID: e.ID, Name: e.Profile.LibString(), NumMatches: e.NumMatches}
		for _, d := range e.Profile.Devices {
			p.Devices = append(p.Devices, Device{
				Name:          d.Name,
				ComputeUnits:  d.NumComputeUnits,
				ClockMHz:      d.ClockFrequency,
				FlopsPerClock: d.FlopsPerClock,
			})
		}
		out.Profiles = append(out.Profiles, p)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleMatches(c *echo.Context) error {
	profileID := c.Param("profile")
	entries, err := s.db.ExactMatches(profileID)
	if err != nil {
		return writeLookupError(c, err)
	}
	out := MatchesResponse{RequestID: requestID(c), ProfileID: profileID, Matches: make([]Match, 0, len(entries))}
	for _, e := range entries {
		out.Matches = append(out.Matches, Match{
			ID:          e.ID,
			Name:        e.Match.LibString(),
			Display:     e.Match.String(),
			NumProblems: e.NumProblems,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleProblems(c *echo.Context) error {
	bucket, err := parseBucket(c.QueryParam("bucket"))
	if err != nil {
		return writeLookupError(c, err)
	}
	matchID := c.Param("match")
	entries, err := s.db.Problems(matchID, bucket)
	if err != nil {
		return writeLookupError(c, err)
	}
	out := ProblemsResponse{RequestID: requestID(c), MatchID: matchID, Problems: make([]Problem, 0, len(entries))}
	for _, e := range entries {
		out.Problems = append(out.Problems, Problem{
			ID:           e.ID,
			Name:         e.Problem.String(),
			Expression:   e.Problem.Expression(),
			Bucket:       e.Bucket,
			Flops:        e.Problem.NumFlops(),
			NumSolutions: e.NumSolutions,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleSolutions(c *echo.Context) error {
	problemID := c.Param("problem")
	entries, err := s.db.Solutions(c.Param("match"), problemID)
	if err != nil {
		return writeLookupError(c, err)
	}
	out := SolutionsResponse{RequestID: requestID(c), ProblemID: problemID, Solutions: make([]Solution, 0, len(entries))}
	for _, e := range entries {
		sol := Solution{
			ID:         e.ID,
			KernelGrid: e.Solution.KernelGrid,
			NumKernels: e.Solution.NumKernels(),
			Times:      e.Benchmark.Times,
			Validation: validationName(e.Benchmark.ValidationStatus),
		}
		if e.Solution.Kernels[0] != nil {
			sol.Name = s.writer.Name(e.Solution)
		}
		if len(e.Benchmark.Times) > 0 {
			mean, fastest := e.Benchmark.Mean(), e.Benchmark.Min()
			sol.Mean, sol.Min = &mean, &fastest
		}
		out.Solutions = append(out.Solutions, sol)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleStats(c *echo.Context) error {
	out := StatsResponse{
		RequestID: requestID(c),
		Version:   version.String(),
		Database:  s.db.Stats(),
	}
	if s.tree != nil {
		out.PendingProblems = s.tree.Len()
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleTree(c *echo.Context) error {
	if s.tree == nil {
		return writeNotFound(c, ErrNoProblemTree.Error())
	}
	groups := s.tree.Groups()
	out := TreeResponse{RequestID: requestID(c), Groups: make([]TreeGroup, 0, len(groups))}
	for _, g := range groups {
		tg := TreeGroup{ID: g.ID, Profile: g.Profile.LibString(), Match: g.Match.LibString()}
		for _, p := range g.Problems {
			tg.Problems = append(tg.Problems, p.String())
		}
		out.Groups = append(out.Groups, tg)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeLookupError(c, err)
	}
	if err := req.validate(); err != nil {
		return writeLookupError(c, err)
	}
	writer := s.writer
	if req.Backend != "" {
		b, ok := contraction.ParseBackend(req.Backend)
		if !ok {
			return writeLookupError(c, invalidField("backend", "unknown backend "+req.Backend))
		}
		writer = writer.WithBackend(b)
	}

	problem, solution, err := s.db.Solution(req.Match, req.Problem, req.Solution)
	if err != nil {
		return writeLookupError(c, err)
	}
	if err := codegen.CheckCompatible(solution, problem); err != nil {
		return writeLookupError(c, err)
	}
	artifact, err := writer.Generate(solution)
	if err != nil {
		return writeLookupError(c, err)
	}
	return c.JSON(http.StatusOK, GenerateResponse{
		RequestID: requestID(c),
		Name:      artifact.Name,
		Backend:   writer.Backend().String(),
		Header:    artifact.Header,
		Source:    artifact.Source,
	})
}

func (r GenerateRequest) validate() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"match", r.Match},
		{"problem", r.Problem},
		{"solution", r.Solution},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, invalidField(f.name, "is required"))
		}
	}
	return errors.Join(errs...)
}
