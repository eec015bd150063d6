package api

import (
	"github.com/samcharles93/tensile/internal/benchdb"
	"github.com/samcharles93/tensile/pkg/contraction"
)

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type ErrorResponse struct {
	RequestID string        `json:"request_id"`
	Error     ResponseError `json:"error"`
}

type Device struct {
	Name          string `json:"name"`
	ComputeUnits  int    `json:"compute_units"`
	ClockMHz      int    `json:"clock_mhz"`
	FlopsPerClock int    `json:"flops_per_clock"`
}

type Profile struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Devices    []Device `json:"devices"`
	NumMatches int      `json:"num_matches"`
}

type ProfilesResponse struct {
	RequestID string    `json:"request_id"`
	Profiles  []Profile `json:"profiles"`
}

type Match struct {
	ID          string                           `json:"id"`
	Name        string                           `json:"name"`
	Display     string                           `json:"display"`
	NumProblems [contraction.NumShapeBuckets]int `json:"num_problems"`
}

type MatchesResponse struct {
	RequestID string  `json:"request_id"`
	ProfileID string  `json:"profile_id"`
	Matches   []Match `json:"matches"`
}

type Problem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Expression   string `json:"expression"`
	Bucket       int    `json:"bucket"`
	Flops        int64  `json:"flops"`
	NumSolutions int    `json:"num_solutions"`
}

type ProblemsResponse struct {
	RequestID string    `json:"request_id"`
	MatchID   string    `json:"match_id"`
	Problems  []Problem `json:"problems"`
}

type Solution struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	KernelGrid [3]int    `json:"kernel_grid"`
	NumKernels int       `json:"num_kernels"`
	Times      []float64 `json:"times"`
	Mean       *float64  `json:"mean_ms,omitempty"`
	Min        *float64  `json:"min_ms,omitempty"`
	Validation string    `json:"validation"`
}

type SolutionsResponse struct {
	RequestID string     `json:"request_id"`
	ProblemID string     `json:"problem_id"`
	Solutions []Solution `json:"solutions"`
}

type StatsResponse struct {
	RequestID       string        `json:"request_id"`
	Version         string        `json:"version"`
	Database        benchdb.Stats `json:"database"`
	PendingProblems int           `json:"pending_problems"`
}

type TreeGroup struct {
	ID       string   `json:"id"`
	Profile  string   `json:"profile"`
	Match    string   `json:"match"`
	Problems []string `json:"problems"`
}

type TreeResponse struct {
	RequestID string      `json:"request_id"`
	Groups    []TreeGroup `json:"groups"`
}

type GenerateRequest struct {
	Match    string `json:"match"`
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
	Backend  string `json:"backend,omitempty"`
}

type GenerateResponse struct {
	RequestID string `json:"request_id"`
	Name      string `json:"name"`
	Backend   string `json:"backend"`
	Header    string `json:"header"`
	Source    string `json:"source"`
}

func validationName(status int) string {
	switch status {
	case contraction.ValidationValid:
		return "valid"
	case contraction.ValidationInvalid:
		return "invalid"
	default:
		return "unset"
	}
}
