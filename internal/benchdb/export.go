package benchdb

import (
	"io"

	"github.com/goccy/go-json"
)

type exportDoc struct {
	Stats    Stats           `json:"stats"`
	Profiles []exportProfile `json:"profiles"`
}

type exportProfile struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Matches []exportMatch `json:"matches"`
}

type exportMatch struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Buckets []exportBucket `json:"buckets"`
}

type exportBucket struct {
	Bucket   int             `json:"bucket"`
	Problems []exportProblem `json:"problems"`
}

type exportProblem struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Flops     int64            `json:"flops"`
	Solutions []exportSolution `json:"solutions"`
}

type exportSolution struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Times      []float64 `json:"times"`
	Mean       float64   `json:"mean"`
	Validation int       `json:"validation"`
}

// WriteJSON writes the whole database as nested JSON in key order.
func (db *Database) WriteJSON(w io.Writer) error {
	doc := exportDoc{Stats: db.Stats(), Profiles: []exportProfile{}}
	var (
		prof  *exportProfile
		match *exportMatch
		bkt   *exportBucket
		prob  *exportProblem
	)
	err := db.Walk(func(c Cell) error {
		if prof == nil || prof.ID != NodeID(c.Path.Profile) {
			doc.Profiles = append(doc.Profiles, exportProfile{ID: NodeID(c.Path.Profile), Name: c.Profile.LibString()})
			prof = &doc.Profiles[len(doc.Profiles)-1]
			match = nil
		}
		if match == nil || match.ID != NodeID(c.Path.Match) {
			prof.Matches = append(prof.Matches, exportMatch{ID: NodeID(c.Path.Match), Name: c.Match.LibString()})
			match = &prof.Matches[len(prof.Matches)-1]
			bkt = nil
		}
		if bkt == nil || bkt.Bucket != c.Path.Bucket {
			match.Buckets = append(match.Buckets, exportBucket{Bucket: c.Path.Bucket})
			bkt = &match.Buckets[len(match.Buckets)-1]
			prob = nil
		}
		if prob == nil || prob.ID != NodeID(c.Path.Problem) {
			bkt.Problems = append(bkt.Problems, exportProblem{ID: NodeID(c.Path.Problem), Name: c.Problem.String(), Flops: c.Problem.NumFlops()})
			prob = &bkt.Problems[len(bkt.Problems)-1]
		}
		prob.Solutions = append(prob.Solutions, exportSolution{
			ID:         NodeID(c.Path.Solution),
			Name:       c.Solution.String(),
			Times:      c.Benchmark.Times,
			Mean:       c.Benchmark.Mean(),
			Validation: c.Benchmark.ValidationStatus,
		})
		return nil
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
