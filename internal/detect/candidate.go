// Package detect runs object-detection models over dataset images and
// turns their raw output into annotation candidates.
package detect

import (
	"log"
	"math"

	"gonum.org/v1/gonum/stat"

	"kolo-studio/internal/annotation"
	"kolo-studio/internal/category"
)

// Candidate is one proposed annotation from a detector: a category by
// name, a normalized box, and the model's confidence.
type Candidate struct {
	Name       string
	Box        annotation.Box
	Confidence float64
}

// MergeThreshold is the default coordinate tolerance for collapsing
// near-duplicate detections of the same category.
const MergeThreshold = 0.05

// Merge drops candidates that duplicate an earlier kept one: same
// category and every box coordinate within threshold. Order is
// preserved, and the earlier (higher-ranked) candidate always wins.
func Merge(candidates []Candidate, threshold float64) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		dup := false
		for _, k := range kept {
			if k.Name == c.Name && boxesWithin(k.Box, c.Box, threshold) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	return kept
}

func boxesWithin(a, b annotation.Box, threshold float64) bool {
	return math.Abs(a.CX-b.CX) <= threshold &&
		math.Abs(a.CY-b.CY) <= threshold &&
		math.Abs(a.W-b.W) <= threshold &&
		math.Abs(a.H-b.H) <= threshold
}

// Apply registers each candidate's category and creates its annotation
// through normal store validation. A candidate with geometry the store
// rejects is skipped and counted; it never aborts the batch.
func Apply(store *annotation.Store, reg *category.Registry, candidates []Candidate) (added, skipped int) {
	for _, c := range candidates {
		id := reg.Ensure(c.Name)
		if _, err := store.Create(c.Box, id); err != nil {
			log.Printf("detect: skip candidate %q: %v", c.Name, err)
			skipped++
			continue
		}
		added++
	}
	return added, skipped
}

// Report summarizes one detection run for the status bar and logs.
type Report struct {
	Total      int
	Added      int
	Skipped    int
	MeanConf   float64
	StdDevConf float64
}

// Summarize builds a report from the full candidate list and the
// apply counts.
func Summarize(candidates []Candidate, added, skipped int) Report {
	r := Report{Total: len(candidates), Added: added, Skipped: skipped}
	if len(candidates) == 0 {
		return r
	}
	confs := make([]float64, len(candidates))
	for i, c := range candidates {
		confs[i] = c.Confidence
	}
	r.MeanConf, r.StdDevConf = stat.MeanStdDev(confs, nil)
	if math.IsNaN(r.StdDevConf) {
		// Single sample.
		r.StdDevConf = 0
	}
	return r
}
