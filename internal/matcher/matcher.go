// Package matcher selects the chunk pairs that are reported as evidence of
// copying from a similarity matrix.
package matcher

import (
	"fmt"
	"sort"

	"github.com/ABNmmd/PFE-FSA/internal/similarity"
	"github.com/ABNmmd/PFE-FSA/internal/textproc"
)

// DefaultThreshold is the minimum similarity for a reported match.
const DefaultThreshold = 0.70

// Match pairs a chunk of the first document with its best counterpart in
// the second.
type Match struct {
	Text1      string  `json:"text1"`
	Text2      string  `json:"text2"`
	Similarity float64 `json:"similarity"`
	Position1  int     `json:"position1"`
	Position2  int     `json:"position2"`
}

// DuplicatePolicy decides whether several A-chunks may report the same
// B-chunk.
type DuplicatePolicy int

const (
	// KeepDuplicates reports every qualifying row.
	KeepDuplicates DuplicatePolicy = iota
	// DedupeTargets keeps only the best-scoring match per B-chunk.
	DedupeTargets
)

// ParsePolicy maps "keep" and "dedupe" to a policy. The empty string is keep.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "keep":
		return KeepDuplicates, nil
	case "dedupe":
		return DedupeTargets, nil
	}
	return KeepDuplicates, fmt.Errorf("unknown duplicate policy %q", s)
}

func (p DuplicatePolicy) String() string {
	if p == DedupeTargets {
		return "dedupe"
	}
	return "keep"
}

// Detector finds matches with a fixed triviality filter.
type Detector struct {
	Trivial textproc.Trivial
	Policy  DuplicatePolicy
}

// Detect runs the default detector.
func Detect(a, b []string, m similarity.Matrix, threshold float64, policy DuplicatePolicy) []Match {
	d := Detector{Trivial: textproc.DefaultTrivial, Policy: policy}
	return d.Detect(a, b, m, threshold)
}

// Detect takes, for every non-trivial chunk of a, the most similar chunk of
// b (first index on ties) and reports it when the score reaches threshold
// and the counterpart is not trivial either. Matches are sorted by
// descending similarity; equal scores keep row order.
func (d Detector) Detect(a, b []string, m similarity.Matrix, threshold float64) []Match {
	if len(a) == 0 || len(b) == 0 {
		return []Match{}
	}
	m = m.Conform(len(a), len(b))

	matches := make([]Match, 0)
	for i, text := range a {
		if d.Trivial.Is(text) {
			continue
		}
		row := m.Row(i)
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		if row[best] < threshold || d.Trivial.Is(b[best]) {
			continue
		}
		matches = append(matches, Match{
			Text1:      text,
			Text2:      b[best],
			Similarity: row[best],
			Position1:  i,
			Position2:  best,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if d.Policy == DedupeTargets {
		matches = dedupe(matches)
	}
	return matches
}

// dedupe keeps the first, therefore best, match for each B-chunk.
func dedupe(sorted []Match) []Match {
	seen := make(map[int]struct{}, len(sorted))
	out := sorted[:0]
	for _, m := range sorted {
		if _, ok := seen[m.Position2]; ok {
			continue
		}
		seen[m.Position2] = struct{}{}
		out = append(out, m)
	}
	return out
}
