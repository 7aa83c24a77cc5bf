// Package sources implements the candidate corpora a document is checked
// against: the owner's other documents, the web and academic literature.
// Each Source compares a prepared target with its own candidates; a failing
// candidate is logged and skipped, never fatal to the category.
package sources

import (
	"context"
	"sort"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/matcher"
)

// Source category names, in check order.
const (
	NameUserDocuments = "user_documents"
	NameWeb           = "web"
	NameAcademic      = "academic"
)

// Order is the fixed processing order of source categories.
var Order = []string{NameUserDocuments, NameWeb, NameAcademic}

// DefaultSources is used when a check requests none.
var DefaultSources = []string{NameUserDocuments, NameWeb}

// CandidateMatch summarises the comparison with one candidate.
type CandidateMatch struct {
	SourceID   string          `json:"source_id"`
	Title      string          `json:"title"`
	URL        string          `json:"url,omitempty"`
	Similarity float64         `json:"similarity"`
	Matches    []matcher.Match `json:"matches"`
}

// Result is the outcome for one source category.
type Result struct {
	SimilarityScore float64          `json:"similarity_score"`
	MatchesFound    int              `json:"matches_found"`
	Matches         []CandidateMatch `json:"matches"`
}

// Request carries what every source needs to check one target.
type Request struct {
	Comparator *compare.Comparator
	Target     *compare.Target
	// Text is the extracted target text, used for query building.
	Text       string
	UserID     string
	DocumentID string
	Threshold  float64
}

// Source is one candidate corpus.
type Source interface {
	Name() string
	Check(ctx context.Context, req Request) (Result, error)
}

// EmptyResult has a non-nil match list so it serialises as [].
func EmptyResult() Result {
	return Result{Matches: []CandidateMatch{}}
}

// collector accumulates candidate outcomes into a Result.
type collector struct {
	res Result
}

func newCollector() *collector {
	return &collector{res: EmptyResult()}
}

// add records a candidate comparison. Every candidate counts toward the
// score; only those with matches or a score at threshold are listed.
func (c *collector) add(id, title, url string, r compare.Result, threshold float64) {
	sim := r.Scores.Percentage / 100
	if sim > c.res.SimilarityScore {
		c.res.SimilarityScore = sim
	}
	if len(r.Matches) == 0 && sim < threshold {
		return
	}
	c.res.MatchesFound += len(r.Matches)
	c.res.Matches = append(c.res.Matches, CandidateMatch{
		SourceID:   id,
		Title:      title,
		URL:        url,
		Similarity: sim,
		Matches:    r.Matches,
	})
}

func (c *collector) result() Result {
	sort.SliceStable(c.res.Matches, func(i, j int) bool {
		return c.res.Matches[i].Similarity > c.res.Matches[j].Similarity
	})
	return c.res
}

// Known filters names to known categories and returns them in Order. An
// empty or fully unknown request yields DefaultSources.
func Known(names []string) []string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []string
	for _, n := range Order {
		if want[n] {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultSources...)
	}
	return out
}
