package sources

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/textproc"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
)

// Web query shaping, in runes.
const (
	DefaultMaxQueries = 3
	QueryLength       = 250
	MinQueryLength    = 50
	MinSnippetLength  = 30
)

// SearchResult is one web hit.
type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

// WebSearcher runs a single web query.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Web checks the target against web search snippets.
type Web struct {
	searcher   WebSearcher
	maxQueries int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewWeb creates the web source. maxQueries <= 0 uses DefaultMaxQueries.
func NewWeb(s WebSearcher, maxQueries int, m *metrics.Metrics) *Web {
	if maxQueries <= 0 {
		maxQueries = DefaultMaxQueries
	}
	return &Web{
		searcher:   s,
		maxQueries: maxQueries,
		metrics:    m,
		logger:     logger.WithComponent("source-web"),
	}
}

func (w *Web) Name() string { return NameWeb }

// Check searches the longest target chunks and compares each returned
// snippet with the target. A URL seen more than once keeps its best score.
func (w *Web) Check(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	defer func() { w.metrics.ObserveSource(NameWeb, time.Since(start)) }()

	var chunks []string
	if req.Target != nil {
		chunks = req.Target.Chunks
	}
	queries := Queries(chunks, w.maxQueries)
	th := compare.Float(req.Threshold)

	best := make(map[string]CandidateMatch)
	var order []string
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return EmptyResult(), err
		}
		hits, err := w.searcher.Search(ctx, q)
		if err != nil {
			w.logger.Warn("web search failed", "error", err)
			w.metrics.CandidateFailed(NameWeb)
			continue
		}
		for _, h := range hits {
			if textproc.RuneLen(strings.TrimSpace(h.Snippet)) < MinSnippetLength {
				continue
			}
			r := req.Comparator.CompareTarget(ctx, req.Target, h.Snippet, th)
			sim := r.Scores.Percentage / 100
			key := h.URL
			if key == "" {
				key = h.Title
			}
			prev, seen := best[key]
			if seen && prev.Similarity >= sim {
				continue
			}
			if !seen {
				order = append(order, key)
			}
			best[key] = CandidateMatch{
				SourceID:   key,
				Title:      h.Title,
				URL:        h.URL,
				Similarity: sim,
				Matches:    r.Matches,
			}
		}
	}

	res := EmptyResult()
	for _, k := range order {
		c := best[k]
		if c.Similarity > res.SimilarityScore {
			res.SimilarityScore = c.Similarity
		}
		if len(c.Matches) == 0 && c.Similarity < req.Threshold {
			continue
		}
		res.MatchesFound += len(c.Matches)
		res.Matches = append(res.Matches, c)
	}
	sort.SliceStable(res.Matches, func(i, j int) bool {
		return res.Matches[i].Similarity > res.Matches[j].Similarity
	})
	w.logger.Info("web checked",
		"document_id", req.DocumentID,
		"queries", len(queries),
		"urls", len(order),
		"score", res.SimilarityScore,
	)
	return res, nil
}

// Queries picks the n longest chunks of at least MinQueryLength runes,
// cut to at most QueryLength runes at a word boundary. Ties keep chunk order.
func Queries(chunks []string, n int) []string {
	var cands []string
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if textproc.RuneLen(c) >= MinQueryLength {
			cands = append(cands, c)
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return textproc.RuneLen(cands[i]) > textproc.RuneLen(cands[j])
	})
	if len(cands) > n {
		cands = cands[:n]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = truncateRunes(c, QueryLength)
	}
	return out
}

// truncateRunes cuts s to at most n runes without splitting a word, unless
// the first word alone is longer than n.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := n
	if !unicode.IsSpace(r[n]) {
		for cut > 0 && !unicode.IsSpace(r[cut-1]) {
			cut--
		}
		if cut == 0 {
			cut = n
		}
	}
	return strings.TrimSpace(string(r[:cut]))
}
