package sources

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/textproc"
	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
)

// Academic defaults.
const (
	DefaultAcademicResults    = 10
	DefaultFullTextCandidates = 3
	DefaultThresholdFactor    = 0.8
)

// TextFetcher retrieves the full text of a paper.
type TextFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Academic checks the target against literature found by keyphrase search.
type Academic struct {
	searchers  []AcademicSearcher
	fetcher    TextFetcher
	keyphrases KeyphraseExtractor
	maxResults int
	fullText   int
	factor     float64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// AcademicOption configures an Academic source.
type AcademicOption func(*Academic)

// WithFetcher sets the full text fetcher. Without one only abstracts are
// compared.
func WithFetcher(f TextFetcher) AcademicOption {
	return func(a *Academic) { a.fetcher = f }
}

// WithMaxResults bounds the results requested from each searcher.
func WithMaxResults(n int) AcademicOption {
	return func(a *Academic) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

// WithFullTextCandidates sets how many top snippets get a full text fetch.
func WithFullTextCandidates(n int) AcademicOption {
	return func(a *Academic) {
		if n >= 0 {
			a.fullText = n
		}
	}
}

// WithThresholdFactor scales the base threshold for academic matches.
func WithThresholdFactor(f float64) AcademicOption {
	return func(a *Academic) {
		if f > 0 && f <= 1 {
			a.factor = f
		}
	}
}

// NewAcademic creates the academic source over the given searchers.
func NewAcademic(searchers []AcademicSearcher, m *metrics.Metrics, opts ...AcademicOption) *Academic {
	a := &Academic{
		searchers:  searchers,
		keyphrases: KeyphraseExtractor{Limit: DefaultKeyphrases},
		maxResults: DefaultAcademicResults,
		fullText:   DefaultFullTextCandidates,
		factor:     DefaultThresholdFactor,
		metrics:    m,
		logger:     logger.WithComponent("source-academic"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// NewAcademicFromConfig wires Semantic Scholar, arXiv and the full text
// fetcher from configuration.
func NewAcademicFromConfig(cfg config.AcademicConfig, factor float64, m *metrics.Metrics) *Academic {
	var searchers []AcademicSearcher
	if cfg.SemanticScholarURL != "" {
		searchers = append(searchers, NewSemanticScholar(cfg.SemanticScholarURL, cfg.RequestsPerSecond, cfg.Timeout, m))
	}
	if cfg.ArxivURL != "" {
		searchers = append(searchers, NewArxiv(cfg.ArxivURL, cfg.RequestsPerSecond, cfg.Timeout, m))
	}
	return NewAcademic(searchers, m,
		WithFetcher(NewFullTextFetcher(cfg.RequestsPerSecond, cfg.Timeout, m)),
		WithMaxResults(cfg.MaxResults),
		WithFullTextCandidates(cfg.FullTextCandidates),
		WithThresholdFactor(factor),
	)
}

func (a *Academic) Name() string { return NameAcademic }

type scoredPaper struct {
	paper  Paper
	result compare.Result
}

// Check builds a keyphrase query, searches every provider concurrently,
// scores abstracts and re-scores the best candidates on their full text.
func (a *Academic) Check(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	defer func() { a.metrics.ObserveSource(NameAcademic, time.Since(start)) }()

	phrases := a.keyphrases.Extract(req.Text)
	if len(phrases) == 0 {
		a.logger.Info("no keyphrases, skipping academic search", "document_id", req.DocumentID)
		return EmptyResult(), nil
	}
	query := strings.Join(phrases, " ")

	papers := a.search(ctx, query)
	if err := ctx.Err(); err != nil {
		return EmptyResult(), err
	}

	threshold := req.Threshold * a.factor
	th := compare.Float(threshold)

	var scored []scoredPaper
	for _, p := range papers {
		if textproc.RuneLen(strings.TrimSpace(p.Abstract)) < MinSnippetLength {
			continue
		}
		r := req.Comparator.CompareTarget(ctx, req.Target, p.Abstract, th)
		scored = append(scored, scoredPaper{paper: p, result: r})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].result.Scores.GlobalScore > scored[j].result.Scores.GlobalScore
	})

	fetched := 0
	for i := range scored {
		if a.fetcher == nil || fetched >= a.fullText {
			break
		}
		p := scored[i].paper
		if p.DownloadURL == "" {
			continue
		}
		fetched++
		text, err := a.fetcher.Fetch(ctx, p.DownloadURL)
		if err != nil || strings.TrimSpace(text) == "" {
			a.logger.Warn("full text unavailable, keeping abstract score",
				"paper", p.ID, "url", p.DownloadURL, "error", err)
			a.metrics.CandidateFailed(NameAcademic)
			continue
		}
		scored[i].result = req.Comparator.CompareTarget(ctx, req.Target, text, th)
	}

	col := newCollector()
	for _, s := range scored {
		col.add(s.paper.ID, s.paper.Title, s.paper.URL, s.result, threshold)
	}
	res := col.result()
	a.logger.Info("academic checked",
		"document_id", req.DocumentID,
		"query", query,
		"papers", len(papers),
		"full_text", fetched,
		"score", res.SimilarityScore,
	)
	return res, nil
}

// search queries every provider concurrently. A failing provider is logged
// and contributes nothing; results keep provider order and drop duplicate
// ids and titles.
func (a *Academic) search(ctx context.Context, query string) []Paper {
	results := make([][]Paper, len(a.searchers))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range a.searchers {
		g.Go(func() error {
			papers, err := s.Search(gctx, query, a.maxResults)
			if err != nil {
				a.logger.Warn("academic search failed", "provider", s.Name(), "error", err)
				a.metrics.CandidateFailed(NameAcademic)
				return nil
			}
			results[i] = papers
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var out []Paper
	for _, papers := range results {
		for _, p := range papers {
			title := strings.ToLower(strings.TrimSpace(p.Title))
			if seen[p.ID] || (title != "" && seen[title]) {
				continue
			}
			seen[p.ID] = true
			if title != "" {
				seen[title] = true
			}
			out = append(out, p)
		}
	}
	return out
}
