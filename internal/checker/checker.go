// Package checker runs the background half of the service: two-document
// comparisons and multi-source checks. Each run owns one report and drives it
// from pending through processing to completed or failed, writing partial
// results after every source so progress is visible while the run continues.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/document"
	"github.com/ABNmmd/PFE-FSA/internal/extract"
	"github.com/ABNmmd/PFE-FSA/internal/report"
	"github.com/ABNmmd/PFE-FSA/internal/sources"
	apperrors "github.com/ABNmmd/PFE-FSA/pkg/errors"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
	"github.com/ABNmmd/PFE-FSA/pkg/tracing"
)

// Job kinds.
const (
	KindComparison = "comparison"
	KindCheck      = "check"
)

// Job describes one background run. It is also the Kafka message payload.
type Job struct {
	Kind        string   `json:"kind"`
	ReportID    string   `json:"report_id"`
	UserID      string   `json:"user_id"`
	DocumentID  string   `json:"document_id"`
	Document2ID string   `json:"document2_id,omitempty"`
	Method      string   `json:"method,omitempty"`
	Threshold   float64  `json:"threshold,omitempty"`
	Sources     []string `json:"sources,omitempty"`
	RequestID   string   `json:"request_id,omitempty"`
}

// SourceInfo describes one source category for clients.
type SourceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

var descriptions = map[string]string{
	sources.NameUserDocuments: "Your other uploaded documents",
	sources.NameWeb:           "Public web pages found through web search",
	sources.NameAcademic:      "Academic papers from Semantic Scholar and arXiv",
}

// Checker executes jobs against the document and report stores.
type Checker struct {
	docs        document.Store
	reports     report.Sink
	def         *compare.Comparator
	comparators map[string]*compare.Comparator
	sources     map[string]sources.Source
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithSource registers a source under its name.
func WithSource(s sources.Source) Option {
	return func(c *Checker) { c.sources[s.Name()] = s }
}

// WithComparator registers the comparator used when a job asks for method.
func WithComparator(method string, cmp *compare.Comparator) Option {
	return func(c *Checker) { c.comparators[method] = cmp }
}

// WithMetrics enables run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// New creates a Checker whose default comparator serves jobs without a
// method or with an unregistered one.
func New(docs document.Store, reports report.Sink, def *compare.Comparator, opts ...Option) *Checker {
	c := &Checker{
		docs:        docs,
		reports:     reports,
		def:         def,
		comparators: map[string]*compare.Comparator{def.Method(): def},
		sources:     make(map[string]sources.Source),
		logger:      logger.WithComponent("checker"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Comparator returns the comparator for method, falling back to the default.
func (c *Checker) Comparator(method string) *compare.Comparator {
	if cmp, ok := c.comparators[method]; ok {
		return cmp
	}
	return c.def
}

// Sources lists every known category in check order.
func (c *Checker) Sources() []SourceInfo {
	out := make([]SourceInfo, 0, len(sources.Order))
	for _, name := range sources.Order {
		_, ok := c.sources[name]
		out = append(out, SourceInfo{Name: name, Description: descriptions[name], Enabled: ok})
	}
	return out
}

// Execute dispatches a job by kind.
func (c *Checker) Execute(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindComparison:
		return c.RunComparison(ctx, job)
	case KindCheck:
		return c.Run(ctx, job)
	default:
		return fmt.Errorf("%w: unknown job kind %q", apperrors.ErrInvalidInput, job.Kind)
	}
}

// loadText fetches a document and extracts its text. Placeholder text for
// unsupported formats is kept. Blank text is not an error: it compares as
// nothing and the run completes with zero scores.
func (c *Checker) loadText(ctx context.Context, log *slog.Logger, id string) (*document.Document, string, error) {
	doc, err := c.docs.Get(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("loading document %s: %w", id, err)
	}
	text := extract.Text(doc.Content, doc.FileType)
	if strings.TrimSpace(text) == "" {
		log.Warn("document has no comparable content", "document_id", id)
	}
	return doc, text, nil
}

func (c *Checker) fail(ctx context.Context, log *slog.Logger, id string, cause error) error {
	log.Error("run failed", "error", cause)
	if err := c.reports.Fail(ctx, id, cause.Error()); err != nil {
		return errors.Join(cause, fmt.Errorf("recording failure: %w", err))
	}
	return cause
}

func (c *Checker) runLogger(ctx context.Context, job Job) (context.Context, *slog.Logger) {
	if job.RequestID != "" {
		ctx = logger.WithRequestID(ctx, job.RequestID)
	}
	return ctx, logger.FromContext(ctx).With(
		"component", "checker",
		"report_id", job.ReportID,
		"kind", job.Kind,
	)
}

// Run performs a multi-source check. Sources run in fixed order; a source
// that errors is recorded as empty and still counts as checked.
func (c *Checker) Run(ctx context.Context, job Job) (err error) {
	ctx, log := c.runLogger(ctx, job)
	ctx, span := tracing.StartSpan(ctx, "check", job.RequestID)
	start := time.Now()
	c.metrics.CheckStarted()
	status := report.StatusCompleted
	defer func() {
		if err != nil {
			status = report.StatusFailed
		}
		c.metrics.CheckFinished(KindCheck, string(status))
		span.End()
		span.Log(log)
	}()

	if err := c.reports.UpdateStatus(ctx, job.ReportID, report.StatusProcessing); err != nil {
		return fmt.Errorf("marking report processing: %w", err)
	}
	doc, text, err := c.loadText(ctx, log, job.DocumentID)
	if err != nil {
		return c.fail(ctx, log, job.ReportID, err)
	}

	cmp := c.Comparator(job.Method)
	threshold := job.Threshold
	if threshold <= 0 {
		threshold = cmp.Threshold(nil)
	}
	target, err := cmp.PrepareTarget(ctx, text)
	if err != nil {
		return c.fail(ctx, log, job.ReportID, fmt.Errorf("preparing target: %w", err))
	}
	req := sources.Request{
		Comparator: cmp,
		Target:     target,
		Text:       text,
		UserID:     doc.UserID,
		DocumentID: doc.ID,
		Threshold:  threshold,
	}

	names := sources.Known(job.Sources)
	blank := len(target.Chunks) == 0
	overall := 0.0
	for i, name := range names {
		res := sources.EmptyResult()
		if blank {
			log.Debug("nothing to compare, recording empty result", "source", name)
		} else if src, ok := c.sources[name]; !ok {
			log.Warn("source not configured, recording empty result", "source", name)
		} else {
			r, err := src.Check(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("check interrupted during %s: %w", name, ctx.Err())
				}
				log.Error("source failed, recording empty result", "source", name, "error", err)
				c.metrics.CandidateFailed(name)
			} else {
				res = r
			}
		}
		overall = max(overall, res.SimilarityScore*100)
		progress := float64(i+1) / float64(len(names)) * 100
		if err := c.reports.UpdateSourceResult(ctx, job.ReportID, name, res, progress, overall); err != nil {
			return fmt.Errorf("recording %s result: %w", name, err)
		}
		log.Info("source checked",
			"source", name,
			"score", res.SimilarityScore,
			"matches", res.MatchesFound,
			"progress", progress,
		)
	}

	if err := c.reports.UpdateStatus(ctx, job.ReportID, report.StatusCompleted); err != nil {
		return fmt.Errorf("marking report completed: %w", err)
	}
	log.Info("check completed",
		"document_id", doc.ID,
		"sources", names,
		"score", overall,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// RunComparison compares two documents and stores the result.
func (c *Checker) RunComparison(ctx context.Context, job Job) (err error) {
	ctx, log := c.runLogger(ctx, job)
	ctx, span := tracing.StartSpan(ctx, "comparison", job.RequestID)
	c.metrics.CheckStarted()
	defer func() {
		status := report.StatusCompleted
		if err != nil {
			status = report.StatusFailed
		}
		c.metrics.CheckFinished(KindComparison, string(status))
		span.End()
		span.Log(log)
	}()

	if err := c.reports.UpdateStatus(ctx, job.ReportID, report.StatusProcessing); err != nil {
		return fmt.Errorf("marking report processing: %w", err)
	}
	_, text1, err := c.loadText(ctx, log, job.DocumentID)
	if err != nil {
		return c.fail(ctx, log, job.ReportID, err)
	}
	_, text2, err := c.loadText(ctx, log, job.Document2ID)
	if err != nil {
		return c.fail(ctx, log, job.ReportID, err)
	}

	var threshold *float64
	if job.Threshold > 0 {
		threshold = compare.Float(job.Threshold)
	}
	res := c.Comparator(job.Method).Compare(ctx, text1, text2, threshold)
	if err := c.reports.UpdateResults(ctx, job.ReportID, res); err != nil {
		return fmt.Errorf("storing comparison results: %w", err)
	}
	log.Info("comparison completed",
		"percentage", res.Scores.Percentage,
		"matches", len(res.Matches),
		"method", res.Stats.Method,
	)
	return nil
}
