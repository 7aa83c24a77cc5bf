// Package report persists plagiarism reports and the incremental progress of
// the background runs that fill them. A Sink is the write handle a run holds;
// a Store adds the read side used by the API.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/document"
	"github.com/ABNmmd/PFE-FSA/internal/matcher"
	"github.com/ABNmmd/PFE-FSA/internal/sources"
)

// Status is the lifecycle state of a report.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further run updates are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Type distinguishes two-document comparisons from multi-source checks.
type Type string

const (
	TypeComparison Type = "comparison"
	TypeGeneral    Type = "general"
)

// CheckOptions records what a general check was asked to do.
type CheckOptions struct {
	Sources     []string `json:"sources"`
	Sensitivity string   `json:"sensitivity,omitempty"`
	Threshold   float64  `json:"threshold"`
}

// Report is one persisted comparison or check.
type Report struct {
	ID              string                    `json:"id"`
	UserID          string                    `json:"user_id"`
	Document1       *document.Ref             `json:"document1"`
	Document2       *document.Ref             `json:"document2,omitempty"`
	SimilarityScore float64                   `json:"similarity_score"`
	Status          Status                    `json:"status"`
	Results         *compare.Result           `json:"results,omitempty"`
	MatchedContent  []matcher.Match           `json:"matched_content"`
	DetectionMethod string                    `json:"detection_method"`
	ReportType      Type                      `json:"report_type"`
	CheckOptions    *CheckOptions             `json:"check_options,omitempty"`
	SourcesChecked  []string                  `json:"sources_checked"`
	SourceResults   map[string]sources.Result `json:"source_results"`
	Progress        float64                   `json:"progress"`
	Error           string                    `json:"error,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

func newReport(userID string, doc1, doc2 *document.Ref, method string, t Type) *Report {
	now := time.Now().UTC()
	return &Report{
		ID:              uuid.New().String(),
		UserID:          userID,
		Document1:       doc1,
		Document2:       doc2,
		Status:          StatusPending,
		MatchedContent:  []matcher.Match{},
		DetectionMethod: method,
		ReportType:      t,
		SourcesChecked:  []string{},
		SourceResults:   map[string]sources.Result{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewComparison creates a pending two-document comparison report.
func NewComparison(userID string, doc1, doc2 *document.Ref, method string) *Report {
	return newReport(userID, doc1, doc2, method, TypeComparison)
}

// NewCheck creates a pending multi-source check report.
func NewCheck(userID string, doc *document.Ref, method string, opts CheckOptions) *Report {
	r := newReport(userID, doc, nil, method, TypeGeneral)
	opts.Sources = sources.Known(opts.Sources)
	r.CheckOptions = &opts
	return r
}

// Involves reports whether docID is one of the report's documents.
func (r *Report) Involves(docID string) bool {
	return (r.Document1 != nil && r.Document1.ID == docID) ||
		(r.Document2 != nil && r.Document2.ID == docID)
}

// Sink receives a run's updates. Implementations are safe for concurrent use
// and every method returns apperrors.ErrReportNotFound for an unknown id.
type Sink interface {
	UpdateStatus(ctx context.Context, id string, status Status) error
	// UpdateResults stores a comparison result and completes the report.
	UpdateResults(ctx context.Context, id string, res compare.Result) error
	// UpdateSourceResult records one checked source. The report completes
	// once every requested source has been recorded.
	UpdateSourceResult(ctx context.Context, id, source string, res sources.Result, progress, score float64) error
	Fail(ctx context.Context, id, reason string) error
}

// Store persists reports.
type Store interface {
	Sink
	Create(ctx context.Context, r *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	// ListByUser pages the user's reports newest first; page starts at 1.
	ListByUser(ctx context.Context, userID string, page, perPage int) ([]*Report, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	// ListByDocument returns the user's reports involving docID, newest first.
	ListByDocument(ctx context.Context, userID, docID string) ([]*Report, error)
	Delete(ctx context.Context, id string) error
}

// The mutations below are shared by every Store so their semantics cannot
// drift between backends.

func (r *Report) setStatus(s Status) {
	if r.Status.Terminal() {
		return
	}
	r.Status = s
	if s == StatusCompleted {
		r.Progress = 100
	}
}

func (r *Report) setResults(res compare.Result) {
	if r.Status.Terminal() {
		return
	}
	r.Results = &res
	r.SimilarityScore = res.Scores.Percentage
	r.MatchedContent = append([]matcher.Match{}, res.Matches...)
	r.Status = StatusCompleted
	r.Progress = 100
	r.Error = ""
}

func (r *Report) setSourceResult(source string, res sources.Result, progress, score float64) {
	if r.Status.Terminal() {
		return
	}
	if r.SourceResults == nil {
		r.SourceResults = map[string]sources.Result{}
	}
	if _, seen := r.SourceResults[source]; !seen {
		r.SourcesChecked = append(r.SourcesChecked, source)
	}
	r.SourceResults[source] = res

	var matched []matcher.Match
	for _, name := range r.SourcesChecked {
		for _, c := range r.SourceResults[name].Matches {
			matched = append(matched, c.Matches...)
		}
	}
	if matched == nil {
		matched = []matcher.Match{}
	}
	r.MatchedContent = matched

	if progress > r.Progress {
		r.Progress = min(progress, 100)
	}
	if score > r.SimilarityScore {
		r.SimilarityScore = score
	}

	requested := len(sources.DefaultSources)
	if r.CheckOptions != nil {
		requested = len(r.CheckOptions.Sources)
	}
	if len(r.SourcesChecked) >= requested {
		r.Status = StatusCompleted
		r.Progress = 100
	} else if r.Status == StatusPending {
		r.Status = StatusProcessing
	}
}

func (r *Report) fail(reason string) {
	if r.Status == StatusCompleted {
		return
	}
	r.Status = StatusFailed
	r.Error = reason
}

func (r *Report) clone() *Report {
	cp := *r
	if r.Document1 != nil {
		d := *r.Document1
		cp.Document1 = &d
	}
	if r.Document2 != nil {
		d := *r.Document2
		cp.Document2 = &d
	}
	if r.Results != nil {
		res := *r.Results
		cp.Results = &res
	}
	if r.CheckOptions != nil {
		o := *r.CheckOptions
		o.Sources = append([]string(nil), r.CheckOptions.Sources...)
		cp.CheckOptions = &o
	}
	cp.MatchedContent = append([]matcher.Match{}, r.MatchedContent...)
	cp.SourcesChecked = append([]string{}, r.SourcesChecked...)
	cp.SourceResults = make(map[string]sources.Result, len(r.SourceResults))
	for k, v := range r.SourceResults {
		cp.SourceResults[k] = v
	}
	return &cp
}
