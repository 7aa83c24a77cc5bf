package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/document"
	"github.com/ABNmmd/PFE-FSA/internal/extract"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
)

// OwnedDocuments checks a target against the owner's other documents.
type OwnedDocuments struct {
	docs    document.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewOwnedDocuments creates the user_documents source.
func NewOwnedDocuments(docs document.Store, m *metrics.Metrics) *OwnedDocuments {
	return &OwnedDocuments{
		docs:    docs,
		metrics: m,
		logger:  logger.WithComponent("source-user-documents"),
	}
}

func (o *OwnedDocuments) Name() string { return NameUserDocuments }

// Check compares the target with every other document of the owner.
func (o *OwnedDocuments) Check(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	defer func() { o.metrics.ObserveSource(NameUserDocuments, time.Since(start)) }()

	docs, err := o.docs.ListByOwner(ctx, req.UserID)
	if err != nil {
		return EmptyResult(), fmt.Errorf("listing documents of %s: %w", req.UserID, err)
	}
	col := newCollector()
	th := compare.Float(req.Threshold)
	for _, d := range docs {
		if d.ID == req.DocumentID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return col.result(), err
		}
		text := extract.Text(d.Content, d.FileType)
		if strings.TrimSpace(text) == "" {
			o.logger.Debug("skipping empty candidate", "document_id", d.ID)
			continue
		}
		r := req.Comparator.CompareTarget(ctx, req.Target, text, th)
		col.add(d.ID, d.Name, "", r, req.Threshold)
	}
	res := col.result()
	o.logger.Info("user documents checked",
		"document_id", req.DocumentID,
		"candidates", len(docs),
		"score", res.SimilarityScore,
		"matches", res.MatchesFound,
	)
	return res, nil
}
