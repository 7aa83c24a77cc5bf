package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
	"github.com/ABNmmd/PFE-FSA/pkg/resilience"
)

// GoogleSearcher queries a Google Programmable Search engine.
type GoogleSearcher struct {
	svc      *customsearch.Service
	engineID string
	num      int64
	guard    *guard
}

// NewGoogleSearcher builds the Custom Search client. An empty Endpoint uses
// Google's public endpoint.
func NewGoogleSearcher(ctx context.Context, cfg config.WebSearchConfig, m *metrics.Metrics) (*GoogleSearcher, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, fmt.Errorf("web search needs an api key and engine id")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating custom search service: %w", err)
	}
	num := int64(cfg.ResultsPerQuery)
	if num <= 0 || num > 10 {
		num = 10
	}
	return &GoogleSearcher{
		svc:      svc,
		engineID: cfg.EngineID,
		num:      num,
		guard:    newGuard("google-search", cfg.RequestsPerSecond, cfg.Timeout, m),
	}, nil
}

// Search runs one query and returns its items.
func (g *GoogleSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return call(ctx, g.guard, func(ctx context.Context) ([]SearchResult, error) {
		resp, err := g.svc.Cse.List().Cx(g.engineID).Q(query).Num(g.num).Context(ctx).Do()
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && gerr.Code >= 400 && gerr.Code < 500 &&
				gerr.Code != http.StatusTooManyRequests {
				return nil, resilience.Permanent(err)
			}
			return nil, err
		}
		out := make([]SearchResult, 0, len(resp.Items))
		for _, it := range resp.Items {
			out = append(out, SearchResult{URL: it.Link, Title: it.Title, Snippet: it.Snippet})
		}
		return out, nil
	})
}
