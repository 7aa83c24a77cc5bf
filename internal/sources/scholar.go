package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ABNmmd/PFE-FSA/internal/extract"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
	"github.com/ABNmmd/PFE-FSA/pkg/resilience"
)

// Paper is one literature search hit.
type Paper struct {
	ID          string
	Title       string
	Abstract    string
	URL         string
	DownloadURL string
	Year        int
	Authors     []string
}

// AcademicSearcher queries one literature index.
type AcademicSearcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Paper, error)
}

// SemanticScholar queries the Semantic Scholar Graph API.
type SemanticScholar struct {
	baseURL string
	client  *http.Client
	guard   *guard
}

// NewSemanticScholar creates a client rooted at baseURL, for example
// https://api.semanticscholar.org/graph/v1.
func NewSemanticScholar(baseURL string, rps float64, timeout time.Duration, m *metrics.Metrics) *SemanticScholar {
	return &SemanticScholar{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
		guard:   newGuard("semantic-scholar", rps, timeout, m),
	}
}

func (s *SemanticScholar) Name() string { return "semantic_scholar" }

type scholarResponse struct {
	Total int `json:"total"`
	Data  []struct {
		PaperID       string `json:"paperId"`
		Title         string `json:"title"`
		Abstract      string `json:"abstract"`
		URL           string `json:"url"`
		Year          int    `json:"year"`
		OpenAccessPDF *struct {
			URL string `json:"url"`
		} `json:"openAccessPdf"`
		Authors []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"data"`
}

// Search runs a paper search.
func (s *SemanticScholar) Search(ctx context.Context, query string, limit int) ([]Paper, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", "title,abstract,url,year,authors,openAccessPdf")
	endpoint := s.baseURL + "/paper/search?" + q.Encode()

	return call(ctx, s.guard, func(ctx context.Context) ([]Paper, error) {
		body, _, err := get(ctx, s.client, endpoint, "application/json")
		if err != nil {
			return nil, err
		}
		var resp scholarResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("decoding semantic scholar response: %w", err))
		}
		papers := make([]Paper, 0, len(resp.Data))
		for _, d := range resp.Data {
			p := Paper{
				ID:       "s2:" + d.PaperID,
				Title:    d.Title,
				Abstract: d.Abstract,
				URL:      d.URL,
				Year:     d.Year,
			}
			if d.OpenAccessPDF != nil {
				p.DownloadURL = d.OpenAccessPDF.URL
			}
			for _, a := range d.Authors {
				p.Authors = append(p.Authors, a.Name)
			}
			papers = append(papers, p)
		}
		return papers, nil
	})
}

// Arxiv queries the arXiv export API, which answers in Atom.
type Arxiv struct {
	baseURL string
	client  *http.Client
	guard   *guard
}

// NewArxiv creates a client for baseURL, for example
// http://export.arxiv.org/api/query.
func NewArxiv(baseURL string, rps float64, timeout time.Duration, m *metrics.Metrics) *Arxiv {
	return &Arxiv{
		baseURL: baseURL,
		client:  http.DefaultClient,
		guard:   newGuard("arxiv", rps, timeout, m),
	}
}

func (a *Arxiv) Name() string { return "arxiv" }

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Rel   string `xml:"rel,attr"`
		Type  string `xml:"type,attr"`
		Title string `xml:"title,attr"`
	} `xml:"link"`
}

// Search runs an all-fields query.
func (a *Arxiv) Search(ctx context.Context, query string, limit int) ([]Paper, error) {
	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(limit))
	endpoint := a.baseURL + "?" + q.Encode()

	return call(ctx, a.guard, func(ctx context.Context) ([]Paper, error) {
		body, _, err := get(ctx, a.client, endpoint, "application/atom+xml")
		if err != nil {
			return nil, err
		}
		var feed atomFeed
		if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&feed); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("decoding arxiv feed: %w", err))
		}
		papers := make([]Paper, 0, len(feed.Entries))
		for _, e := range feed.Entries {
			p := Paper{
				ID:       "arxiv:" + e.ID[strings.LastIndex(e.ID, "/")+1:],
				Title:    strings.Join(strings.Fields(e.Title), " "),
				Abstract: strings.Join(strings.Fields(e.Summary), " "),
				URL:      e.ID,
			}
			if len(e.Published) >= 4 {
				p.Year, _ = strconv.Atoi(e.Published[:4])
			}
			for _, au := range e.Authors {
				p.Authors = append(p.Authors, au.Name)
			}
			for _, l := range e.Links {
				switch {
				case l.Rel == "alternate" && l.Href != "":
					p.URL = l.Href
				case l.Title == "pdf" || l.Type == "application/pdf":
					p.DownloadURL = l.Href
				}
			}
			papers = append(papers, p)
		}
		return papers, nil
	})
}

// FullTextFetcher downloads a paper and extracts its text. HTML and plain
// text are supported; other content types are an extraction error.
type FullTextFetcher struct {
	client *http.Client
	guard  *guard
}

// NewFullTextFetcher creates a fetcher.
func NewFullTextFetcher(rps float64, timeout time.Duration, m *metrics.Metrics) *FullTextFetcher {
	return &FullTextFetcher{
		client: http.DefaultClient,
		guard:  newGuard("full-text", rps, timeout, m),
	}
}

// Fetch returns the text behind rawURL.
func (f *FullTextFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	return call(ctx, f.guard, func(ctx context.Context) (string, error) {
		body, ctype, err := get(ctx, f.client, rawURL, "text/html, text/plain;q=0.9")
		if err != nil {
			return "", err
		}
		ctype = strings.ToLower(ctype)
		switch {
		case strings.Contains(ctype, "html"):
			text, err := extract.HTMLText(bytes.NewReader(body))
			if err != nil {
				return "", resilience.Permanent(err)
			}
			return text, nil
		case strings.HasPrefix(ctype, "text/"):
			return extract.Text(body, "txt"), nil
		default:
			return "", resilience.Permanent(fmt.Errorf("unsupported full text content type %q", ctype))
		}
	})
}
