package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/document"
	"github.com/ABNmmd/PFE-FSA/internal/similarity"
	"github.com/ABNmmd/PFE-FSA/internal/textproc"
	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/resilience"
)

const (
	astronomy = "Astronomers observed distant galaxies through powerful telescopes last winter. " +
		"Spectral measurements revealed unusual hydrogen emissions near bright quasars. " +
		"Several researchers proposed models describing dark matter halos around spiral systems. " +
		"Further observations will require orbital instruments with sensitive detectors. " +
		"Funding agencies approved additional proposals supporting radio interferometry projects."

	cooking = "Grandmother baked fresh bread every Sunday morning using sourdough starter. " +
		"Ripe tomatoes, basil leaves and olive oil made simple summer salads delicious. " +
		"Children learned kneading dough while flour covered kitchen counters completely. " +
		"Homemade jam preserved strawberries harvested from backyard gardens. " +
		"Family dinners often ended with warm apple pie served alongside vanilla cream."
)

func newRequest(t *testing.T, text string) Request {
	t.Helper()
	c := compare.New(similarity.NewEngine(similarity.Config{Method: similarity.MethodTFIDF}, nil))
	target, err := c.PrepareTarget(context.Background(), text)
	require.NoError(t, err)
	return Request{
		Comparator: c,
		Target:     target,
		Text:       text,
		UserID:     "u1",
		DocumentID: "target",
		Threshold:  0.70,
	}
}

func TestKnown(t *testing.T) {
	assert.Equal(t, []string{NameUserDocuments, NameWeb, NameAcademic},
		Known([]string{"academic", "web", "bogus", "user_documents"}))
	assert.Equal(t, DefaultSources, Known(nil))
	assert.Equal(t, DefaultSources, Known([]string{"bogus"}))
}

func TestOwnedDocuments(t *testing.T) {
	ctx := context.Background()
	target := document.New("u1", "target.txt", []byte(astronomy))
	target.ID = "target"
	cp := document.New("u1", "copy.txt", []byte(astronomy))
	unrelated := document.New("u1", "recipes.txt", []byte(cooking))
	blank := document.New("u1", "blank.txt", []byte("   "))
	foreign := document.New("u2", "stolen.txt", []byte(astronomy))
	store := document.NewMemoryStore(target, cp, unrelated, blank, foreign)

	res, err := NewOwnedDocuments(store, nil).Check(ctx, newRequest(t, astronomy))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.SimilarityScore, 1e-6)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, cp.ID, res.Matches[0].SourceID)
	assert.Equal(t, "copy.txt", res.Matches[0].Title)
	assert.Positive(t, res.MatchesFound)
	assert.Equal(t, len(res.Matches[0].Matches), res.MatchesFound)
}

func TestOwnedDocumentsNoCandidates(t *testing.T) {
	target := document.New("u1", "target.txt", []byte(astronomy))
	target.ID = "target"
	store := document.NewMemoryStore(target)

	res, err := NewOwnedDocuments(store, nil).Check(context.Background(), newRequest(t, astronomy))
	require.NoError(t, err)
	assert.Zero(t, res.SimilarityScore)
	assert.Zero(t, res.MatchesFound)
	assert.NotNil(t, res.Matches)
	assert.Empty(t, res.Matches)
}

type fakeSearcher struct {
	queries []string
	results []SearchResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, q string) ([]SearchResult, error) {
	f.queries = append(f.queries, q)
	return f.results, f.err
}

func TestQueries(t *testing.T) {
	long := strings.Repeat("word ", 80)
	chunks := []string{"too short", strings.Repeat("b", 60), long, strings.Repeat("c", 70), strings.Repeat("d", 55)}
	got := Queries(chunks, 3)
	require.Len(t, got, 3)
	assert.LessOrEqual(t, textproc.RuneLen(got[0]), QueryLength)
	assert.Equal(t, strings.TrimSpace(strings.Repeat("word ", 50)), got[0])
	assert.Equal(t, strings.Repeat("c", 70), got[1])
	assert.Equal(t, strings.Repeat("b", 60), got[2])
}

func TestTruncateRunesKeepsWholeWords(t *testing.T) {
	assert.Equal(t, "alpha beta", truncateRunes("alpha beta gamma", 13))
	assert.Equal(t, "alpha beta", truncateRunes("alpha beta gamma", 11))
	assert.Equal(t, "alpha", truncateRunes("alpha beta", 7))
	assert.Equal(t, "abcde", truncateRunes("abcdefgh ij", 5))
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "élève", truncateRunes("élève école", 8))
}

func TestWebDedupesByURL(t *testing.T) {
	ctx := context.Background()
	req := newRequest(t, astronomy)
	require.NotEmpty(t, req.Target.Chunks)
	exact := req.Target.Chunks[len(req.Target.Chunks)-1]
	require.LessOrEqual(t, textproc.RuneLen(exact), 200)

	fs := &fakeSearcher{results: []SearchResult{
		{URL: "https://a.example/1", Title: "Copied", Snippet: exact},
		{URL: "https://a.example/1", Title: "Copied", Snippet: cooking},
		{URL: "https://b.example/2", Title: "Short", Snippet: "tiny"},
	}}
	res, err := NewWeb(fs, 3, nil).Check(ctx, req)
	require.NoError(t, err)

	assert.NotEmpty(t, fs.queries)
	assert.LessOrEqual(t, len(fs.queries), 3)
	for _, q := range fs.queries {
		assert.LessOrEqual(t, textproc.RuneLen(q), QueryLength)
	}

	want := req.Comparator.CompareTarget(ctx, req.Target, exact, nil).Scores.Percentage / 100
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "https://a.example/1", res.Matches[0].URL)
	assert.InDelta(t, want, res.Matches[0].Similarity, 1e-9)
	assert.InDelta(t, want, res.SimilarityScore, 1e-9)
	assert.NotEmpty(t, res.Matches[0].Matches)
}

func TestWebSearchFailureIsSkipped(t *testing.T) {
	fs := &fakeSearcher{err: errors.New("quota exceeded")}
	res, err := NewWeb(fs, 3, nil).Check(context.Background(), newRequest(t, astronomy))
	require.NoError(t, err)
	assert.Zero(t, res.SimilarityScore)
	assert.Empty(t, res.Matches)
}

func TestStatusErrorPermanence(t *testing.T) {
	assert.NoError(t, statusError(&http.Response{StatusCode: 200}))
	assert.True(t, resilience.IsPermanent(statusError(&http.Response{StatusCode: 404})))
	assert.False(t, resilience.IsPermanent(statusError(&http.Response{StatusCode: 429})))
	assert.False(t, resilience.IsPermanent(statusError(&http.Response{StatusCode: 503})))
}

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2101.00001v1</id>
    <published>2021-01-01T00:00:00Z</published>
    <title>Home
      Baking</title>
    <summary>%s</summary>
    <author><name>A. Baker</name></author>
    <link href="http://arxiv.org/abs/2101.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="%s" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func TestAcademic(t *testing.T) {
	ctx := context.Background()
	req := newRequest(t, astronomy)

	var fullTextHits atomic.Int32
	full := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fullTextHits.Add(1)
		if strings.HasSuffix(r.URL.Path, ".pdf") {
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4"))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><p>%s</p><script>x()</script></body></html>", astronomy)
	}))
	defer full.Close()

	var scholarQuery string
	scholar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/search", r.URL.Path)
		scholarQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"total":1,"data":[{"paperId":"abc","title":"Galaxy Surveys","abstract":%q,`+
			`"url":"https://s2.example/abc","year":2020,"authors":[{"name":"V. Rubin"}],`+
			`"openAccessPdf":{"url":%q}}]}`, req.Target.Chunks[len(req.Target.Chunks)-1], full.URL+"/paper.html")
	}))
	defer scholar.Close()

	var arxivQuery string
	arxiv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arxivQuery = r.URL.Query().Get("search_query")
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprintf(w, arxivFeed, cooking, full.URL+"/paper.pdf")
	}))
	defer arxiv.Close()

	src := NewAcademicFromConfig(config.AcademicConfig{
		SemanticScholarURL: scholar.URL,
		ArxivURL:           arxiv.URL,
		MaxResults:         5,
		FullTextCandidates: 3,
	}, 0.8, nil)

	res, err := src.Check(ctx, req)
	require.NoError(t, err)

	assert.NotEmpty(t, scholarQuery)
	assert.True(t, strings.HasPrefix(arxivQuery, "all:"))
	assert.EqualValues(t, 2, fullTextHits.Load())

	require.NotEmpty(t, res.Matches)
	top := res.Matches[0]
	assert.Equal(t, "s2:abc", top.SourceID)
	assert.Equal(t, "Galaxy Surveys", top.Title)
	assert.InDelta(t, 1.0, top.Similarity, 1e-6)
	assert.InDelta(t, 1.0, res.SimilarityScore, 1e-6)
	for _, m := range res.Matches {
		assert.NotEqual(t, "arxiv:2101.00001v1", m.SourceID)
	}
}

func TestAcademicProviderFailure(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer failing.Close()

	arxiv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, arxivFeed, astronomy, failing.URL+"/paper.pdf")
	}))
	defer arxiv.Close()

	src := NewAcademic([]AcademicSearcher{
		NewSemanticScholar(failing.URL, 0, 0, nil),
		NewArxiv(arxiv.URL, 0, 0, nil),
	}, nil)

	res, err := src.Check(context.Background(), newRequest(t, astronomy))
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "arxiv:2101.00001v1", res.Matches[0].SourceID)
	assert.Equal(t, "Home Baking", res.Matches[0].Title)
	assert.Equal(t, "http://arxiv.org/abs/2101.00001v1", res.Matches[0].URL)
}

func TestArxivParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("max_results"))
		fmt.Fprintf(w, arxivFeed, "A   summary\n  spanning lines.", "http://arxiv.org/pdf/2101.00001v1")
	}))
	defer srv.Close()

	papers, err := NewArxiv(srv.URL, 0, 0, nil).Search(context.Background(), "baking bread", 3)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	p := papers[0]
	assert.Equal(t, "A summary spanning lines.", p.Abstract)
	assert.Equal(t, 2021, p.Year)
	assert.Equal(t, []string{"A. Baker"}, p.Authors)
	assert.Equal(t, "http://arxiv.org/pdf/2101.00001v1", p.DownloadURL)
}

func TestFullTextFetcherRejectsBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	_, err := NewFullTextFetcher(0, 0, nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err) || strings.Contains(err.Error(), "unsupported"))
}

func TestGoogleSearcher(t *testing.T) {
	var gotQuery, gotEngine string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotEngine = r.URL.Query().Get("cx")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[{"link":"https://x.example","title":"X","snippet":"some snippet text"}]}`)
	}))
	defer srv.Close()

	gs, err := NewGoogleSearcher(context.Background(), config.WebSearchConfig{
		APIKey:          "key",
		EngineID:        "engine",
		Endpoint:        srv.URL + "/",
		ResultsPerQuery: 5,
	}, nil)
	require.NoError(t, err)

	hits, err := gs.Search(context.Background(), "distant galaxies")
	require.NoError(t, err)
	assert.Equal(t, "distant galaxies", gotQuery)
	assert.Equal(t, "engine", gotEngine)
	assert.Equal(t, []SearchResult{{URL: "https://x.example", Title: "X", Snippet: "some snippet text"}}, hits)

	_, err = NewGoogleSearcher(context.Background(), config.WebSearchConfig{}, nil)
	assert.Error(t, err)
}
