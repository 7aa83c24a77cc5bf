// Command loadtest drives a running plagiarismd with a mix of report
// submissions and polling and prints latency percentiles per operation.
//
// Each worker acts as its own user: it uploads a small corpus, then loops
// over compare and check submissions while polling status and listing
// reports. Submissions are subject to the per-user throttle, so 429s are
// counted separately from errors.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Corpus      []string
}

// opStats accumulates results for one kind of request.
type opStats struct {
	total     atomic.Int64
	success   atomic.Int64
	throttled atomic.Int64
	errors    atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (s *opStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	switch {
	case err != nil:
		s.errors.Add(1)
		return
	case status == http.StatusTooManyRequests:
		s.throttled.Add(1)
	case status >= 200 && status < 300:
		s.success.Add(1)
	default:
		s.errors.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

type Stats struct {
	mu  sync.Mutex
	ops map[string]*opStats
}

func (s *Stats) op(name string) *opStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ops == nil {
		s.ops = make(map[string]*opStats)
	}
	o, ok := s.ops[name]
	if !ok {
		o = &opStats{}
		s.ops[name] = o
	}
	return o
}

var corpus = []string{
	"Photosynthesis converts light energy into chemical energy stored in glucose molecules. " +
		"Chlorophyll pigments absorb mostly blue and red wavelengths while reflecting green light. " +
		"The Calvin cycle fixes atmospheric carbon dioxide using energy carried by ATP and NADPH.",
	"The printing press spread literacy across Europe within a few decades of its invention. " +
		"Cheaper books allowed scholars to compare texts and correct errors introduced by copyists. " +
		"Pamphlets carried religious and political arguments to audiences far beyond the universities.",
	"Photosynthesis converts light energy into chemical energy stored in sugar molecules. " +
		"Chlorophyll absorbs mostly blue and red light and reflects the green part of the spectrum. " +
		"Merchants in port cities kept ledgers that historians now use to trace medieval trade routes.",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the plagiarism service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Corpus:      corpus,
	}

	fmt.Println("=== Plagiarism Service Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Corpus:      %d documents per worker\n", len(cfg.Corpus))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

type worker struct {
	cfg    Config
	client *http.Client
	stats  *Stats
	user   string
	docs   []string
}

func runLoadTest(cfg Config) *Stats {
	stats := &Stats{}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	runID := time.Now().Unix()
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w := &worker{cfg: cfg, client: client, stats: stats, user: fmt.Sprintf("loadtest-%d-%d", runID, id)}
			w.run(ctx)
		}(i)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func (w *worker) run(ctx context.Context) {
	for i, text := range w.cfg.Corpus {
		if id := w.upload(ctx, fmt.Sprintf("doc-%d.txt", i), text); id != "" {
			w.docs = append(w.docs, id)
		}
	}
	if len(w.docs) < 2 {
		return
	}

	var reports []string
	for n := 0; ctx.Err() == nil; n++ {
		a, b := w.docs[n%len(w.docs)], w.docs[(n+1)%len(w.docs)]
		var id string
		if n%2 == 0 {
			id = w.submit(ctx, "compare", "/api/v1/reports/compare", map[string]any{"document1_id": a, "document2_id": b})
		} else {
			id = w.submit(ctx, "check", "/api/v1/reports/check", map[string]any{"document_id": a, "sources": []string{"user_documents"}})
		}
		if id != "" {
			reports = append(reports, id)
		}
		if len(reports) > 0 {
			w.get(ctx, "status", "/api/v1/reports/check/status/"+reports[n%len(reports)])
		}
		w.get(ctx, "list", "/api/v1/reports?per_page=10")
	}
}

func (w *worker) do(ctx context.Context, op string, req *http.Request) (*http.Response, []byte) {
	req = req.WithContext(ctx)
	req.Header.Set("X-User-ID", w.user)
	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			w.stats.op(op).record(time.Since(start), 0, err)
		}
		return nil, nil
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	w.stats.op(op).record(time.Since(start), resp.StatusCode, nil)
	return resp, body
}

func (w *worker) upload(ctx context.Context, name, text string) string {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", name)
	fw.Write([]byte(text))
	mw.Close()
	req, _ := http.NewRequest(http.MethodPost, w.cfg.BaseURL+"/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, body := w.do(ctx, "upload", req)
	if resp == nil || resp.StatusCode != http.StatusCreated {
		return ""
	}
	var doc struct {
		ID string `json:"id"`
	}
	json.Unmarshal(body, &doc)
	return doc.ID
}

func (w *worker) submit(ctx context.Context, op, path string, payload any) string {
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, w.cfg.BaseURL+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, body := w.do(ctx, op, req)
	if resp == nil || resp.StatusCode != http.StatusAccepted {
		return ""
	}
	var out struct {
		ReportID string `json:"report_id"`
	}
	json.Unmarshal(body, &out)
	return out.ReportID
}

func (w *worker) get(ctx context.Context, op, path string) {
	req, _ := http.NewRequest(http.MethodGet, w.cfg.BaseURL+path, nil)
	w.do(ctx, op, req)
}

func printReport(stats *Stats, duration time.Duration) {
	stats.mu.Lock()
	names := make([]string, 0, len(stats.ops))
	for name := range stats.ops {
		names = append(names, name)
	}
	stats.mu.Unlock()
	sort.Strings(names)

	var total int64
	for _, name := range names {
		o := stats.op(name)
		n := o.total.Load()
		total += n

		fmt.Printf("=== %s ===\n", name)
		fmt.Printf("Requests:     %d (%.2f/s)\n", n, float64(n)/duration.Seconds())
		fmt.Printf("Successful:   %d\n", o.success.Load())
		fmt.Printf("Throttled:    %d\n", o.throttled.Load())
		fmt.Printf("Errors:       %d\n", o.errors.Load())

		o.mu.Lock()
		latencies := make([]time.Duration, len(o.latencies))
		copy(latencies, o.latencies)
		o.mu.Unlock()
		if len(latencies) > 0 {
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			avg := sum / time.Duration(len(latencies))
			var sumSquared float64
			for _, l := range latencies {
				diff := float64(l - avg)
				sumSquared += diff * diff
			}
			fmt.Printf("Latency:      min %s  avg %s  p50 %s  p95 %s  p99 %s  max %s  stddev %s\n",
				latencies[0], avg,
				percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 99),
				latencies[len(latencies)-1],
				time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))),
			)
		}
		fmt.Println()
	}

	if total == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
