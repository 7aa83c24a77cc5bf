//go:build integration

// Package integration verifies the report service end to end in process: the
// real router and checker over PostgreSQL-backed stores, with runs executed
// by the goroutine dispatcher.
//
// Run with:
//
//	go test -v -tags=integration ./test/integration/...
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABNmmd/PFE-FSA/internal/api"
	"github.com/ABNmmd/PFE-FSA/internal/app"
	"github.com/ABNmmd/PFE-FSA/internal/ratelimit"
	"github.com/ABNmmd/PFE-FSA/internal/worker"
	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/postgres"
)

const essay = "Coral reefs support roughly a quarter of all marine species despite covering a tiny fraction of the ocean floor. " +
	"Rising sea temperatures trigger bleaching events that expel the symbiotic algae corals depend upon. " +
	"Conservation programmes now transplant heat tolerant coral fragments onto damaged reef sections. " +
	"Local fishing restrictions give herbivorous fish time to graze the algae that smother young colonies."

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Postgres = config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "plagiarism_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "plagiarism"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
	cfg.Embedding.Provider = ""
	cfg.Embedding.Cache = false
	return cfg
}

// newService starts the API over PostgreSQL, skipping when it is unreachable.
func newService(t *testing.T, submissionsPerMinute int) (*httptest.Server, *worker.GoroutineDispatcher) {
	t.Helper()
	cfg := testConfig()
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	db.Close()

	ctx := context.Background()
	deps, err := app.Open(ctx, cfg, nil, false)
	require.NoError(t, err)
	t.Cleanup(func() { deps.Close() })

	chk, err := deps.NewChecker(ctx)
	require.NoError(t, err)
	d := worker.NewGoroutineDispatcher(chk, deps.Reports, 2)
	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.Shutdown(sctx)
	})

	limiter := ratelimit.New(submissionsPerMinute, time.Minute)
	t.Cleanup(limiter.Close)

	h := api.New(deps.Docs, deps.Reports, chk, d, cfg.Server.MaxUploadBytes)
	srv := httptest.NewServer(api.NewRouter(h, api.RouterOptions{Health: deps.Health, Limiter: limiter}))
	t.Cleanup(srv.Close)
	return srv, d
}

func uniqueUser() string {
	return fmt.Sprintf("it-user-%d", time.Now().UnixNano())
}

func upload(t *testing.T, srv *httptest.Server, user, name, content string) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	fw.Write([]byte(content))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(api.UserIDHeader, user)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	return doc["id"].(string)
}

func call(t *testing.T, srv *httptest.Server, method, path, user string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(api.UserIDHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestReadiness(t *testing.T) {
	srv, _ := newService(t, 0)
	status, body := call(t, srv, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", body["status"])

	status, _ = call(t, srv, http.MethodGet, "/api/v1/reports", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestComparisonLifecycle(t *testing.T) {
	srv, d := newService(t, 0)
	user := uniqueUser()
	a := upload(t, srv, user, "essay.txt", essay)
	b := upload(t, srv, user, "copy.txt", essay)

	status, body := call(t, srv, http.MethodPost, "/api/v1/reports/compare", user,
		map[string]string{"document1_id": a, "document2_id": b})
	require.Equal(t, http.StatusAccepted, status, body)
	id := body["report_id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	status, rep := call(t, srv, http.MethodGet, "/api/v1/reports/"+id, user, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", rep["status"])
	assert.InDelta(t, 100.0, rep["similarity_score"], 1e-3)
	assert.NotEmpty(t, rep["matched_content"])

	status, _ = call(t, srv, http.MethodGet, "/api/v1/reports/"+id, "someone-else", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, srv, http.MethodDelete, "/api/v1/reports/"+id, user, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestCheckLifecycle(t *testing.T) {
	srv, d := newService(t, 0)
	user := uniqueUser()
	target := upload(t, srv, user, "essay.txt", essay)
	upload(t, srv, user, "older.txt", essay)

	status, body := call(t, srv, http.MethodPost, "/api/v1/reports/check", user,
		map[string]any{"document_id": target, "sources": []string{"user_documents"}, "sensitivity": "medium"})
	require.Equal(t, http.StatusAccepted, status, body)
	id := body["report_id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	status, st := call(t, srv, http.MethodGet, "/api/v1/reports/check/status/"+id, user, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", st["status"])
	assert.EqualValues(t, 100, st["progress"])
	assert.Contains(t, st["source_results"], "user_documents")

	status, list := call(t, srv, http.MethodGet, "/api/v1/reports/document/"+target, user, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, list["total"])
}

func TestSubmissionThrottling(t *testing.T) {
	srv, d := newService(t, 2)
	user := uniqueUser()
	doc := upload(t, srv, user, "essay.txt", essay)

	var throttled int
	for i := 0; i < 4; i++ {
		status, _ := call(t, srv, http.MethodPost, "/api/v1/reports/check", user,
			map[string]any{"document_id": doc, "sources": []string{"user_documents"}})
		if status == http.StatusTooManyRequests {
			throttled++
		}
	}
	assert.Equal(t, 2, throttled)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
