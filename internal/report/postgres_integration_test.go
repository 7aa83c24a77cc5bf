//go:build integration

package report

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/matcher"
	"github.com/ABNmmd/PFE-FSA/internal/similarity"
	"github.com/ABNmmd/PFE-FSA/pkg/config"
	apperrors "github.com/ABNmmd/PFE-FSA/pkg/errors"
	"github.com/ABNmmd/PFE-FSA/pkg/postgres"
)

// Run with: go test -tags=integration ./internal/report/...
func startPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "plagiarism",
				"POSTGRES_PASSWORD": "plagiarism",
				"POSTGRES_DB":       "plagiarism",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)
	p, _ := strconv.Atoi(port.Port())

	db, err := postgres.New(config.PostgresConfig{
		Host:         host,
		Port:         p,
		Database:     "plagiarism",
		User:         "plagiarism",
		Password:     "plagiarism",
		SSLMode:      "disable",
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	s := NewPostgresStore(startPostgres(t))

	cmp := NewComparison("u1", docA, docB, "tfidf")
	require.NoError(t, s.Create(ctx, cmp))
	require.NoError(t, s.UpdateStatus(ctx, cmp.ID, StatusProcessing))
	require.NoError(t, s.UpdateResults(ctx, cmp.ID, compare.Result{
		Scores:  similarity.Result{Percentage: 88, GlobalScore: 0.88},
		Matches: []matcher.Match{{Text1: "a", Text2: "b", Similarity: 0.9, Position1: 1}},
	}))
	got, err := s.Get(ctx, cmp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 88.0, got.SimilarityScore)
	require.NotNil(t, got.Results)
	require.Len(t, got.MatchedContent, 1)
	assert.Equal(t, 1, got.MatchedContent[0].Position1)
	assert.Equal(t, docB, got.Document2)

	check := NewCheck("u1", docA, "tfidf", CheckOptions{Sources: []string{"user_documents"}, Sensitivity: "high"})
	require.NoError(t, s.Create(ctx, check))
	require.NoError(t, s.UpdateSourceResult(ctx, check.ID, "user_documents", sourceResult(0.5, "m"), 100, 50))
	got, err = s.Get(ctx, check.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "high", got.CheckOptions.Sensitivity)
	assert.Equal(t, 1, got.SourceResults["user_documents"].MatchesFound)
	assert.Nil(t, got.Document2)

	n, err := s.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := s.ListByUser(ctx, "u1", 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	byDoc, err := s.ListByDocument(ctx, "u1", "b")
	require.NoError(t, err)
	require.Len(t, byDoc, 1)
	assert.Equal(t, cmp.ID, byDoc[0].ID)

	require.NoError(t, s.Delete(ctx, cmp.ID))
	_, err = s.Get(ctx, cmp.ID)
	assert.ErrorIs(t, err, apperrors.ErrReportNotFound)
	assert.ErrorIs(t, s.Fail(ctx, cmp.ID, "x"), apperrors.ErrReportNotFound)
}
