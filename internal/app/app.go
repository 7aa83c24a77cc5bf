// Package app wires configuration into the running service: stores, the
// embedding backend, comparators and sources. The API server, the Kafka
// worker and the CLI all build their checker here so they behave the same.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ABNmmd/PFE-FSA/internal/checker"
	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/document"
	"github.com/ABNmmd/PFE-FSA/internal/embedding"
	"github.com/ABNmmd/PFE-FSA/internal/report"
	"github.com/ABNmmd/PFE-FSA/internal/similarity"
	"github.com/ABNmmd/PFE-FSA/internal/sources"
	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/health"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
	"github.com/ABNmmd/PFE-FSA/pkg/postgres"
	"github.com/ABNmmd/PFE-FSA/pkg/redis"
)

// Deps holds the shared infrastructure of one process.
type Deps struct {
	Config  *config.Config
	DB      *postgres.Client
	Redis   *redis.Client
	Docs    document.Store
	Reports report.Store
	Metrics *metrics.Metrics
	Health  *health.Checker
	Encoder similarity.Encoder
	// Cache is set when embeddings are served through Redis.
	Cache *embedding.CachedEncoder

	closers []func() error
}

// Open connects to PostgreSQL (running migrations) and Redis. With memory
// set the stores live in process and neither database is contacted; Redis
// stays optional and a failed connection only disables the embedding cache.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics, memory bool) (*Deps, error) {
	d := &Deps{Config: cfg, Metrics: m, Health: health.NewChecker()}

	if memory {
		d.Docs = document.NewMemoryStore()
		d.Reports = report.NewMemoryStore()
		d.Health.Register("storage", health.Static(health.StatusUp, "in-memory"))
	} else {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		d.closers = append(d.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("migrating postgres: %w", err)
		}
		d.DB = db
		d.Docs = document.NewPostgresStore(db)
		d.Reports = report.NewPostgresStore(db)
		d.Health.Register("postgres", health.PingCheck(db, true))
	}

	d.Redis = d.connectRedis()
	d.Encoder = d.buildEncoder()
	return d, nil
}

func (d *Deps) connectRedis() *redis.Client {
	cfg := d.Config
	if !cfg.Embedding.Cache || cfg.Redis.Addr == "" {
		d.Health.Register("redis", health.Static(health.StatusUp, "not used"))
		return nil
	}
	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, embedding cache disabled", "addr", cfg.Redis.Addr, "error", err)
		d.Health.Register("redis", health.Static(health.StatusDegraded, "embedding cache disabled"))
		return nil
	}
	d.closers = append(d.closers, rdb.Close)
	d.Health.Register("redis", health.PingCheck(rdb, false))
	return rdb
}

// buildEncoder creates the embedding backend when the configuration asks
// for one. A provider that cannot be created leaves the encoder nil and
// comparisons fall back to the lexical method.
func (d *Deps) buildEncoder() similarity.Encoder {
	cfg := d.Config
	if cfg.Detection.Method != similarity.MethodEmbeddings && cfg.Embedding.Provider == "" {
		return nil
	}
	emb, err := embedding.NewEmbedder(cfg.Embedding)
	if err != nil {
		slog.Warn("embedding provider unavailable, using lexical similarity", "provider", cfg.Embedding.Provider, "error", err)
		d.Health.Register("embeddings", health.Static(health.StatusDegraded, err.Error()))
		return nil
	}
	d.Health.Register("embeddings", health.Static(health.StatusUp, cfg.Embedding.Provider+"/"+emb.Model()))
	if d.Redis == nil {
		return emb
	}
	d.Cache = embedding.NewCachedEncoder(emb, d.Redis, emb.Model(), cfg.Redis.CacheTTL, d.Metrics)
	return d.Cache
}

// NewChecker builds the checker with a comparator per available method and
// every source the configuration enables.
func (d *Deps) NewChecker(ctx context.Context) (*checker.Checker, error) {
	cfg := d.Config
	def, err := compare.NewFromConfig(cfg, "", d.Encoder, d.Metrics)
	if err != nil {
		return nil, err
	}
	lexical, err := compare.NewFromConfig(cfg, similarity.MethodTFIDF, nil, d.Metrics)
	if err != nil {
		return nil, err
	}
	opts := []checker.Option{
		checker.WithMetrics(d.Metrics),
		checker.WithComparator(similarity.MethodTFIDF, lexical),
		checker.WithSource(sources.NewOwnedDocuments(d.Docs, d.Metrics)),
	}
	if d.Encoder != nil {
		semantic, err := compare.NewFromConfig(cfg, similarity.MethodEmbeddings, d.Encoder, d.Metrics)
		if err != nil {
			return nil, err
		}
		opts = append(opts, checker.WithComparator(similarity.MethodEmbeddings, semantic))
	}

	if cfg.WebSearch.Enabled {
		searcher, err := sources.NewGoogleSearcher(ctx, cfg.WebSearch, d.Metrics)
		if err != nil {
			slog.Warn("web source disabled", "error", err)
		} else {
			opts = append(opts, checker.WithSource(sources.NewWeb(searcher, cfg.WebSearch.MaxQueries, d.Metrics)))
		}
	}
	if cfg.Academic.Enabled {
		opts = append(opts, checker.WithSource(
			sources.NewAcademicFromConfig(cfg.Academic, cfg.Detection.AcademicThresholdFactor, d.Metrics),
		))
	}

	return checker.New(d.Docs, d.Reports, def, opts...), nil
}

// Close releases connections in reverse order of opening.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}
