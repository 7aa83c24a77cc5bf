package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ABNmmd/PFE-FSA/internal/embedding"
	"github.com/ABNmmd/PFE-FSA/pkg/postgres"
	"github.com/ABNmmd/PFE-FSA/pkg/redis"
)

func newCacheCmd(o *options) *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Manage the embedding cache",
	}
	cache.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Delete every cached embedding from Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := redis.NewClient(o.cfg.Redis)
			if err != nil {
				return err
			}
			defer rdb.Close()
			deleted, err := embedding.NewCachedEncoder(nil, rdb, o.cfg.Embedding.Model, o.cfg.Redis.CacheTTL, nil).
				Invalidate(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Deleted %d cached embeddings.\n", deleted)
			return nil
		},
	})
	return cache
}

func newMigrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := postgres.New(o.cfg.Postgres)
			if err != nil {
				return fmt.Errorf("connecting to postgres: %w", err)
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Schema is up to date on %s:%d/%s.\n",
				o.cfg.Postgres.Host, o.cfg.Postgres.Port, o.cfg.Postgres.Database)
			return nil
		},
	}
}
