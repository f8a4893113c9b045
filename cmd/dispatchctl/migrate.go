package main

import (
	"regexp"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dispatch-service/internal/config"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/repository/postgresql"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Applies the embedded schema to postgres.dsn. Every statement is idempotent, so migrate may run on every deploy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return errors.Newf("migrate needs store.driver=%s, got %s", config.DriverPostgres, cfg.Store.Driver)
			}

			log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			pool, err := postgresql.NewPool(cmd.Context(), cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgresql.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			log.Info("schema applied", zap.String("postgres_dsn", redactDSN(cfg.Postgres.DSN)))
			return nil
		},
	}
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// redactDSN masks the password of a URL-style DSN: user:pass@ -> user:****@.
func redactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}
