package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readingnook/internal/config"
	"readingnook/internal/logging"
)

func main() {
	config.LoadEnvFiles()

	logger, err := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("migrate failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	var dir string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the reading_nook Postgres schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", migrationsDir(), "directory holding the goose SQL migrations")

	withDB := func(run func(ctx context.Context, db *sql.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseDSN()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connect %s: %w", config.RedactDSN(dsn), err)
			}
			defer pool.Close()

			db := stdlib.OpenDBFromPool(pool)
			defer db.Close()

			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			logger.Info("running migrations", zap.String("cmd", cmd.Name()), zap.String("dir", dir), zap.String("dsn", config.RedactDSN(dsn)))
			return run(ctx, db)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, db *sql.DB) error {
				if err := goose.UpContext(ctx, db, dir); err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
				logger.Info("migrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, db *sql.DB) error {
				if err := goose.DownContext(ctx, db, dir); err != nil {
					return fmt.Errorf("roll back migration: %w", err)
				}
				logger.Info("migration rolled back")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the state of every migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, db *sql.DB) error {
				return goose.StatusContext(ctx, db, dir)
			}),
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Write a new empty SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				if err := goose.Create(nil, dir, args[0], "sql"); err != nil {
					return fmt.Errorf("create migration: %w", err)
				}
				logger.Info("migration created", zap.String("name", args[0]), zap.String("dir", dir))
				return nil
			},
		},
	)
	return root
}
