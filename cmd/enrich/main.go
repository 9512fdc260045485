package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readingnook/internal/config"
	"readingnook/internal/covers"
	"readingnook/internal/enrich"
	"readingnook/internal/logging"
	"readingnook/internal/platform/googlebooks"
	"readingnook/internal/store"
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

	if err := newRootCmd(logger, nil).ExecuteContext(ctx); err != nil {
		logger.Error("enrich failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

type options struct {
	freshness  time.Duration
	rps        float64
	retries    int
	skipCovers bool
}

// newRootCmd builds the command. clientOpts are passed to the Google Books
// client.
func newRootCmd(logger *zap.Logger, clientOpts []googlebooks.Option) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "enrich",
		Short:         "Fill missing titles, covers, page counts and synopses from Google Books",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadOffline()
			if err != nil {
				return err
			}

			h, err := store.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer h.Close()

			var mirror enrich.CoverMirror
			if cfg.MinIO.Enabled() && !opts.skipCovers {
				objects, err := covers.NewMinioStore(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
				if err != nil {
					return fmt.Errorf("cover storage: %w", err)
				}
				mirror = covers.NewCache(objects, nil, logger)
			}

			client := googlebooks.NewClient(cfg.GoogleBooksAPIKey, "readingnook-enrich/1.0", opts.rps, opts.retries, clientOpts...)
			svc := enrich.NewService(client, mirror, enrich.Config{Freshness: opts.freshness}, logger)

			started := time.Now()
			rep, err := svc.Run(ctx, h.Repo)
			if err != nil {
				return err
			}
			logger.Info("enrichment finished",
				zap.String("store", h.Driver),
				zap.Int("processed", rep.Processed),
				zap.Int("updated", rep.Updated),
				zap.Int("skipped", rep.Skipped),
				zap.Int("not_found", rep.NotFound),
				zap.Int("failed", rep.Failed),
				zap.Duration("took", time.Since(started)),
			)
			return nil
		},
	}
	cmd.Flags().DurationVar(&opts.freshness, "freshness", enrich.DefaultFreshness, "leave complete books enriched within this window alone")
	cmd.Flags().Float64Var(&opts.rps, "rps", 1, "requests per second sent to Google Books")
	cmd.Flags().IntVar(&opts.retries, "retries", 3, "retries per request on 429 and 5xx responses")
	cmd.Flags().BoolVar(&opts.skipCovers, "skip-covers", false, "do not mirror covers into object storage")
	return cmd
}
