package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readingnook/internal/book"
	"readingnook/internal/config"
	"readingnook/internal/logging"
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

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("seed failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	var (
		file      string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Copy a JSON library file into the configured store",
		Long: "seed reads a library export (the same format as LIBRARY_FILE) and inserts every book " +
			"into the store selected by STORE_DRIVER. Books already present are skipped unless --overwrite is set.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadOffline()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.LibraryFile
			}
			if cfg.StoreDriver == config.DriverFile && file == cfg.LibraryFile {
				return fmt.Errorf("source %s is the configured store; nothing to seed", file)
			}

			h, err := store.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer h.Close()

			rep, err := seed(cmd.Context(), book.NewFileRepo(file), h.Repo, overwrite, logger)
			if err != nil {
				return err
			}
			logger.Info("seed finished",
				zap.String("source", file),
				zap.String("store", h.Driver),
				zap.Int("read", rep.Read),
				zap.Int("created", rep.Created),
				zap.Int("updated", rep.Updated),
				zap.Int("skipped", rep.Skipped),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "library JSON file to import (defaults to LIBRARY_FILE)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace books that already exist in the store")
	return cmd
}
