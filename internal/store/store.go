// Package store opens the book repository selected by configuration.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"readingnook/internal/book"
	"readingnook/internal/config"
)

// ErrNoDSN is returned when the postgres driver is selected without DB_DSN.
var ErrNoDSN = errors.New("DB_DSN is required for the postgres store")

const pingTimeout = 2 * time.Second

// Handle is an open repository plus whatever it needs released.
type Handle struct {
	Repo   book.Repository
	Driver string
	close  func()
}

// Close releases the underlying connection or file handle.
func (h *Handle) Close() {
	if h.close != nil {
		h.close()
	}
}

// Open opens the repository named by cfg.StoreDriver. An unreachable
// Postgres server is not an error: the pool is returned and callers fall
// back until it recovers.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Handle, error) {
	switch cfg.StoreDriver {
	case config.DriverFile:
		return &Handle{Repo: book.NewFileRepo(cfg.LibraryFile), Driver: cfg.StoreDriver}, nil

	case config.DriverSQLite:
		if err := ensureDir(cfg.SQLitePath); err != nil {
			return nil, err
		}
		repo, err := book.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Handle{Repo: repo, Driver: cfg.StoreDriver, close: func() { _ = repo.Close() }}, nil

	case config.DriverPostgres:
		if cfg.DSN == "" {
			return nil, ErrNoDSN
		}
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", config.RedactDSN(cfg.DSN), err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			log.Warn("cannot ping database", zap.String("dsn", config.RedactDSN(cfg.DSN)), zap.Error(err))
		} else {
			log.Info("database connection OK")
		}
		return &Handle{Repo: book.NewPostgresRepo(pool, cfg.DBTimeout), Driver: cfg.StoreDriver, close: pool.Close}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Fallback returns the JSON file repository used when the primary cannot be
// read, or nil when the primary already is that file.
func Fallback(cfg config.Config) book.Repository {
	if cfg.StoreDriver == config.DriverFile {
		return nil
	}
	return book.NewFileRepo(cfg.LibraryFile)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
