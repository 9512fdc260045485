package main

import (
	"fmt"
	"os"

	"readingnook/internal/config"
)

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return "db/migrations"
}

// databaseDSN resolves the Postgres DSN the migrations run against.
func databaseDSN() (string, error) {
	cfg, err := config.LoadOffline()
	if err != nil {
		return "", err
	}
	if cfg.DSN == "" {
		return "", fmt.Errorf("%w: DB_DSN", config.ErrMissingEnv)
	}
	return cfg.DSN, nil
}
