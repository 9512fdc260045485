// Package config gathers runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverFile     = "file"
)

var ErrMissingEnv = errors.New("missing required environment variable")

type MinIO struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether a cover bucket is configured.
func (m MinIO) Enabled() bool { return m.Endpoint != "" && m.Bucket != "" }

type Config struct {
	Addr     string
	Env      string
	LogLevel string

	StoreDriver string
	DSN         string
	SQLitePath  string
	LibraryFile string
	DBTimeout   time.Duration

	CredentialsFile string
	JWTSecret       string
	TokenTTL        time.Duration

	RedisAddr string
	MinIO     MinIO

	GoogleBooksAPIKey string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	MaxBodyBytes       int64
}

// LoadEnvFiles loads .env and .env.local without overriding variables that
// are already set.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// Load reads the configuration from the environment. JWT_SECRET is required.
func Load() (Config, error) {
	secret, err := mustGetEnv("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}
	cfg, err := LoadOffline()
	if err != nil {
		return Config{}, err
	}
	cfg.JWTSecret = secret
	return cfg, nil
}

// LoadOffline reads everything Load does except the signing secret. The
// command line tools use it since they never issue or check tokens.
func LoadOffline() (Config, error) {
	cfg := Config{
		Addr:     getEnv("APP_ADDR", ":8080"),
		Env:      getEnv("APP_ENV", "prod"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DSN:         os.Getenv("DB_DSN"),
		SQLitePath:  getEnv("SQLITE_PATH", "data/library.db"),
		LibraryFile: getEnv("LIBRARY_FILE", "data/books.json"),
		DBTimeout:   getDuration("DB_TIMEOUT", 3*time.Second),

		CredentialsFile: getEnv("CREDENTIALS_FILE", "credentials.yaml"),
		TokenTTL:        getDuration("TOKEN_TTL", 12*time.Hour),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		MinIO: MinIO{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "readingnook"),
			UseSSL:    getBool("MINIO_USE_SSL", false),
		},

		GoogleBooksAPIKey: os.Getenv("GOOGLE_BOOKS_API_KEY"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitRPS:       getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 20),
		MaxBodyBytes:       int64(getInt("MAX_BODY_BYTES", 1<<20)),
	}

	switch cfg.StoreDriver {
	case DriverPostgres, DriverSQLite, DriverFile:
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

func (c Config) IsDev() bool { return c.Env == "dev" }

// RedactDSN hides the credentials part of a connection string.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustGetEnv(key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrMissingEnv, key)
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return def
}

func getBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
