package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/togglekit/pkg/config"
	"github.com/dmitrymomot/togglekit/pkg/httpserver"
	"github.com/dmitrymomot/togglekit/pkg/logger"
	"github.com/dmitrymomot/togglekit/pkg/mongo"
	"github.com/dmitrymomot/togglekit/pkg/pg"
	"github.com/dmitrymomot/togglekit/pkg/property"
	"github.com/dmitrymomot/togglekit/pkg/redis"
)

// envPrefix namespaces every variable read by featurectl.
const envPrefix = "FEATURECTL_"

// Backend names accepted by --backend.
const (
	backendFile     = "file"
	backendS3       = "s3"
	backendRedis    = "redis"
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"
	backendMongo    = "mongo"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrInvalidPair    = errors.New("invalid argument")
)

// Config is read from FEATURECTL_* variables and an optional .env file.
// Flags override it.
type Config struct {
	Backend   string `env:"BACKEND" envDefault:"file"`
	File      string `env:"FILE" envDefault:"features.properties"`
	SQLiteDSN string `env:"SQLITE_DSN" envDefault:"file:features.db"`
	SQLTable  string `env:"SQL_TABLE" envDefault:"TOGGLES"`

	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	CacheCapacity int           `env:"CACHE_CAPACITY" envDefault:"10000"`

	Log      logger.Config
	HTTP     httpserver.Config
	Redis    redis.Config
	Postgres pg.Config
	Mongo    mongo.Config
	S3       property.S3Config
}

func loadConfig(cmd *cobra.Command, opts ...config.Option) (Config, error) {
	opts = append([]config.Option{
		config.WithPrefix(envPrefix),
		config.WithOptionalEnvFiles(".env"),
	}, opts...)

	cfg, err := config.Load[Config](opts...)
	if err != nil {
		return cfg, err
	}

	override := func(name string, dst *string) {
		if changed(cmd, name) {
			*dst = cmd.Flags().Lookup(name).Value.String()
		}
	}
	override("backend", &cfg.Backend)
	override("file", &cfg.File)
	override("redis-url", &cfg.Redis.ConnectionURL)
	override("log-level", &cfg.Log.Level)
	override("log-format", &cfg.Log.Format)

	if changed(cmd, "redis-url") && !changed(cmd, "backend") {
		cfg.Backend = backendRedis
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	return cfg, nil
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}
