package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/mongo"
	"github.com/dmitrymomot/togglekit/pkg/pg"
	"github.com/dmitrymomot/togglekit/pkg/property"
	"github.com/dmitrymomot/togglekit/pkg/redis"
	"github.com/dmitrymomot/togglekit/pkg/sqlstore"
)

// backend is an opened storage backend.
type backend struct {
	source feature.Source
	// health probes the connection; nil for backends without one.
	health func(context.Context) error
	close  func() error
}

// openBackend connects the backend selected by cfg.
func openBackend(ctx context.Context, cfg Config, log *slog.Logger) (*backend, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case backendFile:
		return &backend{
			source: property.NewFileSource(cfg.File, property.WithLogger(log)),
			close:  noop,
		}, nil

	case backendS3:
		src, err := property.NewS3Source(ctx, cfg.S3, nil, property.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return &backend{source: src, close: noop}, nil

	case backendRedis:
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &backend{
			source: redis.NewSource(client, redis.WithConfig(cfg.Redis), redis.WithLogger(log)),
			health: redis.Healthcheck(client),
			close:  client.Close,
		}, nil

	case backendPostgres:
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{
			source: pg.NewSource(pool, pg.WithLogger(log)),
			health: pg.Healthcheck(pool),
			close:  func() error { pool.Close(); return nil },
		}, nil

	case backendSQLite:
		db, err := sql.Open("sqlite", cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		src, err := sqlstore.NewSource(ctx, db,
			sqlstore.WithTableName(cfg.SQLTable),
			sqlstore.WithSchemaCreation(true),
			sqlstore.WithLogger(log),
		)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backend{source: src, health: db.PingContext, close: db.Close}, nil

	case backendMongo:
		src, client, err := mongo.NewSourceFromConfig(ctx, cfg.Mongo, mongo.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return &backend{
			source: src,
			health: mongo.Healthcheck(client),
			close:  func() error { return client.Disconnect(context.Background()) },
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
