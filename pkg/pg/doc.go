// Package pg stores feature states in PostgreSQL using pgx.
//
// Connect opens a pgxpool.Pool with retries, Migrate creates the
// feature_states table from embedded goose migrations, and Source implements
// feature.Source and feature.Lister on top of any DB (a pool, a connection or
// a transaction).
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
//	source := pg.NewSource(pool, pg.WithLogger(log))
//
// Parameters are stored as a JSONB object. Database failures are reported as
// errors wrapping feature.ErrStorageUnavailable.
package pg
