package pg

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/logger"
)

// DB is the subset of *pgxpool.Pool, *pgx.Conn and pgx.Tx used by Source.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectStateQuery = `SELECT enabled, strategy_id, parameters FROM feature_states WHERE name = $1`

	upsertStateQuery = `INSERT INTO feature_states (name, enabled, strategy_id, parameters, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (name) DO UPDATE SET
	enabled = EXCLUDED.enabled,
	strategy_id = EXCLUDED.strategy_id,
	parameters = EXCLUDED.parameters,
	updated_at = EXCLUDED.updated_at`

	deleteStateQuery = `DELETE FROM feature_states WHERE name = $1`

	listFeaturesQuery = `SELECT name FROM feature_states ORDER BY name`
)

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithLogger sets a custom logger. Nil is ignored.
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// Source stores feature states in the feature_states table, see Migrate.
type Source struct {
	db     DB
	logger *slog.Logger
}

// NewSource creates a feature source on db.
// Panics if db is nil.
func NewSource(db DB, opts ...SourceOption) *Source {
	if db == nil {
		panic("pg: db cannot be nil")
	}
	s := &Source{db: db, logger: logger.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the stored state of f, or nil if there is none.
func (s *Source) Read(ctx context.Context, f feature.Feature) (*feature.State, error) {
	var (
		enabled    bool
		strategyID string
		parameters map[string]string
	)
	err := s.db.QueryRow(ctx, selectStateQuery, f.Name()).Scan(&enabled, &strategyID, &parameters)
	if IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, feature.Unavailable("pg select", err)
	}

	state := feature.NewState(f).SetEnabled(enabled).SetStrategyID(strategyID)
	for name, value := range parameters {
		state.SetParameter(name, value)
	}
	return state, nil
}

// Write upserts the state of st.Feature().
func (s *Source) Write(ctx context.Context, st *feature.State) error {
	if err := feature.ValidateState(st); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx, upsertStateQuery,
		st.Feature().Name(),
		st.Enabled(),
		st.StrategyID(),
		st.Parameters(),
	)
	if err != nil {
		return feature.Unavailable("pg upsert", err)
	}

	s.logger.DebugContext(ctx, "feature state stored",
		logger.Feature(st.Feature().Name()),
		logger.Backend("postgres"),
	)
	return nil
}

// Delete removes the stored state of f.
func (s *Source) Delete(ctx context.Context, f feature.Feature) error {
	if _, err := s.db.Exec(ctx, deleteStateQuery, f.Name()); err != nil {
		return feature.Unavailable("pg delete", err)
	}
	return nil
}

// Features lists stored features sorted by name.
func (s *Source) Features(ctx context.Context) ([]feature.Feature, error) {
	rows, err := s.db.Query(ctx, listFeaturesQuery)
	if err != nil {
		return nil, feature.Unavailable("pg list", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, feature.Unavailable("pg list", err)
	}

	features := make([]feature.Feature, len(names))
	for i, name := range names {
		features[i] = feature.Feature(name)
	}
	return features, nil
}
