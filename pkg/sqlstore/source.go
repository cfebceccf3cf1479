package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/logger"
	"github.com/dmitrymomot/togglekit/pkg/property"
)

// DefaultTableName is the table used when WithTableName is not given.
const DefaultTableName = "TOGGLES"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// DB is the subset of *sql.DB used by Source.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Option configures a Source.
type Option func(*Source)

// WithTableName sets the table feature states live in.
func WithTableName(name string) Option {
	return func(s *Source) {
		s.table = name
	}
}

// WithPlaceholder sets the bind parameter style. Defaults to Question.
func WithPlaceholder(p Placeholder) Option {
	return func(s *Source) {
		s.placeholder = p
	}
}

// WithSchemaCreation makes NewSource create the table when it does not exist.
func WithSchemaCreation(create bool) Option {
	return func(s *Source) {
		s.createSchema = create
	}
}

// WithLogger sets a custom logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// Source stores one row per feature:
//
//	FEATURE_NAME     primary key
//	FEATURE_ENABLED  1 or 0
//	STRATEGY_ID      strategy id, NULL when none
//	STRATEGY_PARAMS  parameters as "name=value" lines, NULL when none
//
// It works with any database/sql driver; writes replace the row inside a
// transaction.
type Source struct {
	db           DB
	table        string
	placeholder  Placeholder
	createSchema bool
	logger       *slog.Logger

	selectQuery string
	deleteQuery string
	insertQuery string
	listQuery   string
}

// NewSource creates a feature source on db, creating the table first when
// WithSchemaCreation is set. Panics if db is nil.
func NewSource(ctx context.Context, db DB, opts ...Option) (*Source, error) {
	if db == nil {
		panic("sqlstore: db cannot be nil")
	}

	s := &Source{
		db:          db,
		table:       DefaultTableName,
		placeholder: Question,
		logger:      logger.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !tableNamePattern.MatchString(s.table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, s.table)
	}

	p := s.placeholder
	s.selectQuery = fmt.Sprintf(
		"SELECT FEATURE_ENABLED, STRATEGY_ID, STRATEGY_PARAMS FROM %s WHERE FEATURE_NAME = %s",
		s.table, p.bind(1))
	s.deleteQuery = fmt.Sprintf("DELETE FROM %s WHERE FEATURE_NAME = %s", s.table, p.bind(1))
	s.insertQuery = fmt.Sprintf(
		"INSERT INTO %s (FEATURE_NAME, FEATURE_ENABLED, STRATEGY_ID, STRATEGY_PARAMS) VALUES (%s, %s, %s, %s)",
		s.table, p.bind(1), p.bind(2), p.bind(3), p.bind(4))
	s.listQuery = fmt.Sprintf("SELECT FEATURE_NAME FROM %s ORDER BY FEATURE_NAME", s.table)

	if s.createSchema {
		if err := s.migrate(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Source) migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	FEATURE_NAME VARCHAR(100) PRIMARY KEY,
	FEATURE_ENABLED INTEGER NOT NULL,
	STRATEGY_ID VARCHAR(200),
	STRATEGY_PARAMS VARCHAR(2000)
)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.Join(ErrCreateSchema, err)
	}

	s.logger.DebugContext(ctx, "feature table ready", slog.String("table", s.table))
	return nil
}

// Read returns the stored state of f, or nil if there is none.
func (s *Source) Read(ctx context.Context, f feature.Feature) (*feature.State, error) {
	var (
		enabled    int64
		strategyID sql.NullString
		params     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.selectQuery, f.Name()).Scan(&enabled, &strategyID, &params)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, feature.Unavailable("sql select", err)
	}

	state := feature.NewState(f).
		SetEnabled(enabled != 0).
		SetStrategyID(strategyID.String)
	if params.String != "" {
		values, err := property.Parse(strings.NewReader(params.String))
		if err != nil {
			return nil, fmt.Errorf("parameters of %q: %w", f, err)
		}
		for name, value := range values {
			state.SetParameter(name, value)
		}
	}
	return state, nil
}

// Write replaces the stored state of st.Feature().
func (s *Source) Write(ctx context.Context, st *feature.State) error {
	if err := feature.ValidateState(st); err != nil {
		return err
	}

	var enabled int64
	if st.Enabled() {
		enabled = 1
	}
	strategyID := sql.NullString{String: st.StrategyID(), Valid: st.StrategyID() != ""}

	var params sql.NullString
	if values := st.Parameters(); len(values) > 0 {
		var b strings.Builder
		if err := property.Encode(&b, values); err != nil {
			return fmt.Errorf("encode parameters of %q: %w", st.Feature(), err)
		}
		params = sql.NullString{String: b.String(), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return feature.Unavailable("sql begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.deleteQuery, st.Feature().Name()); err != nil {
		return feature.Unavailable("sql delete", err)
	}
	if _, err := tx.ExecContext(ctx, s.insertQuery, st.Feature().Name(), enabled, strategyID, params); err != nil {
		return feature.Unavailable("sql insert", err)
	}
	if err := tx.Commit(); err != nil {
		return feature.Unavailable("sql commit", err)
	}

	s.logger.DebugContext(ctx, "feature state stored",
		logger.Feature(st.Feature().Name()),
		logger.Backend("sql"),
	)
	return nil
}

// Delete removes the stored state of f.
func (s *Source) Delete(ctx context.Context, f feature.Feature) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, f.Name()); err != nil {
		return feature.Unavailable("sql delete", err)
	}
	return nil
}

// Features lists stored features sorted by name.
func (s *Source) Features(ctx context.Context) ([]feature.Feature, error) {
	rows, err := s.db.QueryContext(ctx, s.listQuery)
	if err != nil {
		return nil, feature.Unavailable("sql select", err)
	}
	defer rows.Close()

	var features []feature.Feature
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, feature.Unavailable("sql scan", err)
		}
		features = append(features, feature.Feature(name))
	}
	if err := rows.Err(); err != nil {
		return nil, feature.Unavailable("sql rows", err)
	}
	return features, nil
}
