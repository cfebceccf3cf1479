package redis

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/logger"
)

// Hash fields of a stored feature.
const (
	fieldEnabled  = "enabled"
	fieldStrategy = "strategy"
	fieldParam    = "param."
)

const (
	defaultKeyPrefix     = "feature:"
	defaultScanBatchSize = 500
)

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithKeyPrefix sets the prefix of the feature hash keys.
func WithKeyPrefix(prefix string) SourceOption {
	return func(s *Source) {
		s.prefix = prefix
	}
}

// WithScanBatchSize sets the SCAN COUNT hint used by Features.
func WithScanBatchSize(n int64) SourceOption {
	return func(s *Source) {
		if n > 0 {
			s.scanBatchSize = n
		}
	}
}

// WithLogger sets a custom logger. Nil is ignored.
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig applies the key prefix and scan batch size of cfg.
func WithConfig(cfg Config) SourceOption {
	return func(s *Source) {
		if cfg.KeyPrefix != "" {
			s.prefix = cfg.KeyPrefix
		}
		if cfg.ScanBatchSize > 0 {
			s.scanBatchSize = cfg.ScanBatchSize
		}
	}
}

// Source stores every feature as a hash at <prefix><feature>:
//
//	enabled        "true" or "false"
//	strategy       strategy id, absent when none
//	param.<name>   strategy parameters
//
// Writes replace the whole hash in a MULTI/EXEC transaction, so readers never
// observe a half written state.
type Source struct {
	client        redis.UniversalClient
	prefix        string
	scanBatchSize int64
	logger        *slog.Logger
}

// NewSource creates a feature source on client.
// Panics if client is nil.
func NewSource(client redis.UniversalClient, opts ...SourceOption) *Source {
	if client == nil {
		panic("redis: client cannot be nil")
	}

	s := &Source{
		client:        client,
		prefix:        defaultKeyPrefix,
		scanBatchSize: defaultScanBatchSize,
		logger:        logger.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) key(f feature.Feature) string {
	return s.prefix + string(f)
}

// Read returns the stored state of f, or nil if there is none.
func (s *Source) Read(ctx context.Context, f feature.Feature) (*feature.State, error) {
	fields, err := s.client.HGetAll(ctx, s.key(f)).Result()
	if err != nil {
		return nil, feature.Unavailable("redis hgetall", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	state := feature.NewState(f)
	for name, value := range fields {
		switch {
		case name == fieldEnabled:
			enabled, err := strconv.ParseBool(value)
			if err != nil {
				s.logger.WarnContext(ctx, "invalid enabled flag, treating feature as disabled",
					logger.Feature(f.Name()),
					logger.Error(err),
				)
			}
			state.SetEnabled(enabled)
		case name == fieldStrategy:
			state.SetStrategyID(value)
		case strings.HasPrefix(name, fieldParam):
			state.SetParameter(strings.TrimPrefix(name, fieldParam), value)
		}
	}
	return state, nil
}

// Write replaces the stored state of st.Feature().
func (s *Source) Write(ctx context.Context, st *feature.State) error {
	if err := feature.ValidateState(st); err != nil {
		return err
	}

	values := []any{fieldEnabled, strconv.FormatBool(st.Enabled())}
	if id := st.StrategyID(); id != "" {
		values = append(values, fieldStrategy, id)
	}
	for _, name := range st.ParameterNames() {
		value, _ := st.Parameter(name)
		values = append(values, fieldParam+name, value)
	}

	key := s.key(st.Feature())
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values...)
		return nil
	})
	if err != nil {
		return feature.Unavailable("redis write", err)
	}

	s.logger.DebugContext(ctx, "feature state stored",
		logger.Feature(st.Feature().Name()),
		logger.Backend("redis"),
	)
	return nil
}

// Delete removes the stored state of f.
func (s *Source) Delete(ctx context.Context, f feature.Feature) error {
	if err := s.client.Del(ctx, s.key(f)).Err(); err != nil {
		return feature.Unavailable("redis del", err)
	}
	return nil
}

// Features lists stored features using SCAN, sorted by name.
func (s *Source) Features(ctx context.Context) ([]feature.Feature, error) {
	var features []feature.Feature
	iter := s.client.Scan(ctx, 0, s.prefix+"*", s.scanBatchSize).Iterator()
	for iter.Next(ctx) {
		features = append(features, feature.Feature(strings.TrimPrefix(iter.Val(), s.prefix)))
	}
	if err := iter.Err(); err != nil {
		return nil, feature.Unavailable("redis scan", err)
	}

	slices.Sort(features)
	return slices.Compact(features), nil
}
