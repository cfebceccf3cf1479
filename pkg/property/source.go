package property

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/logger"
)

// Key suffixes of the document layout:
//
//	FEATURE=true
//	FEATURE.strategy=<strategy id>
//	FEATURE.param.<name>=<value>
//
// Older documents list usernames as FEATURE.users=<csv>. Such entries are
// read as the users parameter of the username strategy and dropped on the
// next write of that feature.
const (
	strategySuffix    = ".strategy"
	paramInfix        = ".param."
	legacyUsersSuffix = ".users"
)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets a custom logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// Source is a feature.Source over a properties document held by a Backend.
//
// The document is kept in memory and reloaded whenever the backend reports a
// different revision, checked at the start of every call. A reload that fails
// is logged and the previous snapshot stays in use. Writes rewrite the whole
// document in a single Store.
//
// All calls on one Source are serialized. Processes sharing the document are
// not coordinated: the last Store wins and other Sources pick it up on their
// next call.
type Source struct {
	backend Backend
	logger  *slog.Logger

	mu       sync.Mutex
	props    map[string]string
	revision Revision
	rejected Revision
	missing  bool
}

// NewSource creates a source reading from backend.
// Panics if backend is nil.
func NewSource(backend Backend, opts ...Option) *Source {
	if backend == nil {
		panic("property: backend cannot be nil")
	}

	s := &Source{
		backend: backend,
		logger:  logger.Noop(),
		props:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFileSource creates a source over the properties file at path.
func NewFileSource(path string, opts ...Option) *Source {
	return NewSource(NewFileBackend(path), opts...)
}

// NewS3Source creates a source over an S3 object.
func NewS3Source(ctx context.Context, cfg S3Config, s3opts []S3Option, opts ...Option) (*Source, error) {
	backend, err := NewS3Backend(ctx, cfg, s3opts...)
	if err != nil {
		return nil, err
	}
	return NewSource(backend, opts...), nil
}

// Read returns the state of f, or nil when the document has no entry for it.
func (s *Source) Read(ctx context.Context, f feature.Feature) (*feature.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh(ctx)
	return decodeState(s.props, f), nil
}

// Write replaces every entry of the feature with the current layout of st.
func (s *Source) Write(ctx context.Context, st *feature.State) error {
	if err := feature.ValidateState(st); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh(ctx)

	next := maps.Clone(s.props)
	removeFeature(next, st.Feature())
	encodeState(next, st)

	rev, err := s.backend.Store(ctx, next)
	if err != nil {
		return feature.Unavailable("store properties", err)
	}

	s.props = next
	s.revision = rev
	s.rejected = ""
	s.missing = false

	s.logger.DebugContext(ctx, "feature state stored",
		logger.Feature(st.Feature().Name()),
		logger.Revision(string(rev)),
	)
	return nil
}

// Features lists every feature with at least one entry, sorted by name.
func (s *Source) Features(ctx context.Context) ([]feature.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh(ctx)

	seen := make(map[feature.Feature]struct{})
	for key := range s.props {
		seen[featureOf(key)] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// refresh reloads the snapshot when the backend revision changed.
// Must be called with mu held.
func (s *Source) refresh(ctx context.Context) {
	rev, err := s.backend.Revision(ctx)
	switch {
	case errors.Is(err, ErrNotExist):
		if !s.missing && s.revision != "" {
			s.logger.WarnContext(ctx, "properties disappeared, keeping last snapshot", logger.Error(err))
		}
		s.missing = true
		return
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to check properties revision", logger.Error(err))
		return
	}
	s.missing = false

	if rev == s.revision || rev == s.rejected {
		return
	}

	props, loaded, err := s.backend.Load(ctx)
	if err != nil {
		if errors.Is(err, feature.ErrMalformedEntry) {
			// Not retried until the document changes again.
			s.rejected = rev
		}
		s.logger.ErrorContext(ctx, "failed to reload properties, keeping previous snapshot",
			logger.Revision(string(rev)),
			logger.Error(err),
		)
		return
	}

	s.props = props
	s.revision = loaded
	s.rejected = ""
	s.logger.DebugContext(ctx, "properties reloaded",
		logger.Revision(string(loaded)),
		slog.Int("entries", len(props)),
	)
}

func decodeState(props map[string]string, f feature.Feature) *feature.State {
	key := string(f)
	enabled, hasEnabled := props[key]
	strategy, hasStrategy := props[key+strategySuffix]
	users, hasUsers := props[key+legacyUsersSuffix]

	state := feature.NewState(f).
		SetEnabled(ParseBool(enabled)).
		SetStrategyID(strings.TrimSpace(strategy))

	prefix := key + paramInfix
	hasParams := false
	for k, v := range props {
		if name, ok := strings.CutPrefix(k, prefix); ok && name != "" {
			state.SetParameter(name, v)
			hasParams = true
		}
	}

	if !hasEnabled && !hasStrategy && !hasUsers && !hasParams {
		return nil
	}

	if hasUsers {
		current, _ := state.Parameter(feature.ParamUsers)
		state.SetParameter(feature.ParamUsers, mergeLists(current, users))
		if state.StrategyID() == "" {
			state.SetStrategyID(feature.StrategyUsername)
		}
	}
	return state
}

func encodeState(props map[string]string, st *feature.State) {
	key := st.Feature().Name()
	props[key] = strconv.FormatBool(st.Enabled())
	if id := st.StrategyID(); id != "" {
		props[key+strategySuffix] = id
	}
	for name, value := range st.Parameters() {
		props[key+paramInfix+name] = value
	}
}

func removeFeature(props map[string]string, f feature.Feature) {
	key := string(f)
	delete(props, key)
	delete(props, key+strategySuffix)
	delete(props, key+legacyUsersSuffix)
	prefix := key + paramInfix
	maps.DeleteFunc(props, func(k, _ string) bool {
		return strings.HasPrefix(k, prefix)
	})
}

// featureOf returns the feature an entry key belongs to.
func featureOf(key string) feature.Feature {
	if i := strings.Index(key, paramInfix); i > 0 {
		return feature.Feature(key[:i])
	}
	for _, suffix := range []string{strategySuffix, legacyUsersSuffix} {
		if name, ok := strings.CutSuffix(key, suffix); ok && name != "" {
			return feature.Feature(name)
		}
	}
	return feature.Feature(key)
}

// mergeLists joins two comma separated lists, keeping the first occurrence of
// every entry.
func mergeLists(a, b string) string {
	merged := feature.SplitList(a)
	for _, item := range feature.SplitList(b) {
		if !slices.Contains(merged, item) {
			merged = append(merged, item)
		}
	}
	return strings.Join(merged, ",")
}
