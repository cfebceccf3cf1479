package feature

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// Defaults supplies the state a feature falls back to when its source has none.
type Defaults interface {
	// DefaultState returns the declared default of f, or nil if there is none.
	DefaultState(f Feature) *State
}

// StaticDefaults is a map-based Defaults implementation.
type StaticDefaults map[Feature]*State

// DefaultState returns a copy of the declared default.
func (d StaticDefaults) DefaultState(f Feature) *State {
	return d[f].Copy()
}

// EnabledByDefault returns defaults where every listed feature is enabled with no strategy.
func EnabledByDefault(features ...Feature) StaticDefaults {
	d := make(StaticDefaults, len(features))
	for _, f := range features {
		d[f] = NewState(f).Enable()
	}
	return d
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry sets the strategy registry. Defaults to DefaultRegistry().
func WithRegistry(r *Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithDefaults sets the fallback states used when the source has none.
func WithDefaults(d Defaults) Option {
	return func(m *Manager) {
		m.defaults = d
	}
}

// WithFeatures declares the features known to the application.
func WithFeatures(features ...Feature) Option {
	return func(m *Manager) {
		m.features = append(m.features, features...)
	}
}

// WithLogger sets a custom logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager resolves whether features are active. It keeps no state of its own:
// every call reads the source, so caching belongs in a decorator such as CachingSource.
type Manager struct {
	source   Source
	registry *Registry
	defaults Defaults
	features []Feature
	logger   *slog.Logger
}

// NewManager creates a manager reading states from source.
// Panics if source is nil.
func NewManager(source Source, opts ...Option) *Manager {
	if source == nil {
		panic("feature: manager source cannot be nil")
	}

	m := &Manager{
		source: source,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = DefaultRegistry()
	}

	return m
}

// Source returns the underlying source.
func (m *Manager) Source() Source {
	return m.source
}

// Registry returns the strategy registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Features returns the declared features.
func (m *Manager) Features() []Feature {
	return slices.Clone(m.features)
}

// State returns the effective state of f: the stored state, the declared
// default when nothing is stored, or a disabled state when neither exists.
func (m *Manager) State(ctx context.Context, f Feature) (*State, error) {
	state, err := m.source.Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read state of %q: %w", f, err)
	}
	if state != nil {
		return state, nil
	}

	if m.defaults != nil {
		if def := m.defaults.DefaultState(f); def != nil {
			return def, nil
		}
	}

	return NewState(f), nil
}

// SetState persists s through the source.
func (m *Manager) SetState(ctx context.Context, s *State) error {
	if err := ValidateState(s); err != nil {
		return err
	}
	if err := m.source.Write(ctx, s); err != nil {
		return fmt.Errorf("write state of %q: %w", s.Feature(), err)
	}

	m.logger.DebugContext(ctx, "feature state updated",
		slog.String("feature", s.Feature().Name()),
		slog.Bool("enabled", s.Enabled()),
		slog.String("strategy", s.StrategyID()),
	)
	return nil
}

// IsActive reports whether f is active for user.
//
// A disabled feature is never active and its strategy is not consulted. An
// enabled feature without a strategy is active for everyone. Otherwise the
// registered strategy decides; an unregistered strategy id is an error.
func (m *Manager) IsActive(ctx context.Context, f Feature, user User) (bool, error) {
	state, err := m.State(ctx, f)
	if err != nil {
		return false, err
	}

	if !state.Enabled() {
		return false, nil
	}

	id := state.StrategyID()
	if id == "" {
		return true, nil
	}

	strategy, ok := m.registry.Lookup(id)
	if !ok {
		m.logger.ErrorContext(ctx, "feature references unknown strategy",
			slog.String("feature", f.Name()),
			slog.String("strategy", id),
		)
		return false, fmt.Errorf("%w: %q (feature %q)", ErrUnknownStrategy, id, f)
	}

	active, err := strategy.IsActive(ctx, state, user)
	if err != nil {
		return false, fmt.Errorf("evaluate %q for feature %q: %w", id, f, err)
	}
	return active, nil
}

// Active evaluates f for the user stored in ctx, see WithUser.
func (m *Manager) Active(ctx context.Context, f Feature) (bool, error) {
	return m.IsActive(ctx, f, UserFromContext(ctx))
}

type userContextKey struct{}

// WithUser stores the caller in ctx for Manager.Active.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the caller stored in ctx, or an anonymous user.
func UserFromContext(ctx context.Context) User {
	if ctx == nil {
		return User{}
	}
	user, _ := ctx.Value(userContextKey{}).(User)
	return user
}
