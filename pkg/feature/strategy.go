package feature

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// Strategy decides whether an enabled feature is active for a caller.
type Strategy interface {
	// ID is matched against State.StrategyID.
	ID() string

	// Name is a human readable label for admin tooling.
	Name() string

	// Parameters describes the state parameters the strategy reads.
	Parameters() []Parameter

	// IsActive evaluates the strategy. It must not mutate state and must ignore
	// parameters it does not know. Unusable parameter values yield an error
	// wrapping ErrInvalidParameter.
	IsActive(ctx context.Context, state *State, user User) (bool, error)
}

// User is the caller a feature is evaluated for: an identity plus an optional
// bag of runtime attributes. The core passes it through to strategies untouched.
type User struct {
	Name       string
	Admin      bool
	Attributes map[string]string
}

// Attribute returns a runtime attribute of the user.
func (u User) Attribute(name string) (string, bool) {
	v, ok := u.Attributes[name]
	return v, ok
}

// Parameter describes one strategy parameter.
type Parameter struct {
	Name        string
	Label       string
	Description string
	Optional    bool
	// Pattern, when set, must match the whole value.
	Pattern *regexp.Regexp
}

// Validate checks a raw parameter value against the description.
func (p Parameter) Validate(value string) error {
	if strings.TrimSpace(value) == "" {
		if p.Optional {
			return nil
		}
		return fmt.Errorf("%w: %s is required", ErrInvalidParameter, p.Name)
	}
	if p.Pattern != nil && !p.Pattern.MatchString(value) {
		return fmt.Errorf("%w: %s has invalid value %q", ErrInvalidParameter, p.Name, value)
	}
	return nil
}

// ValidateParameters checks every declared parameter of strategy against state.
func ValidateParameters(strategy Strategy, state *State) error {
	var errs []error
	for _, p := range strategy.Parameters() {
		value, _ := state.Parameter(p.Name)
		if err := p.Validate(value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Registry maps strategy ids to strategies.
// Not thread-safe for registration: register all strategies at startup only.
// Lookups are safe for concurrent use once registration is done.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry holding the given strategies.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// DefaultRegistry returns a new registry with every built-in strategy.
func DefaultRegistry(opts ...BuiltinOption) *Registry {
	return NewRegistry(Builtins(opts...)...)
}

// Register adds a strategy. Panics if s is nil, has an empty id or its id is
// already registered.
func (r *Registry) Register(s Strategy) {
	if s == nil {
		panic("feature: strategy cannot be nil")
	}
	id := s.ID()
	if id == "" {
		panic("feature: strategy id cannot be empty")
	}
	if _, exists := r.strategies[id]; exists {
		panic(fmt.Sprintf("feature: strategy %q already registered", id))
	}
	r.strategies[id] = s
}

// Lookup returns the strategy registered under id.
func (r *Registry) Lookup(id string) (Strategy, bool) {
	s, ok := r.strategies[id]
	return s, ok
}

// IDs returns the registered strategy ids in sorted order.
func (r *Registry) IDs() []string {
	return slices.Sorted(maps.Keys(r.strategies))
}

// Validate checks that the strategy referenced by state is registered and
// accepts its parameters. A state without a strategy is always valid.
func (r *Registry) Validate(state *State) error {
	if err := ValidateState(state); err != nil {
		return err
	}
	id := state.StrategyID()
	if id == "" {
		return nil
	}
	s, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q (known: %s)", ErrUnknownStrategy, id, strings.Join(r.IDs(), ", "))
	}
	return ValidateParameters(s, state)
}
