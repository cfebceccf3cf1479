package feature

import (
	"errors"
	"hash/fnv"
	"maps"
	"slices"
	"strconv"
)

// Feature identifies a toggle. It is defined by the embedding application and
// must be unique within it.
type Feature string

// Name returns the feature identifier as a string.
func (f Feature) Name() string {
	return string(f)
}

// State is the persisted configuration of one feature.
//
// A State is owned by a single call site: sources hand out independent copies
// and mutators operate in place, returning the receiver for chaining.
type State struct {
	feature    Feature
	enabled    bool
	strategyID string
	parameters map[string]string
}

// NewState creates a disabled state with no strategy and no parameters.
func NewState(f Feature) *State {
	return &State{
		feature:    f,
		parameters: make(map[string]string),
	}
}

// Feature returns the feature this state belongs to.
func (s *State) Feature() Feature {
	return s.feature
}

// Enabled reports whether the feature is switched on.
func (s *State) Enabled() bool {
	return s.enabled
}

// StrategyID returns the selected activation strategy, or "" when none is set.
func (s *State) StrategyID() string {
	return s.strategyID
}

// Enable switches the feature on.
func (s *State) Enable() *State {
	s.enabled = true
	return s
}

// Disable switches the feature off.
func (s *State) Disable() *State {
	s.enabled = false
	return s
}

// SetEnabled sets the enabled flag.
func (s *State) SetEnabled(enabled bool) *State {
	s.enabled = enabled
	return s
}

// SetStrategyID selects the activation strategy. An empty id clears it.
func (s *State) SetStrategyID(id string) *State {
	s.strategyID = id
	return s
}

// SetParameter stores a strategy parameter. An empty value removes it.
func (s *State) SetParameter(name, value string) *State {
	if value == "" {
		delete(s.parameters, name)
		return s
	}
	if s.parameters == nil {
		s.parameters = make(map[string]string)
	}
	s.parameters[name] = value
	return s
}

// RemoveParameter deletes a strategy parameter.
func (s *State) RemoveParameter(name string) *State {
	delete(s.parameters, name)
	return s
}

// Parameter returns the value of a strategy parameter.
func (s *State) Parameter(name string) (string, bool) {
	v, ok := s.parameters[name]
	return v, ok
}

// Parameters returns a copy of all strategy parameters.
func (s *State) Parameters() map[string]string {
	params := make(map[string]string, len(s.parameters))
	maps.Copy(params, s.parameters)
	return params
}

// ParameterNames returns the parameter names in sorted order.
func (s *State) ParameterNames() []string {
	return slices.Sorted(maps.Keys(s.parameters))
}

// Copy returns a deep, independent clone.
func (s *State) Copy() *State {
	if s == nil {
		return nil
	}
	return &State{
		feature:    s.feature,
		enabled:    s.enabled,
		strategyID: s.strategyID,
		parameters: s.Parameters(),
	}
}

// Equal compares feature, enabled flag, strategy id and parameters.
func (s *State) Equal(other *State) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.feature == other.feature &&
		s.enabled == other.enabled &&
		s.strategyID == other.strategyID &&
		maps.Equal(s.parameters, other.parameters)
}

// Hash returns an FNV-1a hash over the same fields Equal compares.
// A nil state hashes to zero.
func (s *State) Hash() uint64 {
	if s == nil {
		return 0
	}
	h := fnv.New64a()
	write := func(v string) {
		h.Write([]byte(strconv.Itoa(len(v))))
		h.Write([]byte{':'})
		h.Write([]byte(v))
	}
	write(string(s.feature))
	write(strconv.FormatBool(s.enabled))
	write(s.strategyID)
	for _, name := range s.ParameterNames() {
		write(name)
		write(s.parameters[name])
	}
	return h.Sum64()
}

// String renders the state for logs and debugging.
func (s *State) String() string {
	if s == nil {
		return "<nil>"
	}
	out := string(s.feature) + "[enabled=" + strconv.FormatBool(s.enabled)
	if s.strategyID != "" {
		out += " strategy=" + s.strategyID
	}
	for _, name := range s.ParameterNames() {
		out += " " + name + "=" + s.parameters[name]
	}
	return out + "]"
}

// ValidateState returns ErrInvalidState when s cannot be written to a source.
func ValidateState(s *State) error {
	if s == nil {
		return errors.Join(ErrInvalidState, errors.New("state cannot be nil"))
	}
	if s.feature == "" {
		return errors.Join(ErrInvalidState, errors.New("feature name cannot be empty"))
	}
	if _, ok := s.parameters[""]; ok {
		return errors.Join(ErrInvalidState, errors.New("parameter name cannot be empty"))
	}
	return nil
}
