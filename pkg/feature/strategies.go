package feature

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/netip"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/togglekit/pkg/clientip"
	"github.com/dmitrymomot/togglekit/pkg/environment"
)

// Built-in strategy ids.
const (
	StrategyUsername      = "username"
	StrategyGradual       = "gradual"
	StrategyReleaseDate   = "release-date"
	StrategyClientIP      = "client-ip"
	StrategyEnvironment   = "environment"
	StrategyUserAttribute = "user-attribute"
	StrategyEnvVar        = "env-var"
)

// Parameter names read by the built-in strategies.
const (
	ParamUsers        = "users"
	ParamPercentage   = "percentage"
	ParamDate         = "date"
	ParamTime         = "time"
	ParamIPs          = "ips"
	ParamEnvironments = "environments"
	ParamName         = "name"
	ParamValues       = "values"
	ParamValue        = "value"
)

// ClientIPAttribute is the user attribute consulted by the client-ip strategy
// before falling back to the IP stored in the context.
const ClientIPAttribute = "client_ip"

// BuiltinOption configures the built-in strategies.
type BuiltinOption func(*builtinConfig)

type builtinConfig struct {
	now      func() time.Time
	location *time.Location
	lookup   func(string) (string, bool)
}

// WithClock replaces time.Now for the release-date strategy.
func WithClock(now func() time.Time) BuiltinOption {
	return func(c *builtinConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocation sets the time zone release dates are interpreted in. Defaults to UTC.
func WithLocation(loc *time.Location) BuiltinOption {
	return func(c *builtinConfig) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithEnvLookup replaces os.LookupEnv for the env-var strategy.
func WithEnvLookup(lookup func(string) (string, bool)) BuiltinOption {
	return func(c *builtinConfig) {
		if lookup != nil {
			c.lookup = lookup
		}
	}
}

// Builtins returns one instance of every built-in strategy.
func Builtins(opts ...BuiltinOption) []Strategy {
	cfg := builtinConfig{
		now:      time.Now,
		location: time.UTC,
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return []Strategy{
		UsernameStrategy{},
		GradualStrategy{},
		&ReleaseDateStrategy{now: cfg.now, location: cfg.location},
		ClientIPStrategy{},
		EnvironmentStrategy{},
		UserAttributeStrategy{},
		&EnvVarStrategy{lookup: cfg.lookup},
	}
}

var (
	percentagePattern = regexp.MustCompile(`^\s*(100|[1-9]?[0-9])\s*$`)
	datePattern       = regexp.MustCompile(`^\s*\d{4}-\d{2}-\d{2}\s*$`)
	timePattern       = regexp.MustCompile(`^\s*\d{2}:\d{2}(:\d{2})?\s*$`)
)

// UsernameStrategy activates a feature for an explicit list of user names.
type UsernameStrategy struct{}

func (UsernameStrategy) ID() string   { return StrategyUsername }
func (UsernameStrategy) Name() string { return "Users by name" }

func (UsernameStrategy) Parameters() []Parameter {
	return []Parameter{{
		Name:        ParamUsers,
		Label:       "Users",
		Description: "Comma-separated list of user names the feature is active for.",
	}}
}

func (UsernameStrategy) IsActive(ctx context.Context, state *State, user User) (bool, error) {
	if user.Name == "" {
		return false, nil
	}
	users, _ := state.Parameter(ParamUsers)
	return slices.Contains(SplitList(users), user.Name), nil
}

// GradualStrategy activates a feature for a stable percentage of users.
// Users are bucketed with FNV-1a so the same name always lands in the same bucket.
type GradualStrategy struct{}

func (GradualStrategy) ID() string   { return StrategyGradual }
func (GradualStrategy) Name() string { return "Gradual rollout" }

func (GradualStrategy) Parameters() []Parameter {
	return []Parameter{{
		Name:        ParamPercentage,
		Label:       "Percentage",
		Description: "Share of users (0-100) the feature is active for.",
		Pattern:     percentagePattern,
	}}
}

func (GradualStrategy) IsActive(ctx context.Context, state *State, user User) (bool, error) {
	raw, _ := state.Parameter(ParamPercentage)
	percentage, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || percentage < 0 || percentage > 100 {
		return false, fmt.Errorf("%w: percentage must be between 0 and 100, got %q", ErrInvalidParameter, raw)
	}

	switch {
	case percentage == 0:
		return false, nil
	case percentage == 100:
		return true, nil
	case user.Name == "":
		return false, nil
	}

	return int(bucket(user.Name)) < percentage, nil
}

func bucket(name string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(name))
	return hash.Sum32() % 100
}

// ReleaseDateStrategy activates a feature from a point in time onwards.
type ReleaseDateStrategy struct {
	now      func() time.Time
	location *time.Location
}

// NewReleaseDateStrategy creates the strategy with a custom clock and location.
// Nil arguments fall back to time.Now and UTC.
func NewReleaseDateStrategy(now func() time.Time, loc *time.Location) *ReleaseDateStrategy {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReleaseDateStrategy{now: now, location: loc}
}

func (s *ReleaseDateStrategy) ID() string   { return StrategyReleaseDate }
func (s *ReleaseDateStrategy) Name() string { return "Release date" }

func (s *ReleaseDateStrategy) Parameters() []Parameter {
	return []Parameter{
		{
			Name:        ParamDate,
			Label:       "Date",
			Description: "Release date in the format 2006-01-02.",
			Pattern:     datePattern,
		},
		{
			Name:        ParamTime,
			Label:       "Time",
			Description: "Optional release time in the format 15:04:05.",
			Optional:    true,
			Pattern:     timePattern,
		},
	}
}

func (s *ReleaseDateStrategy) IsActive(ctx context.Context, state *State, user User) (bool, error) {
	release, err := s.releaseTime(state)
	if err != nil {
		return false, err
	}
	return !s.now().Before(release), nil
}

func (s *ReleaseDateStrategy) releaseTime(state *State) (time.Time, error) {
	date, _ := state.Parameter(ParamDate)
	clock, _ := state.Parameter(ParamTime)
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)

	value, layout := date, time.DateOnly
	switch {
	case clock == "":
	case len(clock) == len("15:04"):
		value, layout = date+" "+clock, "2006-01-02 15:04"
	default:
		value, layout = date+" "+clock, time.DateTime
	}

	loc := s.location
	if loc == nil {
		loc = time.UTC
	}
	release, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: release date %q: %v", ErrInvalidParameter, value, err)
	}
	return release, nil
}

// ClientIPStrategy activates a feature for callers whose IP matches a list of
// addresses or CIDR ranges.
type ClientIPStrategy struct{}

func (ClientIPStrategy) ID() string   { return StrategyClientIP }
func (ClientIPStrategy) Name() string { return "Client IP" }

func (ClientIPStrategy) Parameters() []Parameter {
	return []Parameter{{
		Name:        ParamIPs,
		Label:       "Client IPs",
		Description: "Comma-separated list of addresses or CIDR ranges.",
	}}
}

func (ClientIPStrategy) IsActive(ctx context.Context, state *State, user User) (bool, error) {
	raw, _ := state.Parameter(ParamIPs)
	prefixes, err := parsePrefixes(SplitList(raw))
	if err != nil {
		return false, err
	}

	ip, ok := user.Attribute(ClientIPAttribute)
	if !ok || ip == "" {
		ip = clientip.GetIPFromContext(ctx)
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false, nil
	}
	addr = addr.Unmap()

	for _, prefix := range prefixes {
		if prefix.Contains(addr) {
			return true, nil
		}
	}
	return false, nil
}

func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: ip range %q: %v", ErrInvalidParameter, entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: ip address %q: %v", ErrInvalidParameter, entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// EnvironmentStrategy activates a feature in the listed environments.
// The current environment is read from the context, see environment.WithContext.
// Names are compared with environment.Parse, so "prod" matches "production".
type EnvironmentStrategy struct{}

func (EnvironmentStrategy) ID() string   { return StrategyEnvironment }
func (EnvironmentStrategy) Name() string { return "Environment" }

func (EnvironmentStrategy) Parameters() []Parameter {
	return []Parameter{{
		Name:        ParamEnvironments,
		Label:       "Environments",
		Description: "Comma-separated list of environments, e.g. staging,production.",
	}}
}

func (EnvironmentStrategy) IsActive(ctx context.Context, state *State, user User) (bool, error) {
	env := environment.Parse(environment.FromContext(ctx))
	if env == "" {
		return false, nil
	}
	raw, _ := state.Parameter(ParamEnvironments)
	for _, candidate := range SplitList(raw) {
		if env.Is(candidate) {
			return true, nil
		}
	}
	return false, nil
}

// UserAttributeStrategy activates a feature when a user attribute has one of
// the listed values, e.g. name=role, values=admin,support.
type UserAttributeStrategy struct{}

func (UserAttributeStrategy) ID() string   { return StrategyUserAttribute }
func (UserAttributeStrategy) Name() string { return "User attribute" }

func (UserAttributeStrategy) Parameters() []Parameter {
	return []Parameter{
		{Name: ParamName, Label: "Attribute", Description: "Name of the user attribute."},
		{Name: ParamValues, Label: "Values", Description: "Comma-separated list of accepted values."},
	}
}

func (UserAttributeStrategy) IsActive(ctx context.Context, state *State, user User) (bool, error) {
	name, _ := state.Parameter(ParamName)
	if name == "" {
		return false, fmt.Errorf("%w: attribute name is required", ErrInvalidParameter)
	}
	value, ok := user.Attribute(name)
	if !ok {
		return false, nil
	}
	values, _ := state.Parameter(ParamValues)
	return slices.Contains(SplitList(values), value), nil
}

// EnvVarStrategy activates a feature based on a process environment variable.
// Without a value parameter the variable only has to be set and non-empty.
type EnvVarStrategy struct {
	lookup func(string) (string, bool)
}

func (s *EnvVarStrategy) ID() string   { return StrategyEnvVar }
func (s *EnvVarStrategy) Name() string { return "Environment variable" }

func (s *EnvVarStrategy) Parameters() []Parameter {
	return []Parameter{
		{Name: ParamName, Label: "Variable", Description: "Name of the environment variable."},
		{Name: ParamValue, Label: "Value", Description: "Expected value.", Optional: true},
	}
}

func (s *EnvVarStrategy) IsActive(ctx context.Context, state *State, user User) (bool, error) {
	name, _ := state.Parameter(ParamName)
	if name == "" {
		return false, fmt.Errorf("%w: variable name is required", ErrInvalidParameter)
	}
	lookup := s.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	actual, ok := lookup(name)
	if !ok {
		return false, nil
	}
	expected, hasExpected := state.Parameter(ParamValue)
	if !hasExpected {
		return actual != "", nil
	}
	return actual == expected, nil
}

// SplitList splits a comma-separated parameter into trimmed, non-empty items.
func SplitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
