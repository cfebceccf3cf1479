package environment

import (
	"context"
	"strings"
)

// Environment represents application environment.
type Environment string

const (
	// Development for development environment.
	Development Environment = "development"
	// Staging for staging environment.
	Staging Environment = "staging"
	// Production for production environment.
	Production Environment = "production"
	// Test for automated test runs.
	Test Environment = "test"
)

var aliases = map[string]Environment{
	"dev":     Development,
	"local":   Development,
	"stage":   Staging,
	"stg":     Staging,
	"prod":    Production,
	"prd":     Production,
	"testing": Test,
}

// Parse normalizes an environment name: case and surrounding space are
// ignored and short aliases such as "prod" or "dev" map to their canonical
// names. Unknown names are returned lowercased.
func Parse(name string) Environment {
	name = strings.ToLower(strings.TrimSpace(name))
	if env, ok := aliases[name]; ok {
		return env
	}
	return Environment(name)
}

// String returns the environment name.
func (e Environment) String() string {
	return string(e)
}

// Is reports whether e and name denote the same environment.
func (e Environment) Is(name string) bool {
	return e != "" && Parse(string(e)) == Parse(name)
}

type contextKey struct{}

// WithContext adds environment to context
func WithContext(ctx context.Context, env string) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext retrieves environment from context
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(string)
	return env
}

// IsProduction checks if the environment from context is production
func IsProduction(ctx context.Context) bool {
	return Parse(FromContext(ctx)) == Production
}

// IsDevelopment checks if the environment from context is development
func IsDevelopment(ctx context.Context) bool {
	return Parse(FromContext(ctx)) == Development
}

// IsStaging checks if the environment from context is staging
func IsStaging(ctx context.Context) bool {
	return Parse(FromContext(ctx)) == Staging
}
