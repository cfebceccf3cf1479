package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures Load.
type Option func(*options)

type options struct {
	prefix      string
	files       []string
	optional    []string
	environment map[string]string
}

// WithPrefix prepends prefix to every variable name, e.g. "FEATURECTL_".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithEnvFiles reads dotenv files; a missing file is an error.
// Later files override earlier ones, and process variables override all files.
func WithEnvFiles(paths ...string) Option {
	return func(o *options) {
		o.files = append(o.files, paths...)
	}
}

// WithOptionalEnvFiles is WithEnvFiles for files that may not exist.
func WithOptionalEnvFiles(paths ...string) Option {
	return func(o *options) {
		o.optional = append(o.optional, paths...)
	}
}

// WithEnvironment replaces the process environment, mostly for tests.
func WithEnvironment(vars map[string]string) Option {
	return func(o *options) {
		o.environment = vars
	}
}

// Load parses environment variables into a new T based on its env tags.
//
// Example:
//
//	type RedisConfig struct {
//		URL string `env:"REDIS_URL,required"`
//	}
//
//	cfg, err := config.Load[RedisConfig](config.WithPrefix("FEATURECTL_"))
func Load[T any](opts ...Option) (T, error) {
	var cfg T

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	vars, err := o.variables()
	if err != nil {
		return cfg, err
	}

	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      o.prefix,
		Environment: vars,
	}); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}

func (o options) variables() (map[string]string, error) {
	vars := make(map[string]string)

	read := func(path string, optional bool) error {
		values, err := godotenv.Read(path)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return errors.Join(ErrEnvFile, fmt.Errorf("%s: %w", path, err))
		}
		maps.Copy(vars, values)
		return nil
	}
	for _, path := range o.optional {
		if err := read(path, true); err != nil {
			return nil, err
		}
	}
	for _, path := range o.files {
		if err := read(path, false); err != nil {
			return nil, err
		}
	}

	if o.environment != nil {
		maps.Copy(vars, o.environment)
	} else {
		maps.Copy(vars, env.ToMap(os.Environ()))
	}
	return vars, nil
}
