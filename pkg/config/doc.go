// Package config loads typed configuration from environment variables.
//
// Load parses a struct with caarlos0/env tags. Values come, from lowest to
// highest precedence, from optional dotenv files, required dotenv files and
// the process environment. Reading dotenv files never modifies the process
// environment.
//
//	type Config struct {
//		File     string `env:"FILE"`
//		RedisURL string `env:"REDIS_URL"`
//	}
//
//	cfg, err := config.Load[Config](
//		config.WithPrefix("FEATURECTL_"),
//		config.WithOptionalEnvFiles(".env"),
//	)
//
// Errors wrap ErrParsingConfig or ErrEnvFile.
package config
