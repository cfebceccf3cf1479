// Package logger builds slog loggers for togglekit services and tools.
//
// New creates a *slog.Logger configured by Option functions: output format
// (text or json), minimum level, static attributes, and ContextExtractor
// callbacks that pull values such as the environment or client IP out of the
// context of every record. Config and FromConfig map LOG_LEVEL, LOG_FORMAT,
// APP_ENV and SERVICE_NAME onto those options.
//
// Attribute helpers (Feature, Strategy, Backend, Path, Revision, Error) keep
// key names consistent across packages. Error and Strategy return an empty
// attribute for zero values, so they can be passed unconditionally:
//
//	log.WarnContext(ctx, "reload failed", logger.Path(path), logger.Error(err))
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment("production", "billing"),
//		logger.WithContextExtractors(environment.LoggerExtractor(), clientip.LoggerExtractor()),
//	)
//
// Libraries in this module accept a logger through a WithLogger option and
// discard output when none is given, see Noop.
package logger
