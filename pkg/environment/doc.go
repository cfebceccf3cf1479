// Package environment carries the current application environment
// (development, staging, production) through context.Context.
//
// The environment feature strategy reads it with FromContext, and
// LoggerExtractor exposes it to slog based loggers. Names are compared after
// Parse, so "prod", "PRODUCTION" and "production" are the same environment.
//
// # Usage
//
//	ctx = environment.WithContext(ctx, "staging")
//	if environment.IsStaging(ctx) {
//		// ...
//	}
//
//	handler = environment.Middleware(environment.Production)(handler)
//
// Missing values result in the zero value ("").
package environment
