// Package httpserver runs an http.Handler with graceful shutdown, timeouts
// and slog logging, and provides liveness and readiness probe handlers.
//
// Run blocks until the given context is canceled or the process receives
// SIGINT or SIGTERM, then calls Shutdown with the configured deadline. Listen
// failures are wrapped with ErrStart and shutdown failures with ErrShutdown.
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Get("/health/live", httpserver.HealthCheckHandler(log))
//	r.Get("/health/ready", httpserver.HealthCheckHandler(log, redis.Healthcheck(client)))
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//		return err
//	}
package httpserver
