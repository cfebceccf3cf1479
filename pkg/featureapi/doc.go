// Package featureapi exposes a feature.Manager over HTTP with chi.
//
// Every request gets a request id, the caller's IP and, when configured, the
// application environment in its context, so the client-ip and environment
// strategies work on evaluations made through the API.
//
//	manager := feature.NewManager(feature.NewCachingSource(source))
//	router := featureapi.NewRouter(manager,
//		featureapi.WithLogger(log),
//		featureapi.WithEnvironment(environment.Production),
//		featureapi.WithReadinessChecks(redis.Healthcheck(client)),
//	)
//	err := httpserver.New(httpserver.WithAddr(":8080")).Run(ctx, router)
//
// Bodies are JSON envelopes: {"data": ...} on success and
// {"error": {"code": ..., "message": ...}} on failure. Storage failures
// answer 503 and rejected states 422.
package featureapi
