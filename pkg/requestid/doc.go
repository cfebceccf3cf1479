// Package requestid tags every HTTP request with an id taken from the
// X-Request-ID header or generated as a UUID, so feature evaluations can be
// correlated in logs.
//
//	r.Use(requestid.Middleware)
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
package requestid
