// Package redis stores feature states in Redis and provides connection
// helpers built on go-redis.
//
// Source keeps one hash per feature under a configurable key prefix and
// implements feature.Source and feature.Lister. Connect retries the initial
// ping according to Config, and Healthcheck returns a probe suitable for
// readiness checks.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	manager := feature.NewManager(
//		feature.NewCachingSource(redis.NewSource(client, redis.WithConfig(cfg))),
//	)
//
// Backend failures are reported as errors wrapping feature.ErrStorageUnavailable.
package redis
