package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/togglekit/pkg/clientip"
	"github.com/dmitrymomot/togglekit/pkg/environment"
	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/featureapi"
	"github.com/dmitrymomot/togglekit/pkg/httpserver"
	"github.com/dmitrymomot/togglekit/pkg/logger"
	"github.com/dmitrymomot/togglekit/pkg/property"
	"github.com/dmitrymomot/togglekit/pkg/requestid"
)

func contextExtractors() []logger.ContextExtractor {
	return []logger.ContextExtractor{
		requestid.LoggerExtractor(),
		clientip.LoggerExtractor(),
	}
}

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		readOnly bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feature HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			source := feature.NewCachingSource(a.backend.source,
				feature.WithCacheTTL(cfg.CacheTTL),
				feature.WithCacheCapacity(cfg.CacheCapacity),
			)
			manager := feature.NewManager(source, feature.WithLogger(a.log))

			if cfg.Backend == backendFile {
				go func() {
					err := property.Watch(cmd.Context(), cfg.File, source.Purge, property.WithWatchLogger(a.log))
					if err != nil {
						a.log.WarnContext(cmd.Context(), "properties watcher disabled, changes apply after the cache TTL",
							logger.Path(cfg.File),
							logger.Error(err),
						)
					}
				}()
			}

			var checks []func(context.Context) error
			if a.backend.health != nil {
				checks = append(checks, a.backend.health)
			}
			opts := []featureapi.Option{
				featureapi.WithLogger(a.log),
				featureapi.WithEnvironment(environment.Parse(cfg.Log.Env)),
				featureapi.WithReadinessChecks(checks...),
			}
			if readOnly {
				opts = append(opts, featureapi.WithReadOnly())
			}

			srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(a.log))
			return srv.Run(cmd.Context(), featureapi.NewRouter(manager, opts...))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env FEATURECTL_HTTP_ADDR)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "reject state changes")
	return cmd
}
