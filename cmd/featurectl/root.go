package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/togglekit/pkg/config"
	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/logger"
)

// app holds what the subcommands share once the root command has run.
type app struct {
	cfg     Config
	log     *slog.Logger
	backend *backend
	manager *feature.Manager
}

func newRootCmd(loadOpts ...config.Option) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "featurectl",
		Short:         "Inspect and change feature toggles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, loadOpts...)
			if err != nil {
				return err
			}
			a.cfg = cfg

			opts, err := logger.FromConfig(cfg.Log)
			if err != nil {
				return err
			}
			a.log = logger.New(append(opts,
				logger.WithOutput(cmd.ErrOrStderr()),
				logger.WithContextExtractors(contextExtractors()...),
			)...)

			b, err := openBackend(cmd.Context(), cfg, a.log)
			if err != nil {
				return err
			}
			a.backend = b
			a.manager = feature.NewManager(b.source, feature.WithLogger(a.log))

			a.log.DebugContext(cmd.Context(), "backend ready", logger.Backend(cfg.Backend))
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.backend == nil {
				return nil
			}
			return a.backend.close()
		},
	}

	pf := root.PersistentFlags()
	pf.String("backend", "", "storage backend: file, s3, redis, postgres, sqlite or mongo (env FEATURECTL_BACKEND)")
	pf.String("file", "", "properties file for the file backend (env FEATURECTL_FILE)")
	pf.String("redis-url", "", "redis URL, selects the redis backend (env FEATURECTL_REDIS_URL)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")

	root.AddCommand(
		newGetCmd(a),
		newListCmd(a),
		newEnableCmd(a, true),
		newEnableCmd(a, false),
		newSetCmd(a),
		newCheckCmd(a),
		newServeCmd(a),
	)
	return root
}
