package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/togglekit/pkg/clientip"
	"github.com/dmitrymomot/togglekit/pkg/environment"
	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/logger"
)

// stateView is the YAML form printed by get.
type stateView struct {
	Feature    string            `yaml:"feature"`
	Enabled    bool              `yaml:"enabled"`
	Strategy   string            `yaml:"strategy,omitempty"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
}

func newStateView(s *feature.State) stateView {
	params := s.Parameters()
	if len(params) == 0 {
		params = nil
	}
	return stateView{
		Feature:    s.Feature().Name(),
		Enabled:    s.Enabled(),
		Strategy:   s.StrategyID(),
		Parameters: params,
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <feature>",
		Short: "Print the state of a feature as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := a.manager.State(cmd.Context(), feature.Feature(args[0]))
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(newStateView(state)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lister, ok := a.manager.Source().(feature.Lister)
			if !ok {
				return feature.ErrUnsupported
			}
			features, err := lister.Features(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FEATURE\tENABLED\tSTRATEGY")
			for _, f := range features {
				state, err := a.manager.State(cmd.Context(), f)
				if err != nil {
					return err
				}
				strategy := state.StrategyID()
				if strategy == "" {
					strategy = "-"
				}
				fmt.Fprintf(w, "%s\t%t\t%s\n", f, state.Enabled(), strategy)
			}
			return w.Flush()
		},
	}
}

// newEnableCmd builds enable or disable. The strategy and its parameters are kept.
func newEnableCmd(a *app, enabled bool) *cobra.Command {
	use, short := "enable", "Enable a feature"
	if !enabled {
		use, short = "disable", "Disable a feature"
	}

	return &cobra.Command{
		Use:   use + " <feature>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := feature.Feature(args[0])
			state, err := a.manager.State(cmd.Context(), f)
			if err != nil {
				return err
			}
			if err := a.manager.SetState(cmd.Context(), state.SetEnabled(enabled)); err != nil {
				return err
			}

			a.log.InfoContext(cmd.Context(), "feature "+use+"d", logger.Feature(f.Name()))
			return nil
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	var (
		strategy string
		params   []string
		enabled  bool
	)

	cmd := &cobra.Command{
		Use:   "set <feature>",
		Short: "Replace the state of a feature",
		Example: `  featurectl set NEW_CHECKOUT --strategy gradual --param percentage=25
  featurectl set BETA --strategy username --param users=alice,bob`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := feature.NewState(feature.Feature(args[0])).
				SetEnabled(enabled).
				SetStrategyID(strategy)

			values, err := parsePairs(params)
			if err != nil {
				return err
			}
			for name, value := range values {
				state.SetParameter(name, value)
			}

			if err := a.manager.Registry().Validate(state); err != nil {
				return err
			}

			if err := a.manager.SetState(cmd.Context(), state); err != nil {
				return err
			}
			a.log.InfoContext(cmd.Context(), "feature updated",
				logger.Feature(state.Feature().Name()),
				logger.Strategy(strategy),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "activation strategy id")
	cmd.Flags().StringArrayVar(&params, "param", nil, "strategy parameter as name=value, repeatable")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "whether the feature is enabled")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		user  string
		attrs []string
		ip    string
		env   string
	)

	cmd := &cobra.Command{
		Use:   "check <feature>",
		Short: "Print whether a feature is active for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attributes, err := parsePairs(attrs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ip != "" {
				ctx = clientip.SetIPToContext(ctx, ip)
			}
			if env != "" {
				ctx = environment.WithContext(ctx, env)
			}

			active, err := a.manager.IsActive(ctx, feature.Feature(args[0]), feature.User{
				Name:       user,
				Attributes: attributes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), active)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user name")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "user attribute as name=value, repeatable")
	cmd.Flags().StringVar(&ip, "ip", "", "client IP address")
	cmd.Flags().StringVar(&env, "env", "", "application environment")
	return cmd
}

// parsePairs splits name=value arguments. Values may contain '='.
func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q is not name=value", ErrInvalidPair, pair)
		}
		out[name] = value
	}
	return out, nil
}
