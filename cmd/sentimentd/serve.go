package main

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/sentimentd/app"
	"github.com/jonwraymond/sentimentd/observe"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the health monitor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := opts.load(ctx)
			if err != nil {
				return err
			}

			var appOpts []app.Option
			if watch && opts.configPath != "" {
				appOpts = append(appOpts, app.WithConfigPath(opts.configPath))
			}
			a, err := app.New(ctx, cfg, appOpts...)
			if err != nil {
				return err
			}

			a.Logger.Info(ctx, "starting service",
				observe.F("addr", cfg.Server.Addr()),
				observe.F("model_name", cfg.Model.Name),
				observe.F("alert_channels", a.Dispatcher.Channels()),
				observe.F("auth_enabled", cfg.Auth.Enabled()),
			)
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload alert settings when the config file changes")
	return cmd
}
