package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/sentimentd/app"
	"github.com/jonwraymond/sentimentd/health"
	"github.com/jonwraymond/sentimentd/resilience"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var skipModel bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one health cycle and print it as JSON",
		Long:  "check warms the model once, runs every health probe and prints the result. It exits 1 when the service is unhealthy.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := opts.load(ctx)
			if err != nil {
				return err
			}

			a, err := app.New(ctx, cfg,
				app.WithLogOutput(cmd.ErrOrStderr()),
				app.WithLoadRetry(resilience.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond}),
			)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if !skipModel {
				a.LoadModel(ctx)
			}
			h, err := a.CheckOnce(ctx)
			if err != nil {
				return err
			}
			if err := writeHealth(cmd.OutOrStdout(), h); err != nil {
				return err
			}
			if h.Status == health.StatusUnhealthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipModel, "skip-model", false, "do not warm the model before probing")
	return cmd
}

func writeHealth(w io.Writer, h *health.OverallHealth) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(health.NewHealthResponse(h))
}
