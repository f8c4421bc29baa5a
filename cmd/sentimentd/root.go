package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/sentimentd/config"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = ""
)

var errUnhealthy = errors.New("service unhealthy")

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "sentimentd",
		Short:         "Sentiment analysis service",
		Long:          "sentimentd serves sentiment analysis over HTTP and monitors its own health, alerting on sustained failure.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func (o *rootOptions) load(ctx context.Context) (*config.Config, error) {
	return config.LoadContext(ctx, o.configPath)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(out io.Writer) error {
	fmt.Fprintf(out, "sentimentd version %s\n", version)
	if commit != "" {
		fmt.Fprintf(out, "Commit: %s\n", commit)
	}
	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	return nil
}
