package main

import (
	"github.com/Sternrassler/mycase-client/pkg/config"
	"github.com/Sternrassler/mycase-client/pkg/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	verbose    bool
	pretty     bool
	quiet      bool
}

// load reads the configuration, sets up logging and builds the app.
func (o *rootOptions) load() (*app, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.LoggingConfig()
	if o.verbose {
		logCfg.Level = logging.LevelDebug
	}
	if o.pretty {
		logCfg.Pretty = true
	}
	logging.Setup(logCfg)
	if o.quiet {
		logging.Disable()
	}

	return newApp(cfg)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "mycase",
		Short: "Resilient MyCase API client",
		Long: `mycase talks to the MyCase REST API with client-side rate limiting,
retries with backoff, token refresh and cursor pagination.

Configuration comes from an optional YAML file, a .env file and MYCASE_*
environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "human-readable log output")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "disable logging")

	root.AddCommand(
		newGetCmd(opts),
		newFetchCmd(opts),
		newServeCmd(opts),
		newAuthCmd(opts),
		newResourcesCmd(),
	)

	return root
}
