// Package cli is the command line of the service: serve runs the HTTP API,
// query and health talk to the inference endpoint directly.
package cli

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"vizinsight/config"
	"vizinsight/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	console    bool
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "viz",
		Short:         "Ask questions about your data and get answers, SQL and charts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := opts.logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			logging.Setup(level, cmd.ErrOrStderr(), opts.console)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("VIZ_CONFIG"), "YAML config file applied over the environment")
	flags.StringVar(&opts.logLevel, "log-level", "", "trace, debug, info, warn or error")
	flags.BoolVar(&opts.console, "console", isatty.IsTerminal(os.Stderr.Fd()), "human-readable log output")

	root.AddCommand(newServeCommand(opts), newQueryCommand(opts), newHealthCommand(opts))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
