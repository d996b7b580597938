package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ara/internal/config"
)

// rootOptions carries flag values shared by every subcommand.
type rootOptions struct {
	configFile string
	flags      *config.Config
}

// newRootCmd builds the command tree. Each call gets its own flag state.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{flags: config.New()}

	cmd := &cobra.Command{
		Use:           "ara",
		Short:         "ARA records playbook runs and serves them as a web report",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().IntVar(&opts.flags.PathMax, "path-max", opts.flags.PathMax, "Maximum displayed path width (ARA_PATH_MAX)")
	cmd.PersistentFlags().StringVar(&opts.flags.LogLevel, "log-level", opts.flags.LogLevel, "Log level: debug|info|warn|error")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRenderCmd(opts))
	return cmd
}

// loadConfig layers defaults, the config file, the environment and then any
// flags the user set explicitly.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New()
	if o.configFile != "" {
		if err := cfg.LoadFile(o.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("path-max") {
		cfg.PathMax = o.flags.PathMax
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.flags.LogLevel
	}
	if flags.Changed("host") {
		cfg.Host = o.flags.Host
	}
	if flags.Changed("port") {
		cfg.Port = o.flags.Port
	}
	if flags.Changed("db") {
		cfg.DBPath = o.flags.DBPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ara:", err)
		os.Exit(1)
	}
}
