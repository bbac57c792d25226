package main

import (
	"github.com/MrEthical07/gatekeeper/internal/config"
	"github.com/MrEthical07/gatekeeper/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string

	cfg    *config.Config
	logger *logrus.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Token and session authentication service",
		Long:  "gatekeeper issues signed tokens, tracks one live session per user and role, and guards HTTP routes.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				loaded.Log.Level = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				loaded.Log.Format = flagLogFormat
			}
			cfg = loaded
			logger = logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newTokenCmd(),
		newLoadtestCmd(),
	)

	return root
}
