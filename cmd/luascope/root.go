package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	log zerolog.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "luascope",
		Short: "Run Lua scripts with a remote debugger",
		Long:  "Luascope runs Lua scripts and exposes them to DevTools-style front-ends over WebSocket.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevelOrDefault())
			if err != nil {
				return fmt.Errorf("invalid log level %q", logLevel)
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Timestamp().Logger()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func logLevelOrDefault() string {
	if logLevel == "" {
		return "info"
	}
	return logLevel
}

// Execute runs the root command.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
