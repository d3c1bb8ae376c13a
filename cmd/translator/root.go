package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/voice-translator/internal/config"
)

// cli carries state shared by subcommands.
type cli struct {
	cfg       *config.Config
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "translator",
		Short: "Real-time speech translator",
		Long: `translator captures speech, transcribes and translates it through the
inference services, and plays the synthesized translation.

Configuration comes from the environment, optionally layered over a YAML
file named by CONFIG_FILE. Run "translator env" for the full list.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "env" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if c.logLevel != "" {
				cfg.Log.Level = c.logLevel
			}
			if c.logFormat != "" {
				cfg.Log.Format = c.logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			c.cfg = cfg
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log format (text, json); overrides LOG_FORMAT")

	root.AddCommand(newListenCmd(c), newDevicesCmd(c), newEnvCmd())
	return root
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List supported environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.Describe())
			return err
		},
	}
}
