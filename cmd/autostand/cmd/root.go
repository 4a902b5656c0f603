package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/autostand/internal/config"
	"github.com/oshokin/autostand/internal/logger"
	"github.com/oshokin/autostand/internal/service/client"
	"github.com/oshokin/autostand/internal/service/monitor"
	"github.com/oshokin/autostand/internal/version"
)

// errUnknownLogFormat is returned for a --log-format other than console or json.
var errUnknownLogFormat = errors.New("unknown log format")

var (
	// logFormat selects the log encoder.
	logFormat string
	// options shared by every subcommand.
	options client.Options
	// interval between monitor checks.
	interval time.Duration

	// rootCmd represents the base command for controlling the stand.
	rootCmd = &cobra.Command{
		Use:   "autostand",
		Short: "Raise, lower and inspect a motorized stand.",
		Long: `Controls a motorized stand through its remote controller.

The controller surface is probed on connect, so older controllers that only
offer async operations or transactions work the same as newer ones.
On slow endpoints (by default *.workers.dev) actuations are confirmed by
watching the controller's webhook log instead of trusting the call result.`,
		SilenceUsage:      true,
		PersistentPreRunE: applyLogFormat,
	}

	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Raise the stand.",
		Args:  cobra.NoArgs,
		RunE:  runCommand(client.CommandUp),
	}

	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Lower the stand.",
		Args:  cobra.NoArgs,
		RunE:  runCommand(client.CommandDown),
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the stand state.",
		Args:  cobra.NoArgs,
		RunE:  runCommand(client.CommandStatus),
	}

	batteryCmd = &cobra.Command{
		Use:   "battery",
		Short: "Print the battery level.",
		Args:  cobra.NoArgs,
		RunE:  runCommand(client.CommandBattery),
	}

	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Poll the stand state and warn on a low battery.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return monitor.Run(ctx, &monitor.Options{
				Client:   options,
				Interval: interval,
			})
		},
	}
)

func runCommand(command client.Command) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		opts := options
		opts.Out = cmd.OutOrStdout()

		return client.Run(ctx, &opts, command)
	}
}

func applyLogFormat(_ *cobra.Command, _ []string) error {
	format, ok := logger.ParseFormat(logFormat)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogFormat, logFormat)
	}

	logger.UseFormat(format)

	return nil
}

// Execute runs the autostand CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+", optional)")
	flags.StringVar(&options.EnvPath, "env", "", "path to .env overlay (default "+config.DefaultEnvFilename+", optional)")
	flags.StringVar(&options.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&options.Confirm, "confirm", "", "confirmation mode override (auto, always, never)")
	flags.StringVar(&logFormat, "log-format", string(logger.FormatConsole), "log encoder: console or json")
	flags.DurationVar(&options.Timeout, "timeout", 0, "operation timeout override")

	monitorCmd.Flags().DurationVarP(&interval, "interval", "i", monitor.DefaultInterval, "pause between status checks")

	rootCmd.AddCommand(upCmd, downCmd, statusCmd, batteryCmd, monitorCmd)
}
