package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/autostand/internal/config"
	"github.com/oshokin/autostand/internal/logger"
	"github.com/oshokin/autostand/internal/service/server"
	"github.com/oshokin/autostand/internal/version"
)

// errUnknownLogFormat is returned for a --log-format other than console or json.
var errUnknownLogFormat = errors.New("unknown log format")

var (
	// logFormat selects the log encoder.
	logFormat string
	// configPath to the simulator YAML file.
	configPath string
	// profile selects the exposed method surface.
	profile string
	// stateFile path where stand state is persisted.
	stateFile string
	// eventsFile receives the webhook-style confirmation lines.
	eventsFile string

	// rootCmd represents the base command for running the simulated controller.
	rootCmd = &cobra.Command{
		Use:   "autostand-sim [listen-address]",
		Short: "Run a simulated stand controller.",
		Long: `Starts a gRPC server that behaves like a stand controller.

The profile picks which generation of the controller surface is exposed:
v3 has blocking Up/Down with async variants and transactions,
v2 has Open/Close with a wait flag and WaitForTransaction,
v1 has only async operations and RequestOperation.

Each completed motion appends a webhook line to the events file, so the
autostand client can confirm operations by watching it.
Stand state is persisted to JSON file for recovery across restarts.`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: applyLogFormat,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				Profile:       profile,
				StateFile:     stateFile,
				EventsFile:    eventsFile,
			}

			return server.Run(ctx, options)
		},
	}
)

func applyLogFormat(_ *cobra.Command, _ []string) error {
	format, ok := logger.ParseFormat(logFormat)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogFormat, logFormat)
	}

	logger.UseFormat(format)

	return nil
}

// Execute runs the autostand-sim CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultSimulatorConfigFilename+", optional)")
	rootCmd.Flags().StringVarP(&profile, "profile", "p", "", "method surface: v1, v2 or v3")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to persist stand state")
	rootCmd.Flags().StringVar(&logFormat, "log-format", string(logger.FormatConsole), "log encoder: console or json")
	rootCmd.Flags().StringVarP(&eventsFile, "events-file", "e", "", "path to append webhook lines to")
}
