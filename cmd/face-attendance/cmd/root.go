package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/face-attendance/internal/config"
	"github.com/oshokin/face-attendance/internal/logger"
	"github.com/oshokin/face-attendance/internal/service/common"
	"github.com/oshokin/face-attendance/internal/version"
)

var (
	// errUnknownLogLevel is returned for a --log-level value zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")
	// errInvalidID is returned for an identifier argument that is not a positive number.
	errInvalidID = errors.New("id must be a positive number")
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// serverURL overrides the portal URL from the configuration.
	serverURL string
	// logLevel overrides the log level from the configuration.
	logLevel string

	// rootCmd represents the base command.
	rootCmd = &cobra.Command{
		Use:   "face-attendance",
		Short: "Face-verified attendance portal client.",
		Long: `Command-line client of the face attendance portal.

Students log in with their NIM and record today's attendance with a photo taken
from the configured camera source. The photo is first checked for exactly one
face and only then submitted for recognition. Administrators manage the student
roster and review or correct attendance records.

The portal URL, request timeout and camera source are read from the settings
file, a .env file next to it and FACE_ATTENDANCE_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Apply the flag level before any service logs.
			if !cmd.Flags().Changed("log-level") {
				return nil
			}

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the face-attendance CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// commonOptions collects the persistent flags.
func commonOptions(cmd *cobra.Command) common.Options {
	opts := common.Options{
		ConfigPath: configPath,
		ServerURL:  serverURL,
		Out:        cmd.OutOrStdout(),
	}

	if cmd.Flags().Changed("log-level") {
		opts.LogLevel = logLevel
	}

	return opts
}

// parseID parses a positive numeric identifier argument.
func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, arg)
	}

	return id, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup persistent flags shared by every subcommand.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "portal API URL, overrides server_url from the configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}
