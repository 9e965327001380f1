// Package cli implements vaelisctl, the operator command line for the
// Vaelis API. It reads the same VAELIS_* configuration as the server.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "vaelisctl",
	Short: "Operate a Vaelis API deployment",
	Long: `vaelisctl runs one-off generations and searches against the configured
providers, issues access tokens and manages database migrations.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}

// commandLogger logs to stderr so that stdout carries only command output.
func commandLogger(cmd *cobra.Command) *slog.Logger {
	return logger.SetupWithWriter(cmd.ErrOrStderr(), logLevel)
}
