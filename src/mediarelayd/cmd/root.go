package cmd

import (
	"log/slog"
	"os"

	"github.com/q-controller/mediarelay/src/pkg/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "mediarelayd",
	Short:         "A content-addressed media relay with on-demand optimization",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	slog.SetDefault(logging.CreateLogger(logging.LevelFromEnv("info")))
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("failed to execute command", "error", err)
		os.Exit(1)
	}
}
