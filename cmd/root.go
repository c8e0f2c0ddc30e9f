package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "adaptest",
	Short: "Adaptive exam-topic testing engine",
	Long: "adaptest estimates per-topic ability with 3PL IRT, builds adaptive quizzes " +
		"from an item bank, and commits completed quizzes atomically.",
	SilenceUsage: true,
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (overrides ADAPTEST_CONFIG env var)")
	rootCmd.PersistentFlags().String("db", "", "Path to the database (overrides ADAPTEST_DB env var)")
	rootCmd.PersistentFlags().String("backend", "", "Store backend: sqlite, badger, or memory")
	rootCmd.PersistentFlags().String("log", "", "Log mode: production, development, or nop")
	rootCmd.PersistentFlags().Bool("json", false, "Print JSON instead of formatted output")

	rootCmd.AddCommand(bankCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}
