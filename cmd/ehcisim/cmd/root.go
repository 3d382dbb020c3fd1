package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ardnew/softehci/pkg"
)

var (
	// Global flags
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "ehcisim",
	Short: "Simulated EHCI host controller",
	Long: `Replay USB host controller scenarios against a simulated EHCI
schedule engine. A scenario file provisions controllers, queue heads, qTDs
and device control pipes, then plays transfer completions, transaction
errors and port events against them.

Examples:
  ehcisim run examples/scenarios/dual-controller.yaml      # Run and print a YAML report
  ehcisim run --format text --jobs 4 scenarios/*.yaml      # Run many files concurrently
  ehcisim validate scenarios/*.yaml                        # Check files without running`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: configureLogging,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
}

func configureLogging(cmd *cobra.Command, _ []string) error {
	format, ok := pkg.ParseLogFormat(logFormat)
	if !ok {
		return fmt.Errorf("unknown log format %q", logFormat)
	}
	pkg.SetLogFormat(cmd.ErrOrStderr(), format)
	if verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	} else {
		pkg.SetLogLevel(slog.LevelWarn)
	}
	return nil
}
