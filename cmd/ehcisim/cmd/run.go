package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/softehci/internal/scenario"
)

var (
	jobs         int
	reportFormat string
)

var runCmd = &cobra.Command{
	Use:   "run <scenario-file>...",
	Short: "Run scenario files and print their final state",
	Long: `Load, build and execute each scenario file, then print a report of the
registers, queue heads, qTDs and device data buffers it left behind.

Every file runs against its own controller state, so files are executed
concurrently. Reports are printed in argument order.

Examples:
  ehcisim run enumerate.yaml
  ehcisim run -v --format text a.yaml b.yaml
  ehcisim run --jobs 1 scenarios/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0),
		"maximum scenarios run at once")
	runCmd.Flags().StringVarP(&reportFormat, "format", "f", "yaml",
		"report format (yaml, text)")
}

func runRun(cmd *cobra.Command, args []string) error {
	if reportFormat != "yaml" && reportFormat != "text" {
		return fmt.Errorf("unknown report format %q", reportFormat)
	}
	if jobs < 1 {
		return fmt.Errorf("--jobs must be at least 1, got %d", jobs)
	}

	reports := make([]*scenario.Report, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	for i, path := range args {
		g.Go(func() error {
			rep, err := scenario.Run(ctx, path)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, rep := range reports {
		if len(reports) > 1 && reportFormat == "yaml" {
			fmt.Fprintln(out, "---")
		} else if i > 0 {
			fmt.Fprintln(out)
		}
		var err error
		if reportFormat == "text" {
			err = rep.WriteText(out)
		} else {
			err = rep.WriteYAML(out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
