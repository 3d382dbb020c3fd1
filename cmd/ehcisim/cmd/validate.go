package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ardnew/softehci/internal/scenario"
)

var validateCmd = &cobra.Command{
	Use:   "validate <scenario-file>...",
	Short: "Check scenario files without running them",
	Long: `Parse and validate each scenario file. Every file is checked; the
command fails if any of them is invalid.

Examples:
  ehcisim validate enumerate.yaml
  ehcisim validate scenarios/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var errs []error
	for _, path := range args {
		sc, err := scenario.Load(path)
		if err != nil {
			fmt.Fprintf(out, "FAIL %s\n", path)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (%d controllers, %d devices, %d steps)\n",
			path, len(sc.Controllers), len(sc.Devices), len(sc.Steps))
	}
	return errors.Join(errs...)
}
