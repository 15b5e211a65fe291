package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/textdedup/internal/report"
)

type reportOptions struct {
	global globalFlags
	output string
}

// NewReportCommand builds the `report` subcommand: it renders an HTML
// summary of a completed dedup run from its output directory.
func NewReportCommand(global *globalFlags) *cobra.Command {
	opts := &reportOptions{global: *global}

	cmd := &cobra.Command{
		Use:   "report <output_dir>",
		Short: "Render an HTML summary of a completed dedup run",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts.global = *global

			return runReport(opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Report HTML path (default: <output_dir>/report.html)")

	return cmd
}

func runReport(opts *reportOptions, args []string) error {
	outputDir := args[0]

	summary, err := report.BuildSummary(outputDir)
	if err != nil {
		return err
	}

	reportPath := opts.output
	if reportPath == "" {
		reportPath = filepath.Join(outputDir, "report.html")
	}

	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := report.Render(summary, f); err != nil {
		return err
	}

	if !opts.global.quiet {
		fmt.Fprintf(os.Stdout, "report written to %s\n", reportPath)
	}

	return nil
}
