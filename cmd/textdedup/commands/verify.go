package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/textdedup/internal/cli"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/index"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/pipeline"
	"github.com/sumatoshi-tech/textdedup/pkg/observability"
)

// errResidualDuplicates is returned when --verify finds duplicates in an
// already-deduped directory; spec.md §6 requires exit 1 in this case.
var errResidualDuplicates = errors.New("residual duplicates found")

type verifyOptions struct {
	global globalFlags

	dedupMode string
	maxLength int
	workers   int
}

// NewVerifyCommand builds the `verify` subcommand: it re-derives units from
// an already-deduped directory and reports any residual duplicates.
// Internally this shares pipeline.Run with dedup mode, but the global index
// is never cleared between files, so a "duplicate" here is any unit seen
// earlier in the directory, whether in the same file or in another one.
func NewVerifyCommand(global *globalFlags) *cobra.Command {
	opts := &verifyOptions{global: *global}

	cmd := &cobra.Command{
		Use:   "verify <dir> [glob]",
		Short: "Re-check a deduped directory for residual duplicates",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			opts.global = *global

			return runVerify(opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.dedupMode, "dedup-mode", "sentence", "Dedup granularity: sentence, line, paragraph, document")
	cmd.Flags().IntVar(&opts.maxLength, "max-length", 0, "Maximum bytes compared per unit (0 = unlimited)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Number of worker goroutines (0 = DEDUP_THREADS or CPU count)")

	return cmd
}

func runVerify(opts *verifyOptions, args []string) error {
	dir := args[0]

	glob := ""
	if len(args) == 2 {
		glob = args[1]
	}

	mode, err := parseMode(opts.dedupMode)
	if err != nil {
		return err
	}

	names, err := listFiles(dir, glob)
	if err != nil {
		return err
	}

	providers, err := initObservability(observability.ModeCLI, "", false, opts.global.quiet)
	if err != nil {
		return err
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	global, err := index.Init(index.MinBucketCount)
	if err != nil {
		return fmt.Errorf("init verification index: %w", err)
	}
	defer global.Destroy()

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init pipeline metrics: %w", err)
	}

	// Re-derived output is discarded: verification reuses the dedup write
	// path but points it at a scratch directory nobody reads.
	scratch, err := os.MkdirTemp("", "textdedup-verify-*")
	if err != nil {
		return fmt.Errorf("create verify scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	progress := cli.NewProgress(os.Stdout, opts.global.noColor)

	stats, err := pipeline.Run(context.Background(), pipeline.Request{
		InputDir:  dir,
		OutputDir: scratch,
		Names:     names,
		Global:    global,
		Config: pipeline.Config{
			Mode:              mode,
			MaxCompareLen:     opts.maxLength,
			TrackHeavyHitters: true,
			Workers:           opts.workers,
			Metrics:           metrics,
			Logger:            providers.Logger,
		},
		OnProgress: func(s pipeline.Snapshot) {
			if !opts.global.quiet {
				progress.OnProgress(s)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("verify run: %w", err)
	}

	if !opts.global.quiet {
		progress.Final(pipeline.Snapshot{
			Processed: stats.Processed.Load(), UniqueUnits: stats.UniqueUnits.Load(),
			DuplicateUnits: stats.DuplicateUnits.Load(), Errors: stats.Errors.Load(),
		})
	}

	if stats.Errors.Load() > 0 {
		return errDedupHadErrors
	}

	if stats.DuplicateUnits.Load() > 0 {
		fmt.Fprintf(os.Stderr, "verify: %d residual duplicate unit(s) found across %d file(s)\n",
			stats.DuplicateUnits.Load(), len(names))

		return errResidualDuplicates
	}

	return nil
}
