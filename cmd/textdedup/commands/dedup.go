package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/textdedup/internal/cli"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/hashpool"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/index"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/pipeline"
	"github.com/sumatoshi-tech/textdedup/pkg/budget"
	"github.com/sumatoshi-tech/textdedup/pkg/config"
	"github.com/sumatoshi-tech/textdedup/pkg/observability"
)

const (
	defaultBlockTreeS   = 2
	defaultBlockTreeTau = 2
)

// dedupOptions holds the flags for the dedup subcommand (and bare invocation).
type dedupOptions struct {
	global globalFlags

	dedupMode       string
	writeDuplicates bool
	buildBlockTree  bool
	maxLength       int
	workers         int
	memoryBudget    string
	otlpEndpoint    string
	logJSON         bool
}

// NewDedupCommand builds the `dedup` subcommand, also reachable as the bare
// `<prog> input_dir output_dir [glob]` invocation via the root command.
func NewDedupCommand(global *globalFlags) *cobra.Command {
	opts := &dedupOptions{global: *global}

	cmd := &cobra.Command{
		Use:   "dedup <input_dir> <output_dir> [glob]",
		Short: "Deduplicate a directory of text files",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.global = *global

			return runDedup(cmd, opts, args)
		},
	}

	registerDedupFlags(cmd, opts)

	return cmd
}

func registerDedupFlags(cmd *cobra.Command, opts *dedupOptions) {
	cmd.Flags().StringVar(&opts.dedupMode, "dedup-mode", "sentence", "Dedup granularity: sentence, line, paragraph, document")
	cmd.Flags().BoolVar(&opts.writeDuplicates, "write-duplicates", false, "Write detected duplicate units to duplicates.txt")
	cmd.Flags().BoolVar(&opts.buildBlockTree, "build-block-tree", false, "Build and verify a Block Tree over each written file")
	cmd.Flags().IntVar(&opts.maxLength, "max-length", 0, "Maximum bytes compared per unit (0 = unlimited)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Number of worker goroutines (0 = DEDUP_THREADS or CPU count)")
	cmd.Flags().StringVar(&opts.memoryBudget, "memory-budget", "", "Auto-tune workers/index sizing for a memory budget (e.g. 512MB, 2GB)")
	cmd.Flags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector endpoint (empty disables export)")
	cmd.Flags().BoolVar(&opts.logJSON, "log-json", false, "Emit structured JSON logs")
}

func runDedup(cmd *cobra.Command, opts *dedupOptions, args []string) error {
	inputDir, outputDir := args[0], args[1]

	glob := ""
	if len(args) == 3 {
		glob = args[2]
	}

	cfg, err := loadConfig(opts.global.configFile)
	if err != nil {
		return err
	}

	applyDedupConfigDefaults(cmd, opts, cfg)

	mode, err := parseMode(opts.dedupMode)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	names, err := listFiles(inputDir, glob)
	if err != nil {
		return err
	}

	providers, err := initObservability(observability.ModeCLI, opts.otlpEndpoint, opts.logJSON, opts.global.quiet)
	if err != nil {
		return err
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	workers, indexCapacity, err := resolveSizing(opts.workers, opts.memoryBudget)
	if err != nil {
		return err
	}

	global, err := index.Init(indexCapacity)
	if err != nil {
		return fmt.Errorf("init dedup index: %w", err)
	}
	defer global.Destroy()

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init pipeline metrics: %w", err)
	}

	var pool *hashpool.Pool
	if opts.buildBlockTree {
		pool = hashpool.New(hashpool.ResolveThreadCount("BLOCK_TREE_THREADS"))
		defer pool.Shutdown()
	}

	progress := cli.NewProgress(os.Stdout, opts.global.noColor)

	pipelineCfg := pipeline.Config{
		Mode:            mode,
		MaxCompareLen:   opts.maxLength,
		WriteDuplicates: opts.writeDuplicates,
		BuildBlockTree:  opts.buildBlockTree,
		BlockTreeS:      defaultBlockTreeS,
		BlockTreeTau:    defaultBlockTreeTau,
		Workers:         workers,
		HashPool:        pool,
		Metrics:         metrics,
		Logger:          providers.Logger,
	}

	stats, err := pipeline.Run(context.Background(), pipeline.Request{
		InputDir:  inputDir,
		OutputDir: outputDir,
		Names:     names,
		Global:    global,
		Config:    pipelineCfg,
		OnProgress: func(s pipeline.Snapshot) {
			if !opts.global.quiet {
				progress.OnProgress(s)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("dedup run: %w", err)
	}

	if !opts.global.quiet {
		progress.Final(pipeline.Snapshot{
			FilesWritten: stats.FilesWritten.Load(), FilesEmpty: stats.FilesEmpty.Load(),
			UniqueUnits: stats.UniqueUnits.Load(), DuplicateUnits: stats.DuplicateUnits.Load(),
			Errors: stats.Errors.Load(), Processed: stats.Processed.Load(),
			BytesProcessed: stats.BytesProcessed.Load(),
		})
	}

	if stats.Errors.Load() > 0 {
		return errDedupHadErrors
	}

	return nil
}

// applyDedupConfigDefaults fills in flags the user left at their cobra
// default from the loaded config (which already reflects environment
// overrides via viper), honoring the precedence flags > env > yaml > defaults.
func applyDedupConfigDefaults(cmd *cobra.Command, opts *dedupOptions, cfg *config.Config) {
	flags := cmd.Flags()

	if !flags.Changed("dedup-mode") {
		opts.dedupMode = cfg.Pipeline.DedupMode
	}

	if !flags.Changed("max-length") {
		opts.maxLength = cfg.Pipeline.MaxLength
	}

	if !flags.Changed("workers") {
		opts.workers = cfg.Pipeline.Workers
	}

	if !flags.Changed("write-duplicates") {
		opts.writeDuplicates = cfg.Pipeline.WriteDuplicates
	}

	if !flags.Changed("memory-budget") {
		opts.memoryBudget = cfg.Pipeline.MemoryBudget
	}

	if !flags.Changed("otlp-endpoint") {
		opts.otlpEndpoint = cfg.Observability.OTLPEndpoint
	}
}

// errDedupHadErrors causes the CLI to exit 1 per spec.md §6 without
// repeating per-file error text already logged during the run.
var errDedupHadErrors = errors.New("one or more files failed during dedup")

// resolveSizing turns --workers/--memory-budget into concrete pipeline
// knobs. An explicit --workers always wins; --memory-budget only fills in
// what --workers left at its zero value.
func resolveSizing(workers int, memoryBudget string) (resolvedWorkers, indexCapacity int, err error) {
	indexCapacity = index.MinBucketCount

	if memoryBudget == "" {
		return workers, indexCapacity, nil
	}

	bytes, parseErr := humanize.ParseBytes(memoryBudget)
	if parseErr != nil {
		return 0, 0, fmt.Errorf("invalid --memory-budget %q: %w", memoryBudget, parseErr)
	}

	cfg, solveErr := budget.SolveForBudget(int64(bytes))
	if solveErr != nil {
		return 0, 0, fmt.Errorf("solve memory budget: %w", solveErr)
	}

	if workers == 0 {
		workers = cfg.Workers
	}

	indexCapacity = max(indexCapacity, int(cfg.IndexMemory/index.AvgSentenceBytes))

	return workers, indexCapacity, nil
}
