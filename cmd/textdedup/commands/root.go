package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the textdedup root command: `dedup`, `verify`,
// `search`, `report`, and `mcp` subcommands, plus a bare
// `<prog> input_dir output_dir [glob]` invocation that dispatches straight
// to dedup mode (spec.md §6's CLI surface).
func NewRootCommand() *cobra.Command {
	global := &globalFlags{}

	// Registered below with the dedup flag set so the bare invocation
	// `<prog> input_dir output_dir [glob]` behaves like `dedup` without
	// naming the subcommand explicitly.
	bareOpts := &dedupOptions{}

	root := &cobra.Command{
		Use:   "textdedup",
		Short: "Concurrent text deduplication at sentence, line, paragraph, or document granularity",
		Long: `textdedup deduplicates large corpora of UTF-8 text files.

Commands:
  dedup     Deduplicate a directory of text files (also the bare invocation)
  verify    Re-check an already-deduped directory for residual duplicates
  search    Build a Block Tree over a directory and answer substring queries
  report    Render an HTML summary of a completed dedup run
  mcp       Run a Model Context Protocol server exposing dedup_run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return cmd.Help()
			}

			bareOpts.global = *global

			return runDedup(cmd, bareOpts, args)
		},
	}

	root.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVarP(&global.quiet, "quiet", "q", false, "suppress progress output")
	root.PersistentFlags().BoolVar(&global.noColor, "no-color", false, "disable colored progress output")
	root.PersistentFlags().StringVar(&global.configFile, "config", "", "Configuration file path (default: textdedup.yaml in CWD)")

	registerDedupFlags(root, bareOpts)

	root.AddCommand(
		NewDedupCommand(global),
		NewVerifyCommand(global),
		NewSearchCommand(global),
		NewReportCommand(global),
		NewMCPCommand(global),
		NewVersionCommand(),
	)

	return root
}
