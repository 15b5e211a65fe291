package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/textdedup/internal/dedup/blocktree"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/codec"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/hashpool"
	"github.com/sumatoshi-tech/textdedup/pkg/alg/lru"
)

const (
	searchBlockTreeS   = 2
	searchBlockTreeTau = 2
	defaultSearchLimit = 1000
	searchCacheEntries = 256
)

type searchOptions struct {
	global globalFlags
	limit  int
}

// searchResult is what one substring query resolves to; cached by query
// string so repeated REPL queries skip the linear scan entirely.
type searchResult struct {
	found bool
	pos   int
}

// NewSearchCommand builds the `search` subcommand: it concatenates the
// matched files into one text, builds a single Block Tree over it, and
// opens a line-oriented REPL answering substring-presence queries.
func NewSearchCommand(global *globalFlags) *cobra.Command {
	opts := &searchOptions{global: *global}

	cmd := &cobra.Command{
		Use:   "search <dir> [glob]",
		Short: "Build a Block Tree over a directory and answer substring queries interactively",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			opts.global = *global

			return runSearch(opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", defaultSearchLimit, "Maximum number of files to include in the search corpus")

	return cmd
}

func runSearch(opts *searchOptions, args []string) error {
	dir := args[0]

	glob := ""
	if len(args) == 2 {
		glob = args[1]
	}

	names, err := listFiles(dir, glob)
	if err != nil {
		return err
	}

	if len(names) > opts.limit {
		names = names[:opts.limit]
	}

	text, err := loadCorpus(dir, names)
	if err != nil {
		return err
	}

	pool := hashpool.New(hashpool.ResolveThreadCount("BLOCK_TREE_THREADS"))
	defer pool.Shutdown()

	root, err := blocktree.Build(text, searchBlockTreeS, searchBlockTreeTau, pool)
	if err != nil {
		return fmt.Errorf("build search index: %w", err)
	}

	cache := lru.New[string, searchResult](lru.WithMaxEntries[string, searchResult](searchCacheEntries))

	if !opts.global.quiet {
		fmt.Fprintf(os.Stdout, "indexed %d file(s), %d runes. Enter a substring to search, or Ctrl-D to quit.\n", len(names), len(text))
	}

	return runSearchREPL(os.Stdin, os.Stdout, root, text, cache)
}

func loadCorpus(dir string, names []string) ([]rune, error) {
	var sb strings.Builder

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		sb.Write(raw)
		sb.WriteByte('\n')
	}

	runes, _ := codec.Decode([]byte(sb.String()))

	return runes, nil
}

func runSearchREPL(in *os.File, out *os.File, root *blocktree.Node, text []rune, cache *lru.Cache[string, searchResult]) error {
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		query := scanner.Text()
		if query == "" {
			continue
		}

		result, hit := cache.Get(query)
		if !hit {
			result = searchSubstring(root, text, query)
			cache.Put(query, result)
		}

		if result.found {
			fmt.Fprintf(out, "found at position %s\n", strconv.Itoa(result.pos))
		} else {
			fmt.Fprintln(out, "not found")
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read query: %w", err)
	}

	return nil
}

// searchSubstring does a linear scan over every start position, resolving
// each candidate rune through the Block Tree's pointer/marked redirection
// via Access rather than indexing text directly, so a query match is
// verified against the structure a --build-block-tree run would produce.
func searchSubstring(root *blocktree.Node, text []rune, query string) searchResult {
	needle := []rune(query)
	if len(needle) == 0 || len(needle) > len(text) {
		return searchResult{found: false}
	}

	for start := 0; start+len(needle) <= len(text); start++ {
		matched := true

		for j, want := range needle {
			if blocktree.Access(root, start+j, text) != want {
				matched = false
				break
			}
		}

		if matched {
			return searchResult{found: true, pos: start}
		}
	}

	return searchResult{found: false}
}
