package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sumatoshi-tech/textdedup/internal/dedup/hashpool"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/index"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/pipeline"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/splitter"
)

// Tool name constant.
const ToolNameDedupRun = "dedup_run"

const defaultDedupRunMode = "sentence"

const (
	blockTreeS   = 2
	blockTreeTau = 2
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyInputDir indicates the input_dir parameter is empty.
	ErrEmptyInputDir = errors.New("input_dir parameter is required and must not be empty")
	// ErrEmptyOutputDir indicates the output_dir parameter is empty.
	ErrEmptyOutputDir = errors.New("output_dir parameter is required and must not be empty")
	// ErrInputDirNotFound indicates the input directory does not exist.
	ErrInputDirNotFound = errors.New("input directory does not exist")
)

// DedupRunInput is the input schema for the dedup_run tool.
type DedupRunInput struct {
	InputDir        string `json:"input_dir"                   jsonschema:"absolute path to a directory of text files to deduplicate"`
	OutputDir       string `json:"output_dir"                  jsonschema:"absolute path to write deduplicated files to"`
	Glob            string `json:"glob,omitempty"              jsonschema:"optional glob filter applied to file names in input_dir"`
	DedupMode       string `json:"dedup_mode,omitempty"        jsonschema:"dedup granularity: sentence, line, paragraph, or document (default: sentence)"`
	MaxLength       int    `json:"max_length,omitempty"        jsonschema:"maximum bytes compared per unit (0 = unlimited)"`
	WriteDuplicates bool   `json:"write_duplicates,omitempty"  jsonschema:"write detected duplicate units to duplicates.txt"`
	BuildBlockTree  bool   `json:"build_block_tree,omitempty"  jsonschema:"build and verify a Block Tree over each written file"`
	Workers         int    `json:"workers,omitempty"           jsonschema:"worker goroutine count (0 = DEDUP_THREADS or CPU count)"`
}

// DedupRunOutput is the structured result of a dedup_run invocation.
type DedupRunOutput struct {
	FilesWritten   int64 `json:"files_written"`
	FilesEmpty     int64 `json:"files_empty"`
	UniqueUnits    int64 `json:"unique_units"`
	DuplicateUnits int64 `json:"duplicate_units"`
	Errors         int64 `json:"errors"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateDedupRunInput(in DedupRunInput) error {
	if in.InputDir == "" {
		return ErrEmptyInputDir
	}

	if in.OutputDir == "" {
		return ErrEmptyOutputDir
	}

	if _, err := os.Stat(in.InputDir); err != nil {
		return fmt.Errorf("%w: %s", ErrInputDirNotFound, in.InputDir)
	}

	return nil
}

func handleDedupRun(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in DedupRunInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateDedupRunInput(in); err != nil {
		return errorResult(err)
	}

	modeStr := in.DedupMode
	if modeStr == "" {
		modeStr = defaultDedupRunMode
	}

	mode := splitter.Mode(modeStr)
	if _, ok := splitter.For(mode); !ok {
		return errorResult(fmt.Errorf("unknown dedup_mode: %q", modeStr))
	}

	if err := os.MkdirAll(in.OutputDir, 0o755); err != nil {
		return errorResult(fmt.Errorf("create output dir: %w", err))
	}

	names, err := listDedupRunFiles(in.InputDir, in.Glob)
	if err != nil {
		return errorResult(err)
	}

	global, err := index.Init(index.MinBucketCount)
	if err != nil {
		return errorResult(fmt.Errorf("init dedup index: %w", err))
	}
	defer global.Destroy()

	var pool *hashpool.Pool
	if in.BuildBlockTree {
		pool = hashpool.New(hashpool.ResolveThreadCount("BLOCK_TREE_THREADS"))
		defer pool.Shutdown()
	}

	stats, err := pipeline.Run(ctx, pipeline.Request{
		InputDir:  in.InputDir,
		OutputDir: in.OutputDir,
		Names:     names,
		Global:    global,
		Config: pipeline.Config{
			Mode:            mode,
			MaxCompareLen:   in.MaxLength,
			WriteDuplicates: in.WriteDuplicates,
			BuildBlockTree:  in.BuildBlockTree,
			BlockTreeS:      blockTreeS,
			BlockTreeTau:    blockTreeTau,
			Workers:         in.Workers,
			HashPool:        pool,
		},
	})
	if err != nil {
		return errorResult(fmt.Errorf("dedup run: %w", err))
	}

	return jsonResult(DedupRunOutput{
		FilesWritten:   stats.FilesWritten.Load(),
		FilesEmpty:     stats.FilesEmpty.Load(),
		UniqueUnits:    stats.UniqueUnits.Load(),
		DuplicateUnits: stats.DuplicateUnits.Load(),
		Errors:         stats.Errors.Load(),
	})
}

func listDedupRunFiles(dir, glob string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		if glob != "" {
			matched, matchErr := filepath.Match(glob, e.Name())
			if matchErr != nil {
				return nil, fmt.Errorf("invalid glob %q: %w", glob, matchErr)
			}

			if !matched {
				continue
			}
		}

		names = append(names, e.Name())
	}

	return names, nil
}
