// Package commands implements the textdedup CLI subcommands.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/sumatoshi-tech/textdedup/internal/dedup/splitter"
	"github.com/sumatoshi-tech/textdedup/pkg/config"
	"github.com/sumatoshi-tech/textdedup/pkg/observability"
)

// errUnknownDedupMode is returned when --dedup-mode names an unsupported granularity.
var errUnknownDedupMode = errors.New("unknown dedup mode")

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	verbose    bool
	quiet      bool
	noColor    bool
	configFile string
}

// listFiles enumerates regular files directly under dir, optionally filtered
// by glob (matched against the base name), sorted for deterministic batch
// ordering across runs.
func listFiles(dir, glob string) ([]string, error) {
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

	sort.Strings(names)

	return names, nil
}

// parseMode validates and converts a --dedup-mode flag value.
func parseMode(raw string) (splitter.Mode, error) {
	mode := splitter.Mode(raw)
	if _, ok := splitter.For(mode); !ok {
		return "", fmt.Errorf("%w: %q", errUnknownDedupMode, raw)
	}

	return mode, nil
}

// loadConfig wires pkg/config's viper-backed loader, returning defaults when
// configPath is empty and no textdedup.yaml is discoverable.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// initObservability builds the OTel/slog providers for one CLI invocation.
func initObservability(mode observability.AppMode, otlpEndpoint string, logJSON bool, quiet bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.Mode = mode
	cfg.OTLPEndpoint = otlpEndpoint
	cfg.LogJSON = logJSON

	if quiet {
		cfg.LogLevel = slog.LevelWarn
	}

	providers, err := observability.Init(cfg)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return providers, nil
}
