// Command textdedup deduplicates large corpora of UTF-8 text files at
// sentence, line, paragraph, or document granularity using a sharded
// Robin-Hood hash set and an optional Block Tree index.
package main

import (
	"fmt"
	"os"

	"github.com/sumatoshi-tech/textdedup/cmd/textdedup/commands"
	"github.com/sumatoshi-tech/textdedup/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := commands.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
