package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// duplicatesFileName is the single sink every worker in a run appends
// to when --write-duplicates is set.
const duplicatesFileName = "duplicates.txt"

// duplicatesWriter serializes appends from every worker goroutine behind
// one mutex so lines never interleave mid-write. Writes are not fsynced
// between files: a crash mid-run can lose the tail of buffered output,
// which is an accepted tradeoff against fsyncing once per duplicate unit.
type duplicatesWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

func newDuplicatesWriter(outputDir string) (*duplicatesWriter, error) {
	f, err := os.OpenFile(
		filepath.Join(outputDir, duplicatesFileName),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open duplicates stream: %w", err)
	}

	return &duplicatesWriter{f: f, w: bufio.NewWriter(f)}, nil
}

func (d *duplicatesWriter) writeLine(unit []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.w.Write(unit); err != nil {
		return fmt.Errorf("pipeline: write duplicates stream: %w", err)
	}

	if err := d.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("pipeline: write duplicates stream: %w", err)
	}

	return nil
}

func (d *duplicatesWriter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.w.Flush(); err != nil {
		_ = d.f.Close()

		return fmt.Errorf("pipeline: flush duplicates stream: %w", err)
	}

	if err := d.f.Close(); err != nil {
		return fmt.Errorf("pipeline: close duplicates stream: %w", err)
	}

	return nil
}
