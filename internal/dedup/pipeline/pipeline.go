// Package pipeline drives the concurrent file-batch dedup run: it reads
// each input file, splits it into units, dedups those units against a
// shared index, and writes the surviving units back out. Batching,
// worker dispatch, and resource accounting here mirror the chunked
// execution shape used elsewhere in this codebase for independent units
// of work, generalized from commit chunks to files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sumatoshi-tech/textdedup/internal/dedup/hashpool"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/index"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/splitter"
	"github.com/sumatoshi-tech/textdedup/pkg/alg/cms"
	"github.com/sumatoshi-tech/textdedup/pkg/alg/hll"
	"github.com/sumatoshi-tech/textdedup/pkg/observability"
)

// FileBatchSize bounds how many files one batch hands to the worker
// pool before the next batch starts. Batches run strictly in sequence;
// within a batch, workers race over a shared cursor.
const FileBatchSize = 4096

// cardinalityPrecision sizes the approx_unique HyperLogLog diagnostic;
// 14 gives ~0.8% standard error at 16KB of register memory, ample for a
// mid-run estimate nobody treats as authoritative.
const cardinalityPrecision = 14

// heavyHitterEpsilon/heavyHitterDelta size the --verify duplicate
// heavy-hitters sketch: 0.1% of total count as the error bound, 99%
// confidence.
const (
	heavyHitterEpsilon = 0.001
	heavyHitterDelta   = 0.01
)

// ErrUnknownMode is returned when Config.Mode does not name a registered
// splitter.
var ErrUnknownMode = errors.New("pipeline: unknown dedup mode")

// ErrOutputOverflow is returned when a file's deduped output would
// exceed its preallocated 2*input+1 byte bound. Every surviving unit is
// a subset of the original bytes, so this only fires if that bound
// itself was sized from a corrupted read; it exists as the same
// fail-fast fuse the reference implementation carries rather than
// trusting append to grow silently forever.
var ErrOutputOverflow = errors.New("pipeline: output buffer overflow")

// Config holds the knobs a dedup run needs beyond the file list itself.
type Config struct {
	Mode            splitter.Mode
	MaxCompareLen   int
	WriteDuplicates bool
	BuildBlockTree  bool
	BlockTreeS      int
	BlockTreeTau    int
	// TrackHeavyHitters enables the --verify-only Count-Min Sketch pass
	// over duplicate units, used by `textdedup report` for the
	// duplicate-frequency breakdown.
	TrackHeavyHitters bool
	Workers           int
	HashPool          *hashpool.Pool
	Metrics           *observability.PipelineMetrics
	Logger            *slog.Logger
}

// Request is one dedup run: an input/output directory pair, the set of
// file names to process (relative to InputDir, already glob-matched by
// the caller), the shared global dedup index, and the run's Config.
type Request struct {
	InputDir   string
	OutputDir  string
	Names      []string
	Global     *index.Set
	Config     Config
	OnProgress func(Snapshot)
}

// Snapshot is a point-in-time read of Stats plus the cardinality
// diagnostic, handed to OnProgress after every file.
type Snapshot struct {
	FilesWritten   int64
	FilesEmpty     int64
	UniqueUnits    int64
	DuplicateUnits int64
	Errors         int64
	Processed      int64
	BytesProcessed int64
	ApproxUnique   uint64
}

// Stats accumulates run-wide counters with lock-free atomics so every
// worker goroutine can update them without contending on anything but
// the cache line itself.
type Stats struct {
	FilesWritten   atomic.Int64
	FilesEmpty     atomic.Int64
	UniqueUnits    atomic.Int64
	DuplicateUnits atomic.Int64
	Errors         atomic.Int64
	Processed      atomic.Int64
	BytesProcessed atomic.Int64
	BinaryLikely   atomic.Int64
	LinesScanned   atomic.Int64

	bloomHits   atomic.Int64
	bloomMisses atomic.Int64
}

func (s *Stats) snapshot(approxUnique *hll.Sketch) Snapshot {
	snap := Snapshot{
		FilesWritten:   s.FilesWritten.Load(),
		FilesEmpty:     s.FilesEmpty.Load(),
		UniqueUnits:    s.UniqueUnits.Load(),
		DuplicateUnits: s.DuplicateUnits.Load(),
		Errors:         s.Errors.Load(),
		Processed:      s.Processed.Load(),
		BytesProcessed: s.BytesProcessed.Load(),
	}

	if approxUnique != nil {
		snap.ApproxUnique = approxUnique.Count()
	}

	return snap
}

// runCtx is the read-mostly state every worker in a run shares: the
// Config, the global index, and the sinks stats feed into. It carries
// no per-worker scratch; that lives in the worker type itself.
type runCtx struct {
	cfg          Config
	global       *index.Set
	outputDir    string
	stats        *Stats
	dupWriter    *duplicatesWriter
	approxUnique *hll.Sketch
	heavyHitters *cms.Sketch
	logger       *slog.Logger
	onProgress   func(Snapshot)
}

// Run executes one dedup pass over req.Names, splitting FileBatchSize
// files at a time across req.Config.Workers goroutines and dedupping
// each unit against req.Global. When a batch fails it returns the Stats
// accumulated so far together with the error, since files processed
// before a fatal failure remain on disk (spec: "previously-processed
// files are kept"). Errors raised before any file is processed (unknown
// mode, duplicates stream or sketch setup) return nil Stats.
func Run(ctx context.Context, req Request) (*Stats, error) {
	if _, ok := splitter.For(req.Config.Mode); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Config.Mode)
	}

	workers := req.Config.Workers
	if workers < 1 {
		workers = hashpool.ResolveThreadCount("DEDUP_THREADS")
	}

	var dupWriter *duplicatesWriter

	if req.Config.WriteDuplicates {
		dw, err := newDuplicatesWriter(req.OutputDir)
		if err != nil {
			return nil, err
		}

		dupWriter = dw
		defer dupWriter.Close() //nolint:errcheck // best-effort flush on an already-failed run
	}

	approxUnique, err := hll.New(cardinalityPrecision)
	if err != nil {
		return nil, fmt.Errorf("pipeline: init cardinality sketch: %w", err)
	}

	var heavyHitters *cms.Sketch

	if req.Config.TrackHeavyHitters {
		heavyHitters, err = cms.New(heavyHitterEpsilon, heavyHitterDelta)
		if err != nil {
			return nil, fmt.Errorf("pipeline: init heavy-hitters sketch: %w", err)
		}
	}

	stats := &Stats{}

	items := make([]fileItem, len(req.Names))
	for i, name := range req.Names {
		items[i] = fileItem{path: filepath.Join(req.InputDir, name), name: name}
	}

	rt := &runCtx{
		cfg:          req.Config,
		global:       req.Global,
		outputDir:    req.OutputDir,
		stats:        stats,
		dupWriter:    dupWriter,
		approxUnique: approxUnique,
		heavyHitters: heavyHitters,
		logger:       req.Config.Logger,
		onProgress:   req.OnProgress,
	}

	batches := planBatches(items)

	batchDurations := make([]time.Duration, 0, len(batches))

	for _, b := range batches {
		start := time.Now()

		if err := runBatch(b, rt, workers); err != nil {
			recordMetrics(ctx, rt, len(batches), batchDurations)

			return stats, err
		}

		batchDurations = append(batchDurations, time.Since(start))
	}

	recordMetrics(ctx, rt, len(batches), batchDurations)

	return stats, nil
}

func recordMetrics(ctx context.Context, rt *runCtx, batches int, durations []time.Duration) {
	if rt.cfg.Metrics == nil {
		return
	}

	rt.cfg.Metrics.RecordRun(ctx, observability.PipelineRunStats{
		FilesWritten:   rt.stats.FilesWritten.Load(),
		Batches:        batches,
		BatchDurations: durations,
		BloomHits:      rt.stats.bloomHits.Load(),
		BloomMisses:    rt.stats.bloomMisses.Load(),
		// Cuckoo hit/miss counts live inside internal/dedup/index's shard
		// state, which has no reason to expose per-call accelerator
		// telemetry across its public Set API; left zero here.
	})
}

// runBatch dispatches workers goroutines to drain one fileBatch. The
// first fatal error any worker observes stops that worker from pulling
// further work and is returned once every worker has exited; files
// already written by other workers in the same batch are not rolled
// back.
func runBatch(b *fileBatch, rt *runCtx, workers int) error {
	var wg sync.WaitGroup

	var firstErr atomic.Pointer[error]

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			w, err := newWorker()
			if err != nil {
				storeFirstErr(&firstErr, err)

				return
			}

			for firstErr.Load() == nil {
				item, ok := b.next()
				if !ok {
					return
				}

				res := w.processFile(item, rt)

				rt.stats.Processed.Add(1)
				rt.stats.BytesProcessed.Add(res.bytes)

				if res.err != nil {
					rt.stats.Errors.Add(1)

					if rt.logger != nil {
						rt.logger.Error("pipeline: file failed", "file", item.name, "err", res.err)
					}

					if res.fatal {
						storeFirstErr(&firstErr, res.err)

						return
					}
				}

				if rt.onProgress != nil {
					rt.onProgress(rt.stats.snapshot(rt.approxUnique))
				}
			}
		}()
	}

	wg.Wait()

	if p := firstErr.Load(); p != nil {
		return *p
	}

	return nil
}

func storeFirstErr(slot *atomic.Pointer[error], err error) {
	slot.CompareAndSwap(nil, &err)
}
