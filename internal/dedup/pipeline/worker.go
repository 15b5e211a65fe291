package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sumatoshi-tech/textdedup/internal/dedup/blocktree"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/codec"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/fnv1a"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/index"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/normalize"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/splitter"
	"github.com/sumatoshi-tech/textdedup/pkg/alg/bloom"
	"github.com/sumatoshi-tech/textdedup/pkg/textutil"
)

// Tuning for the per-worker thread-local scratch. These size the
// worker's Bloom pre-filter and single-shard intra-file set; both are
// cleared and reused per file rather than resized, so they only need to
// be roughly right for a typical file's unit count.
const (
	localBloomExpectedUnits = 2048
	localBloomFalsePositive = 0.01
	localSetCapacity        = 2048
)

// outputPerm is the permission new deduped output files are created
// with.
const outputPerm = 0o644

// worker holds the reusable per-goroutine scratch spec.md §4.11 calls
// for: a growable output accumulation buffer and a thread-local
// intra-file filter, itself guarded by a Bloom pre-filter. Both the
// filter and the set are cleared (not reallocated) between files.
//
// normalize.Normalize allocates its own per-unit output slice rather
// than writing into a caller-supplied buffer, so there is no separate
// "normalization buffer" scratch field here the way spec.md's C-shaped
// description names one; those short-lived slices are left to the
// allocator, which already amortizes them well at this size.
type worker struct {
	outBuf      []byte
	bloomFilter *bloom.Filter
	localSet    *index.Set
}

func newWorker() (*worker, error) {
	bf, err := bloom.NewWithEstimates(localBloomExpectedUnits, localBloomFalsePositive)
	if err != nil {
		return nil, fmt.Errorf("pipeline: init worker bloom filter: %w", err)
	}

	ls, err := index.InitSingleShard(localSetCapacity)
	if err != nil {
		return nil, fmt.Errorf("pipeline: init worker local set: %w", err)
	}

	return &worker{bloomFilter: bf, localSet: ls}, nil
}

// result reports the outcome of processing one file. fatal marks errors
// that must stop the whole batch (a dedup function failure) as opposed
// to per-file I/O errors, which only increment the error counter and
// move on to the next file.
type result struct {
	bytes int64
	err   error
	fatal bool
}

func (w *worker) processFile(item fileItem, rt *runCtx) result {
	raw, err := os.ReadFile(item.path)
	if err != nil {
		return result{err: fmt.Errorf("read %s: %w", item.name, err)}
	}

	rt.global.ReserveForBytes(len(raw))
	rt.stats.LinesScanned.Add(int64(textutil.CountLines(raw)))

	// Binary-looking input still gets deduped with U+FFFD replacement
	// rather than rejected; this only feeds a diagnostic counter so a
	// run over a mixed corpus can tell how much of it wasn't really text.
	if textutil.IsBinary(raw) {
		rt.stats.BinaryLikely.Add(1)

		if rt.logger != nil {
			rt.logger.Debug("pipeline: binary-looking file", "file", item.name)
		}
	}

	sp, _ := splitter.For(rt.cfg.Mode) // Run already validated the mode once

	w.localSet.Clear()
	w.bloomFilter.Reset()

	capNeeded := 2*len(raw) + 1
	if cap(w.outBuf) < capNeeded {
		w.outBuf = make([]byte, 0, capNeeded)
	} else {
		w.outBuf = w.outBuf[:0]
	}

	wroteAny := false

	for _, span := range sp.Split(raw) {
		unit := raw[span.Start : span.Start+span.Len]

		norm := normalize.Normalize(unit, rt.cfg.MaxCompareLen)
		if norm == nil {
			continue
		}

		hash := fnv1a.Hash(norm)

		isDup, err := w.checkLocal(hash, norm, rt.stats)
		if err != nil {
			return result{bytes: int64(len(raw)), fatal: true, err: fmt.Errorf("pipeline: local index: %w", err)}
		}

		if !isDup {
			inserted, err := rt.global.InsertHashed(hash, norm)
			if err != nil {
				return result{bytes: int64(len(raw)), fatal: true, err: fmt.Errorf("pipeline: global index: %w", err)}
			}

			isDup = !inserted
		}

		if isDup {
			if err := w.recordDuplicate(rt, norm); err != nil {
				return result{bytes: int64(len(raw)), fatal: true, err: err}
			}

			continue
		}

		if len(w.outBuf)+len(norm)+1 > cap(w.outBuf) {
			return result{bytes: int64(len(raw)), fatal: true, err: fmt.Errorf("%w: %s", ErrOutputOverflow, item.name)}
		}

		if wroteAny {
			w.outBuf = append(w.outBuf, '\n')
		}

		w.outBuf = append(w.outBuf, norm...)
		wroteAny = true

		rt.stats.UniqueUnits.Add(1)

		if rt.approxUnique != nil {
			rt.approxUnique.Add(norm)
		}
	}

	if !wroteAny {
		rt.stats.FilesEmpty.Add(1)

		return result{bytes: int64(len(raw))}
	}

	if err := os.WriteFile(filepath.Join(rt.outputDir, item.name), w.outBuf, outputPerm); err != nil {
		return result{bytes: int64(len(raw)), err: fmt.Errorf("write %s: %w", item.name, err)}
	}

	rt.stats.FilesWritten.Add(1)

	if rt.cfg.BuildBlockTree {
		if err := w.verifyBlockTree(item.name, rt); err != nil {
			return result{bytes: int64(len(raw)), fatal: true, err: err}
		}
	}

	return result{bytes: int64(len(raw))}
}

// checkLocal consults the Bloom pre-filter before the thread-local set.
// A definite negative proves norm is new to this file, so the insert
// skips the set's own byte-comparison probe entirely; a possible
// positive falls through to the set's authoritative lookup-and-insert.
func (w *worker) checkLocal(hash uint64, norm []byte, stats *Stats) (dup bool, err error) {
	if !w.bloomFilter.TestAndAdd(norm) {
		stats.bloomMisses.Add(1)

		return false, w.localSet.InsertKnownNew(hash, norm)
	}

	stats.bloomHits.Add(1)

	inserted, err := w.localSet.InsertHashed(hash, norm)
	if err != nil {
		return false, err
	}

	return !inserted, nil
}

func (w *worker) recordDuplicate(rt *runCtx, norm []byte) error {
	rt.stats.DuplicateUnits.Add(1)

	if rt.heavyHitters != nil {
		rt.heavyHitters.Add(norm, 1)
	}

	if rt.dupWriter != nil {
		if err := rt.dupWriter.writeLine(norm); err != nil {
			return fmt.Errorf("pipeline: duplicates stream: %w", err)
		}
	}

	return nil
}

// verifyBlockTree builds a Block Tree over the file's deduped output and
// validates its tiling/pointer invariants, purely as a self-check that
// --build-block-tree asks for; the tree itself is discarded afterward.
func (w *worker) verifyBlockTree(name string, rt *runCtx) error {
	runes, _ := codec.Decode(w.outBuf)

	root, err := blocktree.Build(runes, rt.cfg.BlockTreeS, rt.cfg.BlockTreeTau, rt.cfg.HashPool)
	if err != nil {
		return fmt.Errorf("pipeline: block tree build for %s: %w", name, err)
	}

	if err := blocktree.Validate(root, runes); err != nil {
		return fmt.Errorf("pipeline: block tree validate for %s: %w", name, err)
	}

	return nil
}
