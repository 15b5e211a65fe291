// Package rollinghash computes the polynomial rolling hash used to key
// Block Tree windows, with a batch dispatcher that fans out across
// internal/dedup/hashpool for large candidate sets.
package rollinghash

import "github.com/sumatoshi-tech/textdedup/internal/dedup/hashpool"

// base is the polynomial hash multiplier, matching the reference formula
// block_id = Σ cᵢ·base^(L-1-i).
const base uint64 = 31

// HashParallelBase is the per-thread candidate-count threshold below
// which ComputeBatch dispatches serially rather than paying pool overhead.
const HashParallelBase = 64

// BlockID computes the polynomial rolling hash of text[start:start+length]
// in wrapping uint64 arithmetic. Length is clamped to the available text;
// if start is at or past the end of text, BlockID returns 0.
func BlockID(text []rune, start, length int) uint64 {
	if start >= len(text) {
		return 0
	}

	end := start + length
	if end > len(text) {
		end = len(text)
	}

	var h uint64

	for i := start; i < end; i++ {
		h = h*base + uint64(text[i])
	}

	return h
}

// Window names one (start, length) span whose BlockID is to be computed
// and stored back into Dest.
type Window struct {
	Start, Length int
	Dest          *uint64
}

// ComputeBatch fills Dest for every Window from text. Below
// HashParallelBase*threads windows it computes serially; otherwise it
// partitions windows into min(threads, len(windows)) contiguous ranges
// and runs them across pool. Parallel and serial dispatch always produce
// identical results since BlockID is a pure function of its inputs.
func ComputeBatch(windows []Window, text []rune, threads int, pool *hashpool.Pool) {
	if len(windows) == 0 {
		return
	}

	if threads < 1 {
		threads = 1
	}

	if pool == nil || len(windows) < HashParallelBase*threads {
		computeRange(windows, text)

		return
	}

	k := min(threads, len(windows))
	chunk := (len(windows) + k - 1) / k

	jobs := make([]hashpool.Job, 0, k)

	for i := 0; i < len(windows); i += chunk {
		end := min(i+chunk, len(windows))
		sub := windows[i:end]
		jobs = append(jobs, func() { computeRange(sub, text) })
	}

	pool.Run(jobs)
}

func computeRange(windows []Window, text []rune) {
	for _, w := range windows {
		*w.Dest = BlockID(text, w.Start, w.Length)
	}
}
