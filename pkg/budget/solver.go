package budget

import (
	"errors"
	"runtime"
)

// Allocation proportions for budget distribution.
const (
	// IndexAllocationPercent is the percentage of available budget for the
	// sharded dedup index's backing arrays.
	IndexAllocationPercent = 60

	// WorkerAllocationPercent is the percentage of available budget for
	// per-worker scratch buffers and Block Tree arenas.
	WorkerAllocationPercent = 30

	// BufferAllocationPercent is the percentage of available budget for the
	// file batch queue.
	BufferAllocationPercent = 10

	// SlackPercent is reserved for runtime overhead.
	SlackPercent = 5

	// percentDivisor is used for percentage calculations.
	percentDivisor = 100
)

// Solver constraints.
const (
	// MinimumBudget is the smallest budget the solver will accept. Must
	// exceed BaseOverhead plus room for at least 1 worker.
	MinimumBudget = 256 * MiB

	// MinWorkers is the minimum number of workers.
	MinWorkers = 1

	// MinBufferSize is the minimum file batch queue depth.
	MinBufferSize = 2

	// OptimalWorkerRatio is the percentage of CPU cores to use for workers.
	// Beyond this ratio, shard-lock contention in the dedup index outweighs
	// the benefit of additional parallelism.
	OptimalWorkerRatio = 80
)

// ErrBudgetTooSmall indicates the budget is below the minimum required.
var ErrBudgetTooSmall = errors.New("memory budget is too small")

// SolveForBudget calculates an optimal PipelineConfig for the given memory
// budget. The solver distributes available memory across workers, the
// dedup index, and the batch queue while keeping total estimated usage
// within budget.
func SolveForBudget(budget int64) (PipelineConfig, error) {
	if budget < MinimumBudget {
		return PipelineConfig{}, ErrBudgetTooSmall
	}

	usableBudget := budget * (percentDivisor - SlackPercent) / percentDivisor

	available := usableBudget - BaseOverhead
	if available <= 0 {
		return PipelineConfig{}, ErrBudgetTooSmall
	}

	indexAlloc := available * IndexAllocationPercent / percentDivisor
	workerAlloc := available * WorkerAllocationPercent / percentDivisor
	bufferAlloc := available * BufferAllocationPercent / percentDivisor

	return deriveKnobs(indexAlloc, workerAlloc, bufferAlloc), nil
}

// deriveKnobs calculates individual configuration knobs from allocation budgets.
func deriveKnobs(indexAlloc, workerAlloc, bufferAlloc int64) PipelineConfig {
	maxWorkers := max(MinWorkers, runtime.NumCPU()*OptimalWorkerRatio/percentDivisor)
	workerCost := int64(DefaultScratchBufferSize + DefaultArenaSize)
	workers := max(MinWorkers, min(maxWorkers, int(workerAlloc/workerCost)))

	indexMemory := max(int64(MinIndexMemory), indexAlloc)
	indexMemory = min(indexMemory, MaxIndexMemory)

	bufferSize := max(MinBufferSize, int(bufferAlloc/AvgQueueItemSize))

	return PipelineConfig{
		Workers:           workers,
		BufferSize:        bufferSize,
		ScratchBufferSize: DefaultScratchBufferSize,
		ArenaSize:         DefaultArenaSize,
		IndexMemory:       indexMemory,
	}
}
