package budget

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveForBudget_MediumBudget(t *testing.T) {
	t.Parallel()

	const budgetOneGiB = 1 * GiB

	cfg, err := SolveForBudget(budgetOneGiB)

	require.NoError(t, err)
	assert.Positive(t, cfg.Workers, "should have at least 1 worker")
	assert.Positive(t, cfg.BufferSize, "should have positive buffer size")
	assert.Positive(t, cfg.IndexMemory, "should have positive index memory")
	assert.Positive(t, cfg.ScratchBufferSize, "should have positive scratch buffer size")
}

func TestSolveForBudget_SmallBudget(t *testing.T) {
	t.Parallel()

	const budget256MiB = 256 * MiB

	cfg, err := SolveForBudget(budget256MiB)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, cfg.Workers, MinWorkers, "should have minimum workers")
	assert.GreaterOrEqual(t, cfg.BufferSize, MinBufferSize, "should have minimum buffer")
}

func TestSolveForBudget_LargeBudget(t *testing.T) {
	t.Parallel()

	const budget4GiB = 4 * GiB

	cfg, err := SolveForBudget(budget4GiB)

	require.NoError(t, err)
	assert.Positive(t, cfg.Workers)
	assert.Greater(t, cfg.IndexMemory, int64(100*MiB), "large budget should have significant index memory")
}

func TestSolveForBudget_TooSmall(t *testing.T) {
	t.Parallel()

	const tinyBudget = 64 * MiB // Below MinimumBudget.

	_, err := SolveForBudget(tinyBudget)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetTooSmall)
}

func TestSolveForBudget_ExactlyMinimum(t *testing.T) {
	t.Parallel()

	cfg, err := SolveForBudget(MinimumBudget)

	require.NoError(t, err)
	assert.Positive(t, cfg.Workers, "should work at minimum budget")
}

func TestSolveForBudget_NeverExceedsBudget(t *testing.T) {
	t.Parallel()

	budgets := []int64{
		MinimumBudget,
		256 * MiB,
		512 * MiB,
		1 * GiB,
		2 * GiB,
		4 * GiB,
	}

	for _, budgetVal := range budgets {
		cfg, err := SolveForBudget(budgetVal)
		require.NoError(t, err, "budget %d should succeed", budgetVal)

		estimate := EstimateMemoryUsage(cfg)
		assert.LessOrEqual(t, estimate, budgetVal,
			"estimate %d should not exceed budget %d", estimate, budgetVal)
	}
}

func TestSolveForBudget_MaintainsSlack(t *testing.T) {
	t.Parallel()

	const slackPercent = 5

	for budgetVal := int64(MinimumBudget); budgetVal <= 8*GiB; budgetVal += 64 * MiB {
		cfg, err := SolveForBudget(budgetVal)
		require.NoError(t, err, "budget %d should succeed", budgetVal)

		estimate := EstimateMemoryUsage(cfg)
		maxAllowed := budgetVal * (percentDivisor - slackPercent) / percentDivisor

		assert.LessOrEqual(t, estimate, maxAllowed,
			"estimate %d should be <= %d (budget %d with %d%% slack)",
			estimate, maxAllowed, budgetVal, slackPercent)
	}
}

func TestSolveForBudget_Deterministic(t *testing.T) {
	t.Parallel()

	const budgetVal = 1 * GiB

	cfg1, err1 := SolveForBudget(budgetVal)
	cfg2, err2 := SolveForBudget(budgetVal)

	require.NoError(t, err1)
	require.NoError(t, err2)

	assert.Equal(t, cfg1.Workers, cfg2.Workers)
	assert.Equal(t, cfg1.BufferSize, cfg2.BufferSize)
	assert.Equal(t, cfg1.IndexMemory, cfg2.IndexMemory)
	assert.Equal(t, cfg1.ScratchBufferSize, cfg2.ScratchBufferSize)
}

func TestSolveForBudget_LargerBudgetMoreResources(t *testing.T) {
	t.Parallel()

	smallCfg, err := SolveForBudget(256 * MiB)
	require.NoError(t, err)

	largeCfg, err := SolveForBudget(2 * GiB)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, largeCfg.IndexMemory, smallCfg.IndexMemory,
		"larger budget should have larger or equal index memory")
}

func TestSolveForBudget_WorkersCappedAtCPUCount(t *testing.T) {
	t.Parallel()

	const hugeBudget = 64 * GiB

	cfg, err := SolveForBudget(hugeBudget)

	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Workers, runtime.NumCPU(),
		"workers should not exceed CPU count")
}

func TestSolveForBudget_MinimumValuesEnforced(t *testing.T) {
	t.Parallel()

	cfg, err := SolveForBudget(MinimumBudget)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, cfg.Workers, MinWorkers, "should enforce min workers")
	assert.GreaterOrEqual(t, cfg.BufferSize, MinBufferSize, "should enforce min buffer")
	assert.GreaterOrEqual(t, cfg.IndexMemory, int64(MinIndexMemory), "should enforce min index memory")
}

func TestDeriveKnobs_ZeroAllocations(t *testing.T) {
	t.Parallel()

	cfg := deriveKnobs(0, 0, 0)

	assert.Equal(t, MinWorkers, cfg.Workers, "should use min workers")
	assert.Equal(t, MinBufferSize, cfg.BufferSize, "should use min buffer")
	assert.Equal(t, int64(MinIndexMemory), cfg.IndexMemory, "should use min index memory")
}

func TestDeriveKnobs_TinyAllocations(t *testing.T) {
	t.Parallel()

	cfg := deriveKnobs(1*KiB, 1*KiB, 1*KiB)

	assert.GreaterOrEqual(t, cfg.Workers, MinWorkers)
	assert.GreaterOrEqual(t, cfg.BufferSize, MinBufferSize)
	assert.GreaterOrEqual(t, cfg.IndexMemory, int64(MinIndexMemory))
}

func TestDeriveKnobs_HugeWorkerAllocation(t *testing.T) {
	t.Parallel()

	cfg := deriveKnobs(100*MiB, 100*GiB, 10*MiB)

	assert.LessOrEqual(t, cfg.Workers, runtime.NumCPU(), "workers capped at CPU count")
}
