package pipeline

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicatesWriter_WriteLineThenCloseProducesNewlineTerminatedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := newDuplicatesWriter(dir)
	require.NoError(t, err)

	require.NoError(t, w.writeLine([]byte("one")))
	require.NoError(t, w.writeLine([]byte("two")))
	require.NoError(t, w.Close())

	got, err := os.ReadFile(filepath.Join(dir, duplicatesFileName))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(got))
}

func TestDuplicatesWriter_ConcurrentWritesNeverInterleaveMidLine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := newDuplicatesWriter(dir)
	require.NoError(t, err)

	const n = 200

	var wg sync.WaitGroup

	for range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			require.NoError(t, w.writeLine([]byte("unit-of-fixed-width")))
		}()
	}

	wg.Wait()
	require.NoError(t, w.Close())

	got, err := os.ReadFile(filepath.Join(dir, duplicatesFileName))
	require.NoError(t, err)

	lines := 0

	for _, b := range got {
		if b == '\n' {
			lines++
		}
	}

	assert.Equal(t, n, lines)
}

func TestDuplicatesWriter_AppendsAcrossSeparateWriters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w1, err := newDuplicatesWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w1.writeLine([]byte("first")))
	require.NoError(t, w1.Close())

	w2, err := newDuplicatesWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w2.writeLine([]byte("second")))
	require.NoError(t, w2.Close())

	got, err := os.ReadFile(filepath.Join(dir, duplicatesFileName))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(got))
}
