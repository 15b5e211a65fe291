package blocktree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNode_SortKeyReturnsBlockIDLengthStartPos(t *testing.T) {
	t.Parallel()

	n := newNode(5, 10, 2, nil)
	n.BlockID = 99

	blockID, length, start := n.SortKey()
	assert.Equal(t, uint64(99), blockID)
	assert.Equal(t, 10, length)
	assert.Equal(t, 5, start)
}

func TestNewNode_InitializesFieldsAndParent(t *testing.T) {
	t.Parallel()

	parent := newNode(0, 20, 0, nil)
	child := newNode(4, 6, 1, parent)

	assert.Equal(t, 4, child.StartPos)
	assert.Equal(t, 6, child.Length)
	assert.Equal(t, 1, child.Level)
	assert.Same(t, parent, child.Parent)
	assert.False(t, child.IsMarked)
	assert.Empty(t, child.Children)
}
