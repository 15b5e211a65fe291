package fnv1a

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_Deterministic(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	assert.Equal(t, Hash(data), Hash(data))
}

func TestHash_DifferentInputsDiffer(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, Hash([]byte("hello")), Hash([]byte("world")))
}

func TestHash_EmptyIsOffsetBasis(t *testing.T) {
	t.Parallel()

	const fnvOffsetBasis64 = 14695981039346656037

	assert.Equal(t, uint64(fnvOffsetBasis64), Hash(nil))
}
