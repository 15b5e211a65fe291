package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_TrimsLeadingAndTrailing(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte("foo bar"), Normalize([]byte("  foo bar  "), 0))
}

func TestNormalize_CollapsesInteriorWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte("foo bar"), Normalize([]byte("foo\n\n   bar"), 0))
}

func TestNormalize_AllWhitespaceIsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Normalize([]byte("   \n\t  "), 0))
}

func TestNormalize_EmptyIsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Normalize(nil, 0))
}

func TestNormalize_ClampsToMaxCompareLen(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte("foo"), Normalize([]byte("foo bar baz"), 3))
}

func TestNormalize_ClampDropsTrailingSpace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte("foo"), Normalize([]byte("foo bar"), 4))
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{
		[]byte("  foo   bar  "),
		[]byte("foo bar baz"),
		[]byte("\t\nfoo\r\nbar\n"),
		nil,
		[]byte("   "),
	}

	for _, in := range inputs {
		once := Normalize(in, 0)
		twice := Normalize(once, 0)
		assert.Equal(t, once, twice, "Normalize must be idempotent for %q", in)
	}
}

func TestNormalize_IdempotentWithClamp(t *testing.T) {
	t.Parallel()

	once := Normalize([]byte("foo bar baz qux"), 5)
	twice := Normalize(once, 5)
	assert.Equal(t, once, twice)
}
