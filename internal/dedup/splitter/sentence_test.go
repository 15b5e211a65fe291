package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func spanTexts(b []byte, spans []Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(b[s.Start : s.Start+s.Len])
	}

	return out
}

func TestSentence_S1_RepeatedSentences(t *testing.T) {
	t.Parallel()

	in := []byte("Hello world. Hello world. Bye.")
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{"Hello world.", "Hello world.", "Bye."}, got)
}

func TestSentence_S3_CJKTerminatorNoSpaceNeeded(t *testing.T) {
	t.Parallel()

	in := []byte("これはテストです。Unicode is ok!")
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{"これはテストです。", "Unicode is ok!"}, got)
}

func TestSentence_S4_AbbreviationSuppressesEvenBeforeUppercase(t *testing.T) {
	t.Parallel()

	in := []byte("Mr. Smith went home. Mr. Jones too.")
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{"Mr. Smith went home.", "Mr. Jones too."}, got)
}

func TestSentence_S5_SingleLetterSentencesSplitNormally(t *testing.T) {
	t.Parallel()

	in := []byte("A. A. A.")
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{"A.", "A.", "A."}, got)
}

func TestSentence_AbbreviationBeforeLowercaseSuppressed(t *testing.T) {
	t.Parallel()

	in := []byte("Dr. smith is here.")
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{"Dr. smith is here."}, got)
}

func TestSentence_NonAbbreviationBeforeUppercaseSplits(t *testing.T) {
	t.Parallel()

	in := []byte("End. Begin.")
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{"End.", "Begin."}, got)
}

func TestSentence_NonAbbreviationBeforeLowercaseSuppressed(t *testing.T) {
	t.Parallel()

	in := []byte("fig. comes next.")
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{"fig. comes next."}, got)
}

func TestSentence_BlankLineBreakNotTreatedAsLowercaseFollow(t *testing.T) {
	t.Parallel()

	in := []byte("  foo   bar.\n\nfoo bar.")
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{"foo   bar.", "foo bar."}, got)
}

func TestSentence_TrailingClosersIncluded(t *testing.T) {
	t.Parallel()

	in := []byte(`He said "hi." She left.`)
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{`He said "hi."`, "She left."}, got)
}

func TestSentence_EmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Sentence{}.Split(nil))
}

func TestSentence_NoTerminatorTrailingContent(t *testing.T) {
	t.Parallel()

	in := []byte("just some text")
	got := spanTexts(in, Sentence{}.Split(in))
	assert.Equal(t, []string{"just some text"}, got)
}
