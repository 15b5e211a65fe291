package splitter

import "unicode/utf8"

// Sentence splits on CJK terminators (always) and ASCII terminators
// (when followed, after any closing quote/bracket run, by whitespace or
// end-of-buffer), with abbreviation-aware suppression of the ASCII '.'
// case.
type Sentence struct{}

// cjkTerminators always end a sentence immediately, with no requirement
// that whitespace follow.
var cjkTerminators = map[rune]bool{
	'。': true, '？': true, '！': true, '…': true, '؟': true, '｡': true,
}

var asciiTerminators = map[rune]bool{'.': true, '!': true, '?': true}

var closers = map[rune]bool{
	')': true, ']': true, '}': true, '"': true, '\'': true,
	'»': true, '’': true, '”': true, '」': true, '』': true,
	'〉': true, '》': true, '】': true, '〕': true, '〗': true,
	'〙': true, '〛': true, '）': true, '］': true, '｝': true,
}

// abbreviations suppress a '.' split regardless of what follows.
var abbreviations = map[string]bool{
	"mr": true, "ms": true, "dr": true, "vs": true, "jr": true,
	"sr": true, "st": true, "mt": true, "mrs": true, "etc": true,
}

// Split implements Splitter.
func (Sentence) Split(b []byte) []Span {
	var spans []Span

	n := len(b)
	sentStart := -1
	i := 0

	for i < n {
		r, size := utf8.DecodeRune(b[i:])

		if sentStart < 0 {
			if isSpaceRune(r) {
				i += size

				continue
			}

			sentStart = i
		}

		if cjkTerminators[r] {
			end := consumeClosers(b, i+size)
			spans = append(spans, Span{Start: sentStart, Len: end - sentStart})
			sentStart = -1
			i = end

			continue
		}

		if asciiTerminators[r] {
			closeEnd := consumeClosers(b, i+size)
			if isBoundary(b, closeEnd) && !(r == '.' && suppressDot(b, i, closeEnd)) {
				spans = append(spans, Span{Start: sentStart, Len: closeEnd - sentStart})
				sentStart = -1
				i = closeEnd

				continue
			}
		}

		i += size
	}

	if sentStart >= 0 {
		if span, ok := trimmedSpan(b, sentStart, n); ok {
			spans = append(spans, span)
		}
	}

	return spans
}

func isBoundary(b []byte, pos int) bool {
	if pos >= len(b) {
		return true
	}

	r, _ := utf8.DecodeRune(b[pos:])

	return isSpaceRune(r)
}

func consumeClosers(b []byte, pos int) int {
	for pos < len(b) {
		r, size := utf8.DecodeRune(b[pos:])
		if !closers[r] {
			break
		}

		pos += size
	}

	return pos
}

// suppressDot reports whether the '.' at dotIdx should NOT end a
// sentence. The '.' must follow a 1-3 ASCII-letter token; it is then
// suppressed when that token is a known abbreviation or when the text
// following (after closers, at closeEnd) starts with a lowercase letter.
func suppressDot(b []byte, dotIdx, closeEnd int) bool {
	token, ok := precedingASCIIToken(b, dotIdx)
	if !ok {
		return false
	}

	if abbreviations[toLowerASCII(token)] {
		return true
	}

	return followedByLowercase(b, closeEnd)
}

// precedingASCIIToken returns the maximal run of ASCII letters
// immediately before dotIdx, if that run has length 1-3; otherwise ok is
// false (no run, or a run of 4+ letters, does not qualify).
func precedingASCIIToken(b []byte, dotIdx int) (token string, ok bool) {
	j := dotIdx
	count := 0

	for j > 0 && isASCIILetter(b[j-1]) {
		j--
		count++

		if count > 3 {
			return "", false
		}
	}

	if count == 0 {
		return "", false
	}

	return string(b[dotIdx-count : dotIdx]), true
}

// followedByLowercase matches the spec's "a space then a lowercase
// letter" condition literally: it skips horizontal whitespace only. A
// newline before any non-space character means this is a paragraph break,
// not a same-sentence continuation, so it reports false rather than
// skipping through it.
func followedByLowercase(b []byte, pos int) bool {
	for pos < len(b) {
		r, size := utf8.DecodeRune(b[pos:])

		switch {
		case r == ' ' || r == '\t':
			pos += size
		case r == '\n' || r == '\r':
			return false
		default:
			return r >= 'a' && r <= 'z'
		}
	}

	return false
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func toLowerASCII(s string) string {
	out := make([]byte, len(s))

	for i := range s {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}

		out[i] = c
	}

	return string(out)
}

func isSpaceRune(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return r <= 0x20
	}
}
