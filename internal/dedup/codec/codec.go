// Package codec decodes UTF-8 byte buffers into dense UTF-32 (rune)
// sequences for the Block Tree, replacing invalid sequences with U+FFFD
// while preserving a count of how many replacements were made.
package codec

import "unicode/utf8"

// Decode produces the UTF-32 sequence for b. Invalid leading bytes each
// contribute one U+FFFD and advance one byte; incomplete trailing
// sequences decode as a single U+FFFD. Overlong, surrogate, and
// out-of-range encodings are rejected as invalid by utf8.DecodeRune,
// which already reports them via utf8.RuneError with a width of 1.
// invalid counts the replacement runes produced for invalid input (a
// truncated tail counts once); a valid encoded U+FFFD is not counted.
func Decode(b []byte) (runes []rune, invalid int) {
	runes = make([]rune, 0, len(b))

	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(b) {
				// b ends inside a multi-byte sequence: the whole tail
				// becomes a single replacement rune.
				invalid++
				runes = append(runes, utf8.RuneError)

				break
			}

			invalid++
		}

		runes = append(runes, r)
		b = b[size:]
	}

	return runes, invalid
}
