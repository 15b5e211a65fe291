// Package normalize canonicalizes a span of bytes into comparable dedup
// units by trimming and collapsing ASCII whitespace.
package normalize

// Normalize strips leading/trailing bytes with value <= 0x20 and collapses
// any interior run of such bytes to a single space. An all-whitespace or
// empty span normalizes to nil, signaling the caller to drop the unit.
// When maxCompareLen > 0 the result is clamped to its first N bytes.
func Normalize(span []byte, maxCompareLen int) []byte {
	start := 0
	for start < len(span) && span[start] <= 0x20 {
		start++
	}

	end := len(span)
	for end > start && span[end-1] <= 0x20 {
		end--
	}

	if start == end {
		return nil
	}

	out := make([]byte, 0, end-start)
	inSpace := false

	for i := start; i < end; i++ {
		if span[i] <= 0x20 {
			inSpace = true

			continue
		}

		if inSpace {
			out = append(out, ' ')
			inSpace = false
		}

		out = append(out, span[i])
	}

	if maxCompareLen > 0 && len(out) > maxCompareLen {
		out = out[:maxCompareLen]

		// A clamp can land mid-run, leaving a trailing space that a second
		// Normalize call would trim; strip it here so the function is
		// idempotent regardless of where the clamp falls.
		for len(out) > 0 && out[len(out)-1] == ' ' {
			out = out[:len(out)-1]
		}
	}

	return out
}
