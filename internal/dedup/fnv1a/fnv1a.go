// Package fnv1a computes the 64-bit FNV-1a fingerprints used as keys
// throughout the dedup index. The algorithm mirrors
// pkg/alg/internal/hashutil.FNV64a; that helper lives under an internal/
// directory scoped to pkg/alg and so cannot be imported from here, hence
// the small local wrapper around the same standard library primitive.
package fnv1a

import "hash/fnv"

// Hash returns the 64-bit FNV-1a fingerprint of data.
func Hash(data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)

	return h.Sum64()
}
