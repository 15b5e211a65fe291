// Package sortutil provides the stable, key-based sort used to order
// Block Tree candidate nodes by (BlockID, Length, StartPos) before the
// per-level deduplication scan. A comparison sort handles small batches;
// an LSD radix sort takes over above RadixSortMinCount, matching the
// reference implementation's introspective/radix hybrid. Both paths must
// agree on the total order (property 8.9's stability requirement).
package sortutil

import "sort"

// RadixSortMinCount is the item-count threshold at or above which
// SortKeyed switches from a comparison sort to LSD radix sort.
const RadixSortMinCount = 64

const (
	radixBucketBits  = 8
	radixBucketCount = 1 << radixBucketBits
	radixBucketMask  = radixBucketCount - 1
	radixPasses      = 64 / radixBucketBits
)

// Keyed is implemented by anything sortutil can order: a Block Tree
// candidate node exposes its sort key without sortutil needing to import
// the blocktree package (which itself depends on sortutil).
type Keyed interface {
	SortKey() (blockID uint64, length, startPos int)
}

type sortKey struct {
	blockID         uint64
	length, startPos int
}

func keyLess(a, b sortKey) bool {
	if a.blockID != b.blockID {
		return a.blockID < b.blockID
	}

	if a.length != b.length {
		return a.length < b.length
	}

	return a.startPos < b.startPos
}

// SortKeyed orders items in place by (BlockID, Length, StartPos)
// ascending, stably: items with equal keys preserve their relative input
// order.
func SortKeyed[T Keyed](items []T) {
	n := len(items)
	if n < 2 {
		return
	}

	keys := make([]sortKey, n)
	for i, it := range items {
		blockID, length, startPos := it.SortKey()
		keys[i] = sortKey{blockID: blockID, length: length, startPos: startPos}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	if n < RadixSortMinCount {
		sort.SliceStable(idx, func(a, b int) bool { return keyLess(keys[idx[a]], keys[idx[b]]) })
	} else {
		idx = radixSortIndices(keys, idx)
	}

	out := make([]T, n)
	for i, j := range idx {
		out[i] = items[j]
	}

	copy(items, out)
}

// radixSortIndices produces the index permutation that sorts keys by
// (blockID, length, startPos), via three stable LSD radix passes applied
// from least to most significant component — the standard way to extend
// single-key LSD radix sort to a multi-key lexicographic order.
func radixSortIndices(keys []sortKey, idx []int) []int {
	idx = radixSortByUint64(idx, func(i int) uint64 { return uint64(uint32(keys[i].startPos)) })
	idx = radixSortByUint64(idx, func(i int) uint64 { return uint64(uint32(keys[i].length)) })
	idx = radixSortByUint64(idx, func(i int) uint64 { return keys[i].blockID })

	return idx
}

// radixSortByUint64 stably sorts idx (a permutation of slice positions) by
// keyFunc's return value using an 8-bit, 256-bucket LSD radix sort over
// all 8 bytes of the key.
func radixSortByUint64(idx []int, keyFunc func(int) uint64) []int {
	n := len(idx)
	src := idx
	dst := make([]int, n)

	var counts [radixBucketCount]int

	for pass := range radixPasses {
		shift := uint(pass * radixBucketBits)

		for i := range counts {
			counts[i] = 0
		}

		for _, v := range src {
			b := (keyFunc(v) >> shift) & radixBucketMask
			counts[b]++
		}

		sum := 0
		for b := range counts {
			c := counts[b]
			counts[b] = sum
			sum += c
		}

		for _, v := range src {
			b := (keyFunc(v) >> shift) & radixBucketMask
			dst[counts[b]] = v
			counts[b]++
		}

		src, dst = dst, src
	}

	return src
}
