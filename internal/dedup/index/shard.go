package index

import (
	"bytes"
	"sync"

	"github.com/sumatoshi-tech/textdedup/internal/dedup/arena"
	"github.com/sumatoshi-tech/textdedup/pkg/alg/cuckoo"
)

// shard is one independently-locked bucket array. Slots are parallel
// arrays rather than a struct slice so ctrl-byte scans (the hottest
// path) stay cache-dense.
type shard struct {
	mu sync.Mutex

	hashes []uint64
	lens   []int
	data   [][]byte
	ctrl   []uint8

	bucketCount int
	entryCount  int
	mask        uint64

	arena  *arena.Arena
	cuckoo *cuckoo.Filter
}

func newShard(bucketCount int) (*shard, error) {
	a, err := arena.New(bucketCount * AvgSentenceBytes)
	if err != nil {
		return nil, err
	}

	sh := &shard{
		hashes:      make([]uint64, bucketCount),
		lens:        make([]int, bucketCount),
		data:        make([][]byte, bucketCount),
		ctrl:        make([]uint8, bucketCount),
		bucketCount: bucketCount,
		mask:        uint64(bucketCount - 1),
		arena:       a,
		cuckoo:      newCuckooFor(bucketCount),
	}

	for i := range sh.ctrl {
		sh.ctrl[i] = ctrlEmpty
	}

	return sh, nil
}

// insert runs the Robin-Hood probe: walk from hash's home slot, swapping
// the carried (hash, len, data, dist) tuple into any slot whose resident
// has a smaller probe distance than the one being carried, until an
// empty slot is found. Matching on an occupied slot (same hash, same
// length, same bytes) reports a duplicate instead of displacing.
func (sh *shard) insert(hash uint64, candidate []byte) (bool, error) {
	maybePresent := sh.cuckoo.Lookup(candidate)

	inserted, err := sh.insertCarry(hash, len(candidate), candidate, false, maybePresent)
	if err != nil {
		return false, err
	}

	if inserted && !maybePresent {
		sh.cuckoo.Insert(candidate)
	}

	return inserted, nil
}

// insertKnownNew skips the cuckoo lookup and the byte-comparison branch
// entirely: the caller (the file pipeline's per-file Bloom pre-filter)
// has already proven data is new to this shard, so the only work left is
// finding its landing slot.
func (sh *shard) insertKnownNew(hash uint64, data []byte) error {
	_, err := sh.insertCarry(hash, len(data), data, false, false)
	if err != nil {
		return err
	}

	sh.cuckoo.Insert(data)

	return nil
}

// insertCarry runs the Robin-Hood probe for one (hash, data) tuple. owned
// reports whether data already lives in this shard's arena (true for a
// tuple displaced from another slot, false for a fresh candidate that
// must be copied in on its first landing). checkMatch gates the
// byte-comparison branch: the caller passes false once the fast-reject
// filter has already proven the original candidate absent, since a
// displaced resident can never equal a key that provably isn't in the
// table. If probing overflows a full byte of distance, the shard is
// rehashed and the same still-unplaced tuple is retried.
func (sh *shard) insertCarry(hash uint64, length int, data []byte, owned, checkMatch bool) (bool, error) {
	idx := hash & sh.mask
	dist := uint8(0)

	carryHash := hash
	carryLen := length
	carryData := data

	for {
		ctrl := sh.ctrl[idx]

		if ctrl == ctrlEmpty {
			stored := carryData
			if !owned {
				buf, err := sh.arena.Alloc(carryLen)
				if err != nil {
					return false, err
				}

				copy(buf, carryData)
				stored = buf
			}

			sh.hashes[idx] = carryHash
			sh.lens[idx] = carryLen
			sh.data[idx] = stored
			sh.ctrl[idx] = dist
			sh.entryCount++

			return true, nil
		}

		if !owned && checkMatch && sh.hashes[idx] == carryHash &&
			sh.lens[idx] == carryLen && bytes.Equal(sh.data[idx], carryData) {
			return false, nil
		}

		if ctrl < dist {
			if !owned {
				// The fresh candidate lands here by displacing the
				// resident, so this is where it is copied into the arena.
				buf, err := sh.arena.Alloc(carryLen)
				if err != nil {
					return false, err
				}

				copy(buf, carryData)
				carryData = buf
			}

			sh.hashes[idx], carryHash = carryHash, sh.hashes[idx]
			sh.lens[idx], carryLen = carryLen, sh.lens[idx]
			sh.data[idx], carryData = carryData, sh.data[idx]
			sh.ctrl[idx] = dist
			dist = ctrl
			owned = true // the displaced tuple already lives in this shard's arena
		}

		idx = (idx + 1) & sh.mask
		dist++

		if dist == ctrlEmpty {
			if err := sh.rehash(sh.bucketCount * 2); err != nil {
				return false, err
			}

			return sh.insertCarry(carryHash, carryLen, carryData, owned, checkMatch)
		}
	}
}

// rehash grows the shard to newBucketCount (rounded up to a power of
// two) and reinserts every live entry. Entries are already arena-owned,
// so reinsertion never allocates.
func (sh *shard) rehash(newBucketCount int) error {
	newBucketCount = roundUpPow2(max(newBucketCount, MinBucketCount))
	if newBucketCount <= sh.bucketCount {
		newBucketCount = sh.bucketCount * 2
	}

	old := *sh

	sh.hashes = make([]uint64, newBucketCount)
	sh.lens = make([]int, newBucketCount)
	sh.data = make([][]byte, newBucketCount)
	sh.ctrl = make([]uint8, newBucketCount)
	sh.bucketCount = newBucketCount
	sh.mask = uint64(newBucketCount - 1)
	sh.entryCount = 0
	sh.cuckoo = newCuckooFor(newBucketCount)

	for i := range sh.ctrl {
		sh.ctrl[i] = ctrlEmpty
	}

	for i, c := range old.ctrl {
		if c == ctrlEmpty {
			continue
		}

		sh.rehashInsert(old.hashes[i], old.lens[i], old.data[i])
	}

	return nil
}

// rehashInsert places an already arena-owned entry during a rehash. It
// never allocates and never reports duplicates, since every source slot
// is unique by construction.
func (sh *shard) rehashInsert(hash uint64, length int, data []byte) {
	idx := hash & sh.mask
	dist := uint8(0)

	carryHash := hash
	carryLen := length
	carryData := data

	for {
		if sh.ctrl[idx] == ctrlEmpty {
			sh.hashes[idx] = carryHash
			sh.lens[idx] = carryLen
			sh.data[idx] = carryData
			sh.ctrl[idx] = dist
			sh.entryCount++
			sh.cuckoo.Insert(carryData)

			return
		}

		if sh.ctrl[idx] < dist {
			sh.hashes[idx], carryHash = carryHash, sh.hashes[idx]
			sh.lens[idx], carryLen = carryLen, sh.lens[idx]
			sh.data[idx], carryData = carryData, sh.data[idx]
			sh.ctrl[idx], dist = dist, sh.ctrl[idx]
		}

		idx = (idx + 1) & sh.mask
		dist++
	}
}

func (sh *shard) clear() {
	for i := range sh.ctrl {
		sh.ctrl[i] = ctrlEmpty
	}

	sh.entryCount = 0
	sh.arena.Reset()
	sh.cuckoo.Reset()
}
