// Package index implements the sharded, arena-backed Robin-Hood dedup
// set: a concurrent set of normalized text units keyed by 64-bit FNV-1a
// fingerprints. Each shard is an independent open-addressed hash table
// guarded by its own mutex, so unrelated shards make progress in
// parallel. A per-shard Cuckoo filter accelerates the common case of
// inserting a genuinely new unit by letting the probe skip its
// byte-comparison branch whenever the filter can prove absence; the
// Robin-Hood table itself remains the only source of truth for
// membership.
package index

import (
	"errors"
	"fmt"

	"github.com/sumatoshi-tech/textdedup/pkg/alg/cuckoo"
)

// Tuning constants, grounded on the reference sentence_set.c.
const (
	MinBucketCount   = 16
	AvgSentenceBytes = 64
	DefaultShards    = 16
	ctrlEmpty        = 0xFF

	// loadFactorNum/loadFactorDen bound the load factor a shard will
	// carry before InsertHashed triggers a grow-before-insert rehash.
	loadFactorNum = 85
	loadFactorDen = 100

	// reserveFactorNum/reserveFactorDen re-express "5/4" from the
	// reference's reserve_for_bytes (needed = target * 5 / 4, i.e. the
	// bucket count that keeps the post-reserve load factor at 80%).
	reserveFactorNum = 5
	reserveFactorDen = 4
)

// ErrRehashFailed is returned when a shard cannot grow its backing
// arrays (conceptually OOM; on the Go heap this only surfaces via a
// defensive bound, since make() itself panics on true exhaustion).
var ErrRehashFailed = errors.New("index: shard rehash failed")

// Set is a fixed array of independently-locked shards forming one
// logical dedup index.
type Set struct {
	shards    []*shard
	shardMask uint64
}

// Init creates a Set sized for roughly capacity total entries. The shard
// count is the largest power of two at most DefaultShards such that each
// shard's initial bucket count is still at least MinBucketCount.
func Init(capacity int) (*Set, error) {
	return initShards(capacity, chooseShardCount(capacity))
}

// InitSingleShard creates a Set with exactly one shard, used for the
// per-worker thread-local intra-file filter where sharding would only
// add lock overhead with no concurrency benefit.
func InitSingleShard(capacity int) (*Set, error) {
	return initShards(capacity, 1)
}

func initShards(capacity, shardCount int) (*Set, error) {
	perShard := roundUpPow2(max(capacity/shardCount, MinBucketCount))

	s := &Set{
		shards:    make([]*shard, shardCount),
		shardMask: uint64(shardCount - 1),
	}

	for i := range s.shards {
		sh, err := newShard(perShard)
		if err != nil {
			return nil, fmt.Errorf("index: init shard %d: %w", i, err)
		}

		s.shards[i] = sh
	}

	return s, nil
}

func chooseShardCount(capacity int) int {
	bucketCount := max(capacity, MinBucketCount)

	shards := DefaultShards
	for shards > 1 && bucketCount/shards < MinBucketCount {
		shards >>= 1
	}

	return shards
}

func roundUpPow2(v int) int {
	p := 1
	for p < v {
		p <<= 1
	}

	return p
}

func (s *Set) shardFor(hash uint64) *shard {
	const highShift = 48

	idx := (hash >> highShift) & s.shardMask

	return s.shards[idx]
}

// InsertHashed inserts data under the given precomputed fingerprint.
// inserted is true iff this call added a new entry; false means data was
// already present.
func (s *Set) InsertHashed(hash uint64, data []byte) (inserted bool, err error) {
	sh := s.shardFor(hash)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	threshold := max(sh.bucketCount*loadFactorNum/loadFactorDen, 1)
	if sh.entryCount+1 > threshold {
		if err := sh.rehash(sh.bucketCount * 2); err != nil {
			return false, err
		}
	}

	return sh.insert(hash, data)
}

// InsertKnownNew inserts data under hash without performing the
// byte-comparison duplicate check, for callers that have already proven
// absence through an external accelerator (the file pipeline's per-file
// Bloom pre-filter, specifically). Calling this for data already present
// stores a second entry for the same key, counted again by Len; callers
// must have a real guarantee, not a guess.
func (s *Set) InsertKnownNew(hash uint64, data []byte) error {
	sh := s.shardFor(hash)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	threshold := max(sh.bucketCount*loadFactorNum/loadFactorDen, 1)
	if sh.entryCount+1 > threshold {
		if err := sh.rehash(sh.bucketCount * 2); err != nil {
			return err
		}
	}

	return sh.insertKnownNew(hash, data)
}

// ReserveForBytes grows shards ahead of processing n more bytes of input,
// estimating entries/shard + n/AvgSentenceBytes new entries and rehashing
// any shard whose projected load factor would exceed 80%.
func (s *Set) ReserveForBytes(n int) {
	if len(s.shards) == 0 {
		return
	}

	expected := max(n/AvgSentenceBytes, MinBucketCount)

	var totalEntries, totalBuckets int

	for _, sh := range s.shards {
		sh.mu.Lock()
		totalEntries += sh.entryCount
		totalBuckets += sh.bucketCount
		sh.mu.Unlock()
	}

	target := totalEntries + expected
	needed := target * reserveFactorNum / reserveFactorDen

	if needed <= totalBuckets {
		return
	}

	perNeeded := roundUpPow2(max(needed/len(s.shards), MinBucketCount))

	for _, sh := range s.shards {
		sh.mu.Lock()
		if perNeeded > sh.bucketCount {
			_ = sh.rehash(perNeeded)
		}
		sh.mu.Unlock()
	}
}

// Clear resets every shard's control bytes to empty and rewinds its
// arena without releasing bucket storage.
func (s *Set) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.clear()
		sh.mu.Unlock()
	}
}

// Destroy releases every shard's backing storage. The Set must not be
// used afterward.
func (s *Set) Destroy() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.arena.Destroy()
		sh.mu.Unlock()
	}

	s.shards = nil
}

// Len returns the total number of entries across all shards.
func (s *Set) Len() int {
	total := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		total += sh.entryCount
		sh.mu.Unlock()
	}

	return total
}

// newCuckooFor sizes a shard's fast-reject filter to its bucket count.
func newCuckooFor(bucketCount int) *cuckoo.Filter {
	f, err := cuckoo.New(uint(bucketCount))
	if err != nil {
		// bucketCount is always >= MinBucketCount > 0 here, so New only
		// fails on zero capacity; this branch is unreachable in practice.
		f, _ = cuckoo.New(MinBucketCount)
	}

	return f
}
