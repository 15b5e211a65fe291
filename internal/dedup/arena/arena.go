// Package arena implements a bump allocator with block chaining, used to
// back the dedup index's key storage so it does not pay per-object
// garbage-collector overhead for its many small allocations.
package arena

import (
	"errors"
	"fmt"

	"github.com/sumatoshi-tech/textdedup/pkg/safeconv"
)

// ErrOverflow is returned when a requested capacity or allocation size
// cannot be represented as a non-negative int on this platform.
var ErrOverflow = errors.New("arena: capacity overflow")

const alignment = 8

// block is one bump-allocated chunk of backing memory.
type block struct {
	buf []byte
	off int
}

func (b *block) alloc(size int) ([]byte, bool) {
	start := alignUp(b.off, alignment)
	end := start + size

	if end > len(b.buf) {
		return nil, false
	}

	b.off = end

	return b.buf[start:end:end], true
}

func alignUp(off, align int) int {
	return (off + align - 1) &^ (align - 1)
}

// Arena is a bump allocator that chains new blocks on overflow. Allocations
// are 8-byte aligned within a block; there is no per-object free. Reset
// rewinds all blocks without releasing their backing storage; Destroy drops
// every block.
type Arena struct {
	blocks   []*block
	current  int
	capacity int
}

// New creates an Arena with an initial block of the given capacity. New
// allocations that overflow the current block grow the arena by chaining a
// new block sized to the larger of the request and the current block's
// capacity.
func New(capacity int) (*Arena, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("%w: negative capacity %d", ErrOverflow, capacity)
	}

	if capacity == 0 {
		capacity = alignment
	}

	a := &Arena{capacity: capacity}
	a.blocks = append(a.blocks, &block{buf: make([]byte, capacity)})

	return a, nil
}

// Alloc returns size bytes, 8-byte aligned, stable for the arena's
// lifetime. It chains a new block when the current one cannot satisfy the
// request.
func (a *Arena) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrOverflow, size)
	}

	if size == 0 {
		return nil, nil
	}

	cur := a.blocks[a.current]
	if buf, ok := cur.alloc(size); ok {
		return buf, nil
	}

	// After Reset, blocks chained before it are still retained; move on to
	// the next one that fits before chaining a new block.
	for a.current+1 < len(a.blocks) {
		a.current++

		if buf, ok := a.blocks[a.current].alloc(size); ok {
			return buf, nil
		}
	}

	newCap := size
	if a.capacity > newCap {
		newCap = a.capacity
	}

	// A new block larger than safeconv.MaxUint32 bytes is reported as
	// ErrOverflow instead of being allocated.
	if _, err := checkedUint32Bound(newCap); err != nil {
		return nil, err
	}

	nb := &block{buf: make([]byte, newCap)}
	a.blocks = append(a.blocks, nb)
	a.current = len(a.blocks) - 1
	a.capacity = newCap

	buf, ok := nb.alloc(size)
	if !ok {
		return nil, fmt.Errorf("%w: block of size %d cannot satisfy request of %d", ErrOverflow, newCap, size)
	}

	return buf, nil
}

// Reset rewinds every block's bump offset to zero without releasing
// backing storage, so subsequent Allocs reuse the same blocks in order.
// Used by the dedup index when a shard is cleared.
func (a *Arena) Reset() {
	for _, b := range a.blocks {
		b.off = 0
	}

	a.current = 0
}

// Destroy releases all blocks. The Arena must not be used afterward.
func (a *Arena) Destroy() {
	a.blocks = nil
	a.current = 0
}

// checkedUint32Bound reports ErrOverflow instead of panicking when a growth
// target exceeds what pkg/safeconv considers a safe uint32 range; arenas
// use it purely as a sanity bound on block growth, not an encoding.
func checkedUint32Bound(v int) (uint32, error) {
	if v < 0 || v > int(safeconv.MaxUint32) {
		return 0, fmt.Errorf("%w: block size %d exceeds platform bound", ErrOverflow, v)
	}

	return uint32(v), nil
}
