package blocktree

import (
	"slices"

	"github.com/sumatoshi-tech/textdedup/internal/dedup/hashpool"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/rollinghash"
	"github.com/sumatoshi-tech/textdedup/internal/dedup/sortutil"
)

// Build partitions text into a Block Tree. s sets the root's fan-out
// (level 1 children); tau sets the fan-out of every deeper level. pool,
// if non-nil, is used to parallelize per-level hashing of large
// candidate sets; pass nil to always hash serially.
func Build(text []rune, s, tau int, pool *hashpool.Pool) (*Node, error) {
	root := newNode(0, len(text), 0, nil)
	root.IsMarked = true

	currentMarked := []*Node{root}

	for level := 1; len(currentMarked) > 0; level++ {
		divisor := tau
		if level == 1 {
			divisor = s
		}

		// A divisor below 2 would make partitionLevel hand back a single
		// child spanning the whole parent, which never shrinks and loops
		// forever; clamp to the smallest divisor that always splits.
		if divisor < 2 {
			divisor = 2
		}

		candidates := partitionLevel(currentMarked, text, level, divisor)
		if len(candidates) == 0 {
			break
		}

		hashCandidates(candidates, text, pool)

		currentMarked = deduplicateLevel(candidates, text)
	}

	return root, nil
}

// partitionLevel splits every node in parents into up to divisor children,
// attaching them as parents' Children and returning the flat candidate list
// for this level.
func partitionLevel(parents []*Node, text []rune, level, divisor int) []*Node {
	var candidates []*Node

	for _, p := range parents {
		if p.StartPos >= len(text) {
			continue
		}

		maxLen := p.Length
		if p.StartPos+maxLen > len(text) {
			maxLen = len(text) - p.StartPos
		}

		if maxLen <= 1 {
			continue
		}

		step := maxLen / divisor
		if step == 0 {
			step = 1
		}

		numChildren := divisor
		if step == 1 {
			numChildren = min(maxLen, divisor)
		}

		p.Children = make([]*Node, 0, numChildren)

		for k := range numChildren {
			cStart := p.StartPos + k*step
			cEnd := cStart + step

			if k == numChildren-1 {
				cEnd = p.StartPos + maxLen
			}

			if cStart >= len(text) || cStart >= cEnd {
				break
			}

			if cEnd > len(text) {
				cEnd = len(text)
			}

			child := newNode(cStart, cEnd-cStart, level, p)
			p.Children = append(p.Children, child)
			candidates = append(candidates, child)
		}
	}

	return candidates
}

func hashCandidates(candidates []*Node, text []rune, pool *hashpool.Pool) {
	windows := make([]rollinghash.Window, len(candidates))
	for i, n := range candidates {
		windows[i] = rollinghash.Window{Start: n.StartPos, Length: n.Length, Dest: &candidates[i].BlockID}
	}

	threads := 1
	if pool != nil {
		threads = pool.Workers()
	}

	rollinghash.ComputeBatch(windows, text, threads, pool)
}

// deduplicateLevel sorts candidates by (BlockID, Length, StartPos), then
// scans runs sharing (BlockID, Length): the first node in a run becomes
// the marked leader; later nodes in the run are compared byte-for-byte
// against every leader seen so far within the run (hash collisions can
// produce more than one leader per run) and, on a match, become pointer
// nodes resolving to that leader's StartPos. It returns the new marked
// set for the next level.
func deduplicateLevel(candidates []*Node, text []rune) []*Node {
	sortutil.SortKeyed(candidates)

	marked := make([]*Node, 0, len(candidates))

	leader := candidates[0]
	leader.IsMarked = true
	marked = append(marked, leader)
	groupStart := 0

	for i := 1; i < len(candidates); i++ {
		curr := candidates[i]

		if curr.BlockID != leader.BlockID || curr.Length != leader.Length {
			leader = curr
			leader.IsMarked = true
			marked = append(marked, leader)
			groupStart = len(marked) - 1

			continue
		}

		matched := false

		for _, cand := range marked[groupStart:] {
			if cand.BlockID != curr.BlockID {
				continue
			}

			if blocksEqual(curr, cand, text) {
				curr.IsMarked = false
				curr.TargetPos = cand.StartPos
				matched = true

				break
			}
		}

		if !matched {
			curr.IsMarked = true
			marked = append(marked, curr)
		}
	}

	return marked
}

func blocksEqual(a, b *Node, text []rune) bool {
	if a.Length != b.Length {
		return false
	}

	return slices.Equal(text[a.StartPos:a.StartPos+a.Length], text[b.StartPos:b.StartPos+b.Length])
}
