package blocktree

import "fmt"

// Access resolves the rune at global position i within the tree rooted at
// root. Pointer nodes are resolved by reading text directly at the
// equivalent offset into their target marked node, rather than by
// chasing another pointer traversal; marked interior nodes recurse into
// whichever child's span contains i, and marked leaves read text
// directly.
func Access(root *Node, i int, text []rune) rune {
	if !root.IsMarked {
		offset := i - root.StartPos
		return text[root.TargetPos+offset]
	}

	if len(root.Children) == 0 {
		return text[i]
	}

	for _, child := range root.Children {
		if i >= child.StartPos && i < child.StartPos+child.Length {
			return Access(child, i, text)
		}
	}

	return '?'
}

// Validate walks the tree checking the tiling invariant (every marked
// node's children exactly and contiguously tile its own span and point
// back to it as Parent) and that every pointer node's target span lies
// inside text. It does not check that a pointer's target is a marked
// node or that the two spans hold equal content.
func Validate(root *Node, text []rune) error {
	return validateNode(root, text)
}

func validateNode(n *Node, text []rune) error {
	if !n.IsMarked {
		if n.TargetPos < 0 || n.TargetPos+n.Length > len(text) {
			return fmt.Errorf("blocktree: pointer node at %d targets out-of-range pos %d", n.StartPos, n.TargetPos)
		}

		return nil
	}

	if len(n.Children) == 0 {
		return nil
	}

	expected := n.StartPos

	for _, c := range n.Children {
		if c.StartPos != expected {
			return fmt.Errorf("blocktree: gap/overlap at %d, expected child start %d got %d", n.StartPos, expected, c.StartPos)
		}

		if c.Parent != n {
			return fmt.Errorf("blocktree: child at %d has wrong parent back-pointer", c.StartPos)
		}

		if err := validateNode(c, text); err != nil {
			return err
		}

		expected = c.StartPos + c.Length
	}

	if expected != n.StartPos+n.Length {
		return fmt.Errorf("blocktree: children of node at %d do not tile its full span (covered to %d, want %d)",
			n.StartPos, expected, n.StartPos+n.Length)
	}

	return nil
}
