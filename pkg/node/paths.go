package node

import "slices"

// DefaultMaxRootPaths caps how many root paths one extraction returns.
// Pathological trees can carry enormous leaf counts; everything past the
// cap is dropped silently so extraction cost stays bounded.
const DefaultMaxRootPaths = 1000

// A Path is the node sequence from a tree's root down to one leaf.
type Path []Node

// Leaf returns the path's terminal node.
func (p Path) Leaf() Node {
	return p[len(p)-1]
}

// IDs returns the identity sequence of the path's nodes, root first.
func (p Path) IDs() []string {
	ids := make([]string, len(p))
	for i, n := range p {
		ids[i] = n.ID()
	}

	return ids
}

// RootPaths extracts the root-to-leaf path for every leaf reachable from
// root, in traversal order, returning at most maxPaths of them. Each leaf
// contributes exactly one path and the order is deterministic for a fixed
// tree. A non-positive maxPaths falls back to DefaultMaxRootPaths.
func RootPaths(root Node, maxPaths int) []Path {
	if maxPaths <= 0 {
		maxPaths = DefaultMaxRootPaths
	}

	var paths []Path

	for n := range Walk(root) {
		if !IsLeaf(n) {
			continue
		}

		paths = append(paths, rootPath(root, n))
		if len(paths) == maxPaths {
			break
		}
	}

	return paths
}

// rootPath follows parent links from leaf back up to root and reverses the
// sequence into root-to-leaf order.
func rootPath(root, leaf Node) Path {
	rootID := root.ID()
	path := Path{leaf}

	for n := leaf; n.ID() != rootID; {
		parent := n.Parent()
		if parent == nil {
			break
		}

		path = append(path, parent)
		n = parent
	}

	slices.Reverse(path)

	return path
}
