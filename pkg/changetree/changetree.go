// Package changetree materializes the structural difference between a
// before and an after parse tree of the same source unit: the root paths
// unique to one side are merged, shared prefixes collapsed, into one
// synthetic tree whose leaves are exactly the divergence points.
package changetree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aladics/code-change-repr/pkg/node"
)

// ErrInconsistentRoot is returned when a root path starts at a different
// root than the one the tree already adopted. A Tree is scoped to one
// source root; mixing paths from unrelated trees is a caller bug, and the
// instance must be discarded.
var ErrInconsistentRoot = errors.New("inconsistent root: all root paths must share a single root")

// Node is a synthetic change-tree node. Its tag, token, sibling rank, and
// identity are copied verbatim from the source node it was created from, so
// identity comparisons keep working across the parsed/synthetic boundary.
type Node struct {
	tag      string
	token    string
	id       string
	rank     int
	parent   *Node
	children []*Node
}

// NewNode copies the identity-bearing fields of src into a fresh node with
// no parent and no children.
func NewNode(src node.Node) *Node {
	return &Node{
		tag:   src.Tag(),
		token: src.Token(),
		id:    src.ID(),
		rank:  src.SiblingRank(),
	}
}

// Tag returns the copied syntactic category.
func (n *Node) Tag() string { return n.tag }

// Token returns the copied leaf text.
func (n *Node) Token() string { return n.token }

// ID returns the identity copied from the source node.
func (n *Node) ID() string { return n.id }

// SiblingRank returns the rank the source node had among its original
// siblings, not a rank recomputed over the merged tree's sparser children.
func (n *Node) SiblingRank() int { return n.rank }

// Parent returns the enclosing node, or nil for the tree root.
func (n *Node) Parent() node.Node {
	if n.parent == nil {
		return nil
	}

	return n.parent
}

// Children returns the ordered child nodes.
func (n *Node) Children() []node.Node {
	children := make([]node.Node, len(n.children))
	for i, child := range n.children {
		children[i] = child
	}

	return children
}

// AddChild appends child as the last child and points its parent link back
// at n, keeping the links consistent for upward traversal.
func (n *Node) AddChild(child *Node) {
	child.parent = n
	n.children = append(n.children, child)
}

// childByID finds an existing child occupying the given structural
// position.
func (n *Node) childByID(id string) *Node {
	for _, child := range n.children {
		if child.id == id {
			return child
		}
	}

	return nil
}

// Tree accumulates root paths unique to one side of a before/after pair.
// It starts rootless; BuildBefore and BuildAfter each reset it and merge
// one side's surviving paths.
type Tree struct {
	beforePaths []node.Path
	afterPaths  []node.Path
	root        *Node
}

// New captures the root paths of both sides, at most maxPaths from each
// (node.DefaultMaxRootPaths when maxPaths is not positive). The returned
// tree is rootless until one of the build methods runs.
func New(beforeRoot, afterRoot node.Node, maxPaths int) *Tree {
	return &Tree{
		beforePaths: node.RootPaths(beforeRoot, maxPaths),
		afterPaths:  node.RootPaths(afterRoot, maxPaths),
	}
}

// Root returns the merged tree's root, or nil while the tree is empty.
func (t *Tree) Root() node.Node {
	if t.root == nil {
		return nil
	}

	return t.root
}

// Empty reports whether the tree holds no nodes. After a build this means
// the two sides share every root path, a normal outcome distinct from a
// construction error.
func (t *Tree) Empty() bool {
	return t.root == nil
}

// BeforePaths returns the captured root paths of the before tree.
func (t *Tree) BeforePaths() []node.Path { return t.beforePaths }

// AfterPaths returns the captured root paths of the after tree.
func (t *Tree) AfterPaths() []node.Path { return t.afterPaths }

// BuildBefore rebuilds the tree from the root paths only the before side
// has.
func (t *Tree) BuildBefore() error {
	return t.buildDiff(t.beforePaths, t.afterPaths)
}

// BuildAfter rebuilds the tree from the root paths only the after side
// has.
func (t *Tree) BuildAfter() error {
	return t.buildDiff(t.afterPaths, t.beforePaths)
}

// buildDiff resets the tree, drops every base path that has an equal path
// on the other side, and merges the survivors in base order. Set iteration
// order carries no meaning, so ordering comes from the base sequence.
func (t *Tree) buildDiff(basePaths, otherPaths []node.Path) error {
	t.root = nil

	otherKeys := make(map[string]struct{}, len(otherPaths))
	for _, path := range otherPaths {
		otherKeys[pathKey(path)] = struct{}{}
	}

	for _, path := range basePaths {
		if _, unchanged := otherKeys[pathKey(path)]; unchanged {
			continue
		}

		if err := t.AddRootPath(path); err != nil {
			return err
		}
	}

	return nil
}

// AddRootPath merges one root-to-leaf path into the tree. The first path
// establishes the root; every later path must start at the same structural
// position or the call fails with ErrInconsistentRoot. Any path segment
// already present is descended into rather than duplicated, which collapses
// prefixes shared across paths into single chains.
func (t *Tree) AddRootPath(path node.Path) error {
	if len(path) == 0 {
		return nil
	}

	pathRoot := NewNode(path[0])

	switch {
	case t.root == nil:
		t.root = pathRoot
	case t.root.id != pathRoot.id:
		return fmt.Errorf("%w: tree rooted at %q, path starts at %q",
			ErrInconsistentRoot, t.root.tag, pathRoot.tag)
	}

	parent := t.root
	for _, pathNode := range path[1:] {
		next := parent.childByID(pathNode.ID())
		if next == nil {
			next = NewNode(pathNode)
			parent.AddChild(next)
		}

		parent = next
	}

	return nil
}

// pathKey keys a path by its identity sequence for set membership. Two
// paths are the same change iff their ID sequences match element for
// element.
func pathKey(path node.Path) string {
	return strings.Join(path.IDs(), "|")
}
