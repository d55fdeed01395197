package cst

import (
	"github.com/aladics/code-change-repr/pkg/node"
)

// Method subtree tags. Java grammars name method-level declarations this
// way; they are the mining targets for method-scoped diffs.
const (
	methodDeclarationTag      = "method_declaration"
	constructorDeclarationTag = "constructor_declaration"
)

// Tree is a parsed concrete syntax tree, or a re-rooted view of one. Views
// share the arena of the parse they came from, but identities are computed
// relative to the view root, so a method diff is insensitive to shifts in
// the surrounding file.
type Tree struct {
	arena *arena
	root  int
	ids   []string
}

// newView wraps an arena with its own root and identity cache.
func newView(a *arena, root int) *Tree {
	return &Tree{
		arena: a,
		root:  root,
		ids:   make([]string, len(a.tags)),
	}
}

// Root returns the view's root node.
func (t *Tree) Root() node.Node {
	return Node{tree: t, idx: t.root}
}

// SubtreesOfTag returns a re-rooted view for every node under this view
// carrying the given tag, in document order.
func (t *Tree) SubtreesOfTag(tag string) []*Tree {
	var views []*Tree

	t.eachIndex(t.root, func(idx int) {
		if t.arena.tags[idx] == tag {
			views = append(views, newView(t.arena, idx))
		}
	})

	return views
}

// MethodAt returns the method or constructor subtree whose line range
// covers the 1-based line, scanning method declarations in document order
// before constructor declarations. Nil when nothing covers the line.
func (t *Tree) MethodAt(line int) *Tree {
	for _, tag := range []string{methodDeclarationTag, constructorDeclarationTag} {
		for _, view := range t.SubtreesOfTag(tag) {
			if view.arena.startLines[view.root] <= line && line <= view.arena.endLines[view.root] {
				return view
			}
		}
	}

	return nil
}

// eachIndex visits idx and its descendants in document (pre-)order.
func (t *Tree) eachIndex(idx int, fn func(int)) {
	fn(idx)

	for _, child := range t.arena.children[idx] {
		t.eachIndex(child, fn)
	}
}

// Node is a light handle onto one arena slot within one view. Handles are
// created on demand and freely copied; identity lives in the arena slot,
// never in the handle value.
type Node struct {
	tree *Tree
	idx  int
}

// Tag returns the tree-sitter node type.
func (n Node) Tag() string {
	return n.tree.arena.tags[n.idx]
}

// Token returns the leaf's source text, or "" for interior nodes.
func (n Node) Token() string {
	return n.tree.arena.tokens[n.idx]
}

// Parent returns the enclosing node, or nil at the view root even when the
// arena continues above it.
func (n Node) Parent() node.Node {
	if n.idx == n.tree.root {
		return nil
	}

	parent := n.tree.arena.parents[n.idx]
	if parent < 0 {
		return nil
	}

	return Node{tree: n.tree, idx: parent}
}

// Children returns the ordered child nodes.
func (n Node) Children() []node.Node {
	childIdxs := n.tree.arena.children[n.idx]

	children := make([]node.Node, len(childIdxs))
	for i, idx := range childIdxs {
		children[i] = Node{tree: n.tree, idx: idx}
	}

	return children
}

// SiblingRank counts the same-tag siblings before this node under its
// parent. Recomputed on demand; handles are too short-lived to make
// caching worthwhile.
func (n Node) SiblingRank() int {
	if n.idx == n.tree.root {
		return 0
	}

	parent := n.tree.arena.parents[n.idx]
	if parent < 0 {
		return 0
	}

	rank := 0

	for _, sibling := range n.tree.arena.children[parent] {
		if sibling == n.idx {
			break
		}

		if n.tree.arena.tags[sibling] == n.tree.arena.tags[n.idx] {
			rank++
		}
	}

	return rank
}

// ID returns the node's structural identity, computed lazily and cached
// per view slot.
func (n Node) ID() string {
	if cached := n.tree.ids[n.idx]; cached != "" {
		return cached
	}

	id := node.StructuralID(n)
	n.tree.ids[n.idx] = id

	return id
}

// Position returns the node's 1-based start line and column.
func (n Node) Position() (line, col int) {
	return n.tree.arena.startLines[n.idx], n.tree.arena.startCols[n.idx]
}

// EndPosition returns the node's 1-based end line and column.
func (n Node) EndPosition() (line, col int) {
	return n.tree.arena.endLines[n.idx], n.tree.arena.endCols[n.idx]
}
