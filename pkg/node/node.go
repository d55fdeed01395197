// Package node defines the tree node contract shared by parsed syntax trees
// and synthetic change trees, plus the identity, traversal, and root-path
// operations derived from it.
package node

import (
	"crypto/sha1" //nolint:gosec // SHA1 used for content fingerprinting, not security.
	"encoding/hex"
	"strconv"
)

// Node is the minimal contract shared by parsed-tree and change-tree nodes.
// Every derived operation in this package works purely against these six
// accessors, so trees of either variant diff and traverse identically.
type Node interface {
	// Tag returns the node's syntactic category. Never empty.
	Tag() string
	// Parent returns the enclosing node, or nil for a tree root.
	Parent() Node
	// Children returns the ordered child nodes, empty iff the node is a leaf.
	Children() []Node
	// ID returns the node's stable identity string. Two nodes, possibly from
	// different trees, occupy the same structural position iff their IDs are
	// equal. Reference equality is never meaningful.
	ID() string
	// Token returns the literal text carried by a leaf, or "" for interior
	// nodes.
	Token() string
	// SiblingRank returns how many preceding siblings under the same parent
	// share this node's tag. The first of its tag ranks 0.
	SiblingRank() int
}

// Ancestors returns the chain of enclosing nodes, immediate parent first,
// tree root last. Empty for a root.
func Ancestors(n Node) []Node {
	var ancestors []Node
	for parent := n.Parent(); parent != nil; parent = parent.Parent() {
		ancestors = append(ancestors, parent)
	}

	return ancestors
}

// RelativeID fingerprints a node's local structural role: its depth, sibling
// rank, tag, and for leaves the token. Nodes that look alike but sit at a
// different depth or rank fingerprint differently. Full ancestor context is
// deliberately excluded; see StructuralID.
func RelativeID(n Node) string {
	repr := strconv.Itoa(len(Ancestors(n))) + "_" + strconv.Itoa(n.SiblingRank()) + "_" + n.Tag()
	if token := leafToken(n); token != "" {
		repr += "_" + token
	}

	// Hashed because tokens may carry arbitrary characters.
	return "node_" + digest(repr)
}

// PathFingerprint concatenates the relative fingerprint of every ancestor in
// root-to-immediate-parent order. It only serves as an identity suffix and
// is never displayed.
func PathFingerprint(n Node) string {
	ancestors := Ancestors(n)

	fingerprint := ""
	for i := len(ancestors) - 1; i >= 0; i-- {
		fingerprint += RelativeID(ancestors[i])
	}

	return fingerprint
}

// StructuralID derives the identity of a parsed node: a digest over its
// relative fingerprint joined with its full ancestor fingerprint chain.
// Unique within one tree, and equal across trees exactly when the
// structural positions coincide, which is what makes change-tree prefix
// merging possible.
func StructuralID(n Node) string {
	return "node_" + digest(RelativeID(n)+"_"+PathFingerprint(n))
}

// Display returns the human-readable, non-unique form: the tag alone, or
// "tag: token" for a leaf whose token differs from its tag.
func Display(n Node) string {
	if token := leafToken(n); token != "" && token != n.Tag() {
		return n.Tag() + ": " + token
	}

	return n.Tag()
}

// IsLeaf reports whether the node has no children.
func IsLeaf(n Node) bool {
	return len(n.Children()) == 0
}

// Same reports structural-position equality between two nodes of any
// variant: their IDs match.
func Same(a, b Node) bool {
	return a.ID() == b.ID()
}

// leafToken returns the node's token when it is a leaf, "" otherwise.
func leafToken(n Node) string {
	if !IsLeaf(n) {
		return ""
	}

	return n.Token()
}

func digest(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // SHA1 used for content fingerprinting, not security.

	return hex.EncodeToString(sum[:])
}
