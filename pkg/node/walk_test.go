package node_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aladics/code-change-repr/pkg/node"
)

// walkTags collects the tag of every yielded node.
func walkTags(start node.Node) []string {
	var tags []string
	for n := range node.Walk(start) {
		tags = append(tags, n.Tag())
	}

	return tags
}

func TestWalk_DepthFirstOrder(t *testing.T) {
	t.Parallel()

	// root
	// ├── a
	// │   ├── a1
	// │   └── a2
	// └── b
	//     └── b1
	root := branch("root",
		branch("a", leaf("a1", ""), leaf("a2", "")),
		branch("b", leaf("b1", "")),
	)

	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "b1"}, walkTags(root))
}

func TestWalk_YieldsEveryNodeOnce(t *testing.T) {
	t.Parallel()

	root := branch("root",
		branch("a", leaf("a1", ""), leaf("a2", "")),
		branch("b", leaf("b1", ""), branch("c", leaf("c1", ""))),
	)

	seen := make(map[string]int)
	total := 0

	for n := range node.Walk(root) {
		seen[n.ID()]++
		total++
	}

	assert.Equal(t, 8, total)

	for id, count := range seen {
		assert.Equal(t, 1, count, "node %s yielded more than once", id)
	}
}

func TestWalk_SingleNode(t *testing.T) {
	t.Parallel()

	only := leaf("root", "")

	assert.Equal(t, []string{"root"}, walkTags(only))
}

func TestWalk_NilStart(t *testing.T) {
	t.Parallel()

	assert.Empty(t, walkTags(nil))
}

func TestWalk_StopsAtSubtreeStart(t *testing.T) {
	t.Parallel()

	// Walking from an interior node must stay inside its subtree instead of
	// retreating into the enclosing tree.
	sub := branch("sub", leaf("s1", ""), leaf("s2", ""))
	branch("root", sub, leaf("outside", ""))

	assert.Equal(t, []string{"sub", "s1", "s2"}, walkTags(sub))
}

func TestWalk_TerminatesOnSharedChild(t *testing.T) {
	t.Parallel()

	// Splice one child under two parents to simulate a malformed tree. The
	// walk must terminate and still yield each node exactly once.
	shared := leaf("shared", "")
	a := branch("a", shared)
	b := branch("b", leaf("b1", ""))
	root := branch("root", a, b)

	b.children = append(b.children, shared)

	tags := walkTags(root)

	require.Len(t, tags, 5)
	assert.Equal(t, []string{"root", "a", "shared", "b", "b1"}, tags)
}

func TestWalk_Restartable(t *testing.T) {
	t.Parallel()

	root := branch("root", branch("a", leaf("a1", "")), leaf("b", ""))
	seq := node.Walk(root)

	var first, second []string
	for n := range seq {
		first = append(first, n.Tag())
	}

	for n := range seq {
		second = append(second, n.Tag())
	}

	assert.Equal(t, first, second)
}

func TestWalk_EarlyBreak(t *testing.T) {
	t.Parallel()

	root := branch("root", branch("a", leaf("a1", "")), leaf("b", ""))

	var tags []string

	for n := range node.Walk(root) {
		tags = append(tags, n.Tag())
		if len(tags) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"root", "a"}, tags)
}
