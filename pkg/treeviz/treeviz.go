// Package treeviz renders parsed trees and change trees for humans: as
// graphviz dot documents and as indented terminal listings.
package treeviz

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"

	"github.com/aladics/code-change-repr/pkg/node"
)

// DOT renders the tree under root as a graphviz document, one box per node
// labeled with its display form and one edge per parent/child link. Node
// identities double as graph identifiers, so the output is deterministic
// for a fixed tree.
func DOT(root node.Node) string {
	var edges, labels []string

	for n := range node.Walk(root) {
		labels = append(labels, fmt.Sprintf("%s [label=%q]", n.ID(), node.Display(n)))

		for _, child := range n.Children() {
			edges = append(edges, fmt.Sprintf("%s -> %s;", n.ID(), child.ID()))
		}
	}

	lines := make([]string, 0, len(edges)+len(labels)+3)
	lines = append(lines, "digraph G {")
	lines = append(lines, edges...)
	lines = append(lines, "")
	lines = append(lines, labels...)
	lines = append(lines, "}")

	return strings.Join(lines, "\n")
}

// Render draws the tree under root as an indented list, one line per node.
// An empty tree renders as an empty string.
func Render(root node.Node) string {
	if root == nil {
		return ""
	}

	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedRounded)
	appendSubtree(lw, root)

	return lw.Render()
}

func appendSubtree(lw list.Writer, n node.Node) {
	lw.AppendItem(node.Display(n))

	lw.Indent()

	for _, child := range n.Children() {
		appendSubtree(lw, child)
	}

	lw.UnIndent()
}
