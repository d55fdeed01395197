// Package flatten renders trees as comma-joined token sequences, one line
// per tree, the corpus encoding consumed by the vocabulary and embedding
// stages.
package flatten

import (
	"fmt"
	"io"
	"strings"

	"github.com/aladics/code-change-repr/pkg/node"
)

// Comment trivia carries no structural signal and is dropped from the
// flattened form.
const (
	lineCommentTag  = "line_comment"
	blockCommentTag = "block_comment"
)

// escaper rewrites every character that would break the one-line-per-tree
// encoding: the comma is the entry separator, and line-oriented readers
// must never see raw control whitespace.
var escaper = strings.NewReplacer(
	",", ";",
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Escape returns s rewritten so it can stand as one entry of a flattened
// line.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Flatten walks the tree under root and returns one entry per node in walk
// order: the escaped tag, or "tag,token" when a leaf's token adds
// information beyond its tag. Comment nodes are skipped. A nil root
// (an empty change tree) flattens to no entries.
func Flatten(root node.Node) []string {
	var entries []string

	for n := range node.Walk(root) {
		if n.Tag() == lineCommentTag || n.Tag() == blockCommentTag {
			continue
		}

		entries = append(entries, entry(n))
	}

	return entries
}

// Line joins flattened entries into a single corpus line.
func Line(entries []string) string {
	return strings.Join(entries, ",")
}

func entry(n node.Node) string {
	tag := Escape(n.Tag())

	if node.IsLeaf(n) {
		if token := Escape(n.Token()); token != "" && token != tag {
			return tag + "," + token
		}
	}

	return tag
}

// Writer appends one corpus line per flattened tree to an underlying
// stream.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer appending to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteTree flattens root and appends it as one line. An empty tree still
// produces a (blank) line so corpus lines stay aligned with dataset rows.
func (w *Writer) WriteTree(root node.Node) error {
	if _, err := io.WriteString(w.w, Line(Flatten(root))+"\n"); err != nil {
		return fmt.Errorf("write corpus line: %w", err)
	}

	return nil
}
