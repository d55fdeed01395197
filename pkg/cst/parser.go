package cst

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/aladics/code-change-repr/pkg/safeconv"
)

// Sentinel errors for parser operations.
var (
	// ErrUnknownLanguage is returned when no grammar is registered under
	// the requested name.
	ErrUnknownLanguage = errors.New("language not supported")

	// ErrNoRootNode is returned when a parse produces a null root, which
	// tree-sitter reports instead of failing outright.
	ErrNoRootNode = errors.New("parse produced no root node")

	errPoolType = errors.New("parser pool returned unexpected type")
)

// maxInternLen is the maximum string length eligible for per-parse
// interning. Longer strings are unlikely to repeat within a single file.
const maxInternLen = 32

// Parser turns source bytes of one language into arena-backed trees. It is
// safe for concurrent use; the underlying tree-sitter parsers are pooled.
type Parser struct {
	language string
	pool     sync.Pool
}

// NewParser returns a parser for the named language, or ErrUnknownLanguage
// when the name has no registered grammar.
func NewParser(language string) (*Parser, error) {
	lang := GetLanguage(language)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, language)
	}

	p := &Parser{language: language}
	p.pool = sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}

	return p, nil
}

// Language returns the parser's language name.
func (p *Parser) Language() string {
	return p.language
}

// Parse parses src into a Tree. The sitter tree is copied into the arena
// and closed before returning, so the result has no C-side lifetime. The
// context is passed through to the binding; a parse is not cancelable
// mid-flight.
func (p *Parser) Parse(ctx context.Context, src []byte) (*Tree, error) {
	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer p.pool.Put(tsParser)

	tsTree, err := tsParser.ParseString(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", p.language, err)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.IsNull() {
		return nil, ErrNoRootNode
	}

	arena := newArena(root, src)

	return newView(arena, 0), nil
}

// newArena copies a sitter tree into index-linked slices. The sitter tree
// is closed right after, so nothing here may retain sitter handles.
func newArena(root sitter.Node, src []byte) *arena {
	a := &arena{}
	interner := make(map[string]string, 128) //nolint:mnd // initial capacity for per-parse string interner

	a.addSubtree(root, -1, src, interner)

	return a
}

// arena holds the per-node data of one parse. Parent and child links are
// indices, never pointers, so re-rooted views can share the storage.
type arena struct {
	tags       []string
	tokens     []string
	startLines []int
	startCols  []int
	endLines   []int
	endCols    []int
	parents    []int
	children   [][]int
}

// addSubtree appends tsNode and recursively its children, returning the
// node's arena index. Leaf tokens are extracted here because the sitter
// tree will be gone by the time anyone asks for them.
func (a *arena) addSubtree(tsNode sitter.Node, parent int, src []byte, interner map[string]string) int {
	idx := len(a.tags)
	start := tsNode.StartPoint()
	end := tsNode.EndPoint()

	a.tags = append(a.tags, intern(tsNode.Type(), interner))
	a.tokens = append(a.tokens, "")
	a.startLines = append(a.startLines, safeconv.MustUintToInt(start.Row)+1)
	a.startCols = append(a.startCols, safeconv.MustUintToInt(start.Column)+1)
	a.endLines = append(a.endLines, safeconv.MustUintToInt(end.Row)+1)
	a.endCols = append(a.endCols, safeconv.MustUintToInt(end.Column)+1)
	a.parents = append(a.parents, parent)
	a.children = append(a.children, nil)

	childCount := tsNode.ChildCount()
	if childCount == 0 {
		a.tokens[idx] = leafText(tsNode, src, interner)

		return idx
	}

	childIdxs := make([]int, 0, childCount)
	for i := range childCount {
		childIdxs = append(childIdxs, a.addSubtree(tsNode.Child(i), idx, src, interner))
	}

	a.children[idx] = childIdxs

	return idx
}

// leafText slices the leaf's source text out of src.
func leafText(tsNode sitter.Node, src []byte, interner map[string]string) string {
	start := tsNode.StartByte()
	end := tsNode.EndByte()

	if safeconv.MustUintToInt(end) > len(src) {
		return ""
	}

	return intern(string(src[start:end]), interner)
}

// intern deduplicates short strings within one parse; tags and short
// tokens repeat constantly in real source.
func intern(s string, interner map[string]string) string {
	if len(s) > maxInternLen {
		return s
	}

	if interned, ok := interner[s]; ok {
		return interned
	}

	interner[s] = s

	return s
}
