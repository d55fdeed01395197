package cst_test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aladics/code-change-repr/pkg/cst"
	"github.com/aladics/code-change-repr/pkg/node"
)

// javaClass is a minimal class with one method spanning lines 2 through 4.
const javaClass = `class A {
    int add(int a, int b) {
        return a + b;
    }
}
`

// javaClassWithCtor places a constructor on line 2 and a method on line 3.
const javaClassWithCtor = `class A {
    A() {}
    int add(int a, int b) { return a + b; }
}
`

// javaTwoMethods shifts the add method below another declaration, so its
// file position differs from javaClass while its text stays the same.
const javaTwoMethods = `class B {
    void other() {}

    int add(int a, int b) {
        return a + b;
    }
}
`

func parseTree(t *testing.T, language, src string) *cst.Tree {
	t.Helper()

	parser, err := cst.NewParser(language)
	require.NoError(t, err)

	tree, err := parser.Parse(context.Background(), []byte(src))
	require.NoError(t, err)

	return tree
}

// leafTokens walks the tree and collects every leaf token.
func leafTokens(root node.Node) []string {
	var tokens []string

	for n := range node.Walk(root) {
		if node.IsLeaf(n) {
			tokens = append(tokens, n.Token())
		}
	}

	return tokens
}

// walkIDs collects every node identity in walk order. Two trees are
// structurally identical iff these sequences match.
func walkIDs(root node.Node) []string {
	var ids []string

	for n := range node.Walk(root) {
		ids = append(ids, n.ID())
	}

	return ids
}

func TestNewParser_UnknownLanguage(t *testing.T) {
	t.Parallel()

	_, err := cst.NewParser("brainfuck")

	require.ErrorIs(t, err, cst.ErrUnknownLanguage)
}

func TestParse_JavaClass(t *testing.T) {
	t.Parallel()

	tree := parseTree(t, "java", javaClass)
	root := tree.Root()

	assert.Equal(t, "program", root.Tag())
	assert.NotEmpty(t, root.Children())

	line, col := tree.Root().(cst.Node).Position()
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)

	tokens := leafTokens(root)
	assert.Contains(t, tokens, "class")
	assert.Contains(t, tokens, "A")
	assert.Contains(t, tokens, "add")
}

func TestParse_GoSource(t *testing.T) {
	t.Parallel()

	tree := parseTree(t, "go", "package main\n\nfunc hello() {}\n")

	assert.Equal(t, "source_file", tree.Root().Tag())
	assert.Contains(t, leafTokens(tree.Root()), "hello")
}

func TestParse_EmptySource(t *testing.T) {
	t.Parallel()

	tree := parseTree(t, "java", "")
	root := tree.Root()

	assert.Equal(t, "program", root.Tag())
	assert.Empty(t, root.Children())
}

func TestParse_IdentityStableAcrossReparses(t *testing.T) {
	t.Parallel()

	first := parseTree(t, "java", javaClass)
	second := parseTree(t, "java", javaClass)

	assert.Equal(t, walkIDs(first.Root()), walkIDs(second.Root()))
}

func TestParse_DifferentSourcesDiffer(t *testing.T) {
	t.Parallel()

	first := parseTree(t, "java", javaClass)
	second := parseTree(t, "java", javaClassWithCtor)

	// Roots share an identity because identity is positional, but the node
	// sets underneath diverge where the constructor appears.
	assert.True(t, node.Same(first.Root(), second.Root()))
	assert.NotEqual(t, walkIDs(first.Root()), walkIDs(second.Root()))
}

func TestSubtreesOfTag_FindsEveryMethod(t *testing.T) {
	t.Parallel()

	tree := parseTree(t, "java", javaTwoMethods)

	methods := tree.SubtreesOfTag("method_declaration")

	require.Len(t, methods, 2)

	for _, method := range methods {
		assert.Equal(t, "method_declaration", method.Root().Tag())
	}
}

func TestSubtreesOfTag_ViewsAreReRooted(t *testing.T) {
	t.Parallel()

	tree := parseTree(t, "java", javaClass)

	methods := tree.SubtreesOfTag("method_declaration")
	require.Len(t, methods, 1)

	viewRoot := methods[0].Root()
	assert.Nil(t, viewRoot.Parent())
	assert.Zero(t, viewRoot.SiblingRank())
}

func TestSubtreeViews_IdentityIgnoresSurroundings(t *testing.T) {
	t.Parallel()

	// The add method's text is identical in both files, only its position
	// within the class differs. View-relative identity must not see that.
	compact := parseTree(t, "java", javaClassWithCtor)
	shifted := parseTree(t, "java", javaTwoMethods)

	compactMethods := compact.SubtreesOfTag("method_declaration")
	shiftedMethods := shifted.SubtreesOfTag("method_declaration")

	require.Len(t, compactMethods, 1)
	require.Len(t, shiftedMethods, 2)

	assert.Equal(t, walkIDs(compactMethods[0].Root()), walkIDs(shiftedMethods[1].Root()))
}

func TestMethodAt_CoversMethodLines(t *testing.T) {
	t.Parallel()

	tree := parseTree(t, "java", javaClass)

	method := tree.MethodAt(3)

	require.NotNil(t, method)
	assert.Equal(t, "method_declaration", method.Root().Tag())
}

func TestMethodAt_FindsConstructor(t *testing.T) {
	t.Parallel()

	tree := parseTree(t, "java", javaClassWithCtor)

	ctor := tree.MethodAt(2)

	require.NotNil(t, ctor)
	assert.Equal(t, "constructor_declaration", ctor.Root().Tag())
}

func TestMethodAt_OutsideAnyMethod(t *testing.T) {
	t.Parallel()

	tree := parseTree(t, "java", javaClass)

	assert.Nil(t, tree.MethodAt(1))
	assert.Nil(t, tree.MethodAt(100))
}

func TestRootPaths_OverParsedTree(t *testing.T) {
	t.Parallel()

	tree := parseTree(t, "java", javaClass)
	root := tree.Root()

	paths := node.RootPaths(root, 0)

	require.NotEmpty(t, paths)

	for _, path := range paths {
		assert.Equal(t, root.ID(), path[0].ID())
		assert.True(t, node.IsLeaf(path.Leaf()))
	}
}

func TestGuessLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		content  string
		want     string
	}{
		{"java_file", "Main.java", javaClass, "java"},
		{"go_file", "main.go", "package main\n", "go"},
		{"cpp_alias", "main.cpp", "#include <vector>\nint main() { return 0; }\n", "cpp"},
		{"no_grammar", "README.md", "# readme\n", ""},
		{"unknown", "data.bin", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, cst.GuessLanguage(tt.filename, []byte(tt.content)))
		})
	}
}

func TestSupportedLanguages(t *testing.T) {
	t.Parallel()

	languages := cst.SupportedLanguages()

	assert.True(t, slices.IsSorted(languages))
	assert.Contains(t, languages, "java")
	assert.Contains(t, languages, "go")
}
