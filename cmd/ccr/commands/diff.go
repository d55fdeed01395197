package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/aladics/code-change-repr/pkg/changetree"
	"github.com/aladics/code-change-repr/pkg/cst"
	"github.com/aladics/code-change-repr/pkg/flatten"
	"github.com/aladics/code-change-repr/pkg/node"
	"github.com/aladics/code-change-repr/pkg/treeviz"
)

const (
	formatText  = "text"
	formatTree  = "tree"
	formatDOT   = "dot"
	formatPatch = "patch"
)

var (
	// ErrUnknownLanguage indicates detection failed and no --language was
	// given.
	ErrUnknownLanguage = errors.New("cannot determine language; use --language")

	// ErrUnsupportedFormat indicates an unrecognized output format.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// DiffCommand holds flags for the diff command.
type DiffCommand struct {
	language     string
	format       string
	maxRootPaths int
	quiet        bool
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(app *App) *cobra.Command {
	dc := &DiffCommand{}

	cmd := &cobra.Command{
		Use:   "diff <before-file> <after-file>",
		Short: "Diff two source files as change trees",
		Long: `Diff two source files structurally.

Both files are parsed into concrete syntax trees; the root paths unique
to each side form the before and after change trees.

Examples:
  ccr diff old/A.java new/A.java               # flattened change lines
  ccr diff -f tree old/A.java new/A.java       # indented tree listing
  ccr diff -f dot old.go new.go | dot -Tsvg    # graphviz rendering
  ccr diff -f patch old.py new.py              # entry-level patch text`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dc.run(cmd, app, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&dc.language, "language", "l", "", "force language instead of detecting")
	cmd.Flags().StringVarP(&dc.format, "format", "f", formatText, "output format: text, tree, dot, patch")
	cmd.Flags().IntVar(&dc.maxRootPaths, "max-root-paths", 0, "cap on root paths per tree (0 = config default)")
	cmd.Flags().BoolVarP(&dc.quiet, "quiet", "q", false, "suppress the summary")

	return cmd
}

func (dc *DiffCommand) run(cmd *cobra.Command, app *App, beforePath, afterPath string) error {
	before, err := os.ReadFile(beforePath)
	if err != nil {
		return fmt.Errorf("read before state: %w", err)
	}

	after, err := os.ReadFile(afterPath)
	if err != nil {
		return fmt.Errorf("read after state: %w", err)
	}

	language, err := resolveLanguage(app, dc.language, afterPath, after)
	if err != nil {
		return err
	}

	parser, err := cst.NewParser(language)
	if err != nil {
		return err
	}

	beforeTree, err := parser.Parse(cmd.Context(), before)
	if err != nil {
		return fmt.Errorf("parse %s: %w", beforePath, err)
	}

	afterTree, err := parser.Parse(cmd.Context(), after)
	if err != nil {
		return fmt.Errorf("parse %s: %w", afterPath, err)
	}

	maxPaths := dc.maxRootPaths
	if maxPaths <= 0 {
		maxPaths = app.Config.Parser.MaxRootPaths
	}

	tree := changetree.New(beforeTree.Root(), afterTree.Root(), maxPaths)

	if err := tree.BuildBefore(); err != nil {
		return err
	}

	beforeRoot := tree.Root()
	beforeEntries := flatten.Flatten(beforeRoot)

	if err := tree.BuildAfter(); err != nil {
		return err
	}

	afterRoot := tree.Root()
	afterEntries := flatten.Flatten(afterRoot)

	err = dc.render(cmd.OutOrStdout(), beforeRoot, afterRoot, beforeEntries, afterEntries)
	if err != nil {
		return err
	}

	if !dc.quiet {
		dc.summarize(cmd.ErrOrStderr(), tree, beforeEntries, afterEntries)
	}

	return nil
}

func (dc *DiffCommand) render(
	out io.Writer, beforeRoot, afterRoot node.Node, beforeEntries, afterEntries []string,
) error {
	switch dc.format {
	case formatText:
		fmt.Fprintln(out, flatten.Line(beforeEntries))
		fmt.Fprintln(out, flatten.Line(afterEntries))
	case formatTree:
		fmt.Fprintln(out, "before:")
		fmt.Fprintln(out, treeviz.Render(beforeRoot))
		fmt.Fprintln(out, "after:")
		fmt.Fprintln(out, treeviz.Render(afterRoot))
	case formatDOT:
		fmt.Fprintln(out, treeviz.DOT(beforeRoot))
		fmt.Fprintln(out, treeviz.DOT(afterRoot))
	case formatPatch:
		fmt.Fprint(out, changePatch(beforeEntries, afterEntries))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, dc.format)
	}

	return nil
}

func (dc *DiffCommand) summarize(errOut io.Writer, tree *changetree.Tree, beforeEntries, afterEntries []string) {
	if len(beforeEntries) == 0 && len(afterEntries) == 0 {
		color.New(color.FgGreen).Fprintln(errOut, "no structural differences")

		return
	}

	color.New(color.FgCyan).Fprintf(errOut, "before: %d root paths, %d changed entries\n",
		len(tree.BeforePaths()), len(beforeEntries))
	color.New(color.FgCyan).Fprintf(errOut, "after:  %d root paths, %d changed entries\n",
		len(tree.AfterPaths()), len(afterEntries))
}

// changePatch renders the entry-level differences between the two
// flattened sequences as go-diff patch text, one entry per line.
func changePatch(beforeEntries, afterEntries []string) string {
	beforeText := strings.Join(beforeEntries, "\n")
	afterText := strings.Join(afterEntries, "\n")

	dmp := diffmatchpatch.New()

	src, dst, lines := dmp.DiffLinesToRunes(beforeText, afterText)
	diffs := dmp.DiffMainRunes(src, dst, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	return dmp.PatchToText(dmp.PatchMake(beforeText, diffs))
}

// resolveLanguage picks the grammar for a file: the explicit flag wins,
// then the configured default, then content-based detection.
func resolveLanguage(app *App, flagValue, filename string, content []byte) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	if app.Config.Parser.Language != "" {
		return app.Config.Parser.Language, nil
	}

	if detected := cst.GuessLanguage(filename, content); detected != "" {
		return detected, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownLanguage, filename)
}
