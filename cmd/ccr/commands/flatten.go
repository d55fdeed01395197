package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aladics/code-change-repr/pkg/cst"
	"github.com/aladics/code-change-repr/pkg/flatten"
)

// ErrNoMethodAtLine indicates --line points outside every method.
var ErrNoMethodAtLine = errors.New("no method at line")

// FlattenCommand holds flags for the flatten command.
type FlattenCommand struct {
	language string
	line     int
}

// NewFlattenCommand creates the flatten command.
func NewFlattenCommand(app *App) *cobra.Command {
	fc := &FlattenCommand{}

	cmd := &cobra.Command{
		Use:   "flatten <file>",
		Short: "Flatten a parse tree into one corpus line",
		Long: `Parse a source file and print its flattened token sequence.

With --line, only the method enclosing that line is flattened, the same
subtree the corpus pipeline extracts for a dataset row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.run(cmd, app, args[0])
		},
	}

	cmd.Flags().StringVarP(&fc.language, "language", "l", "", "force language instead of detecting")
	cmd.Flags().IntVar(&fc.line, "line", 0, "flatten only the method enclosing this line (0 = whole file)")

	return cmd
}

func (fc *FlattenCommand) run(cmd *cobra.Command, app *App, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	language, err := resolveLanguage(app, fc.language, path, src)
	if err != nil {
		return err
	}

	parser, err := cst.NewParser(language)
	if err != nil {
		return err
	}

	tree, err := parser.Parse(cmd.Context(), src)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	root := tree.Root()

	if fc.line > 0 {
		method := tree.MethodAt(fc.line)
		if method == nil {
			return fmt.Errorf("%w: %d", ErrNoMethodAtLine, fc.line)
		}

		root = method.Root()
	}

	fmt.Fprintln(cmd.OutOrStdout(), flatten.Line(flatten.Flatten(root)))

	return nil
}
