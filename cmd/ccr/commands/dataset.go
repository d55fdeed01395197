package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aladics/code-change-repr/internal/dataset"
)

// NewDatasetCommand creates the dataset command group.
func NewDatasetCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Split, sample, and filter change-sample CSV datasets",
	}

	cmd.AddCommand(
		newDatasetSplitCommand(app),
		newDatasetSampleCommand(app),
		newDatasetFilterCommand(app),
		newDatasetStatsCommand(app),
	)

	return cmd
}

func newDatasetSplitCommand(app *App) *cobra.Command {
	var (
		trainRatio float64
		seed       int64
		trainOut   string
		testOut    string
	)

	cmd := &cobra.Command{
		Use:   "split <csv>",
		Short: "Split a dataset into train and test sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := dataset.ReadFile(args[0])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("train-ratio") {
				trainRatio = app.Config.Dataset.TrainRatio
			}

			if !cmd.Flags().Changed("seed") {
				seed = app.Config.Dataset.Seed
			}

			train, test := dataset.Split(rows, trainRatio, seed)

			trainPath := orDerived(trainOut, args[0], ".train")
			testPath := orDerived(testOut, args[0], ".test")

			if err := dataset.WriteFile(trainPath, train); err != nil {
				return err
			}

			if err := dataset.WriteFile(testPath, test); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d train rows to %s\n", len(train), trainPath)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d test rows to %s\n", len(test), testPath)

			return nil
		},
	}

	cmd.Flags().Float64Var(&trainRatio, "train-ratio", 0, "fraction of rows in the train set (default from config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "shuffle seed (default from config)")
	cmd.Flags().StringVar(&trainOut, "train-out", "", "train output path (default <csv>.train.csv)")
	cmd.Flags().StringVar(&testOut, "test-out", "", "test output path (default <csv>.test.csv)")

	return cmd
}

func newDatasetSampleCommand(app *App) *cobra.Command {
	var (
		nPositives int
		pnRatio    float64
		seed       int64
		trainOut   string
		testOut    string
	)

	cmd := &cobra.Command{
		Use:   "sample <positives-csv> <negatives-csv>",
		Short: "Assemble balanced train and test sets from labeled pools",
		Long: `Draw a class-balanced train set and a test set from two row pools.

The train set holds the requested positives plus enough negatives to
reach the positive-to-negative ratio; the test set is assembled from
the leftovers at the same ratio. Draws are seeded and reproducible.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			positives, err := dataset.ReadFile(args[0])
			if err != nil {
				return err
			}

			negatives, err := dataset.ReadFile(args[1])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("pn-ratio") {
				pnRatio = app.Config.Dataset.PNRatio
			}

			if !cmd.Flags().Changed("seed") {
				seed = app.Config.Dataset.Seed
			}

			if nPositives <= 0 {
				nPositives = len(positives)
			}

			train, positiveLeft, negativeLeft, err := dataset.SampleBalanced(
				positives, negatives, nPositives, pnRatio, seed)
			if err != nil {
				return err
			}

			test, err := dataset.AssembleTestSet(positiveLeft, negativeLeft, pnRatio, seed)
			if err != nil {
				return err
			}

			if err := dataset.WriteFile(trainOut, train); err != nil {
				return err
			}

			if err := dataset.WriteFile(testOut, test); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d train rows to %s\n", len(train), trainOut)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d test rows to %s\n", len(test), testOut)

			return nil
		},
	}

	cmd.Flags().IntVar(&nPositives, "n-positives", 0, "positive rows to draw (0 = all)")
	cmd.Flags().Float64Var(&pnRatio, "pn-ratio", 0, "positive fraction of each set (default from config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "sampling seed (default from config)")
	cmd.Flags().StringVar(&trainOut, "train-out", "train.csv", "train output path")
	cmd.Flags().StringVar(&testOut, "test-out", "test.csv", "test output path")

	return cmd
}

func newDatasetFilterCommand(_ *App) *cobra.Command {
	var (
		scoresPath string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "filter <csv>",
		Short: "Keep rows whose after-state commit has a scored file change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := dataset.ReadFile(args[0])
			if err != nil {
				return err
			}

			commits, err := dataset.ReadScoresFile(scoresPath)
			if err != nil {
				return err
			}

			kept := dataset.FilterScored(rows, commits)

			outPath := orDerived(out, args[0], ".filtered")
			if err := dataset.WriteFile(outPath, kept); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d rows, wrote %s\n", len(kept), len(rows), outPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&scoresPath, "scores", "", "commit score CSV (repo_url,sha,filename,similarity,contribution)")
	_ = cmd.MarkFlagRequired("scores")
	cmd.Flags().StringVar(&out, "out", "", "output path (default <csv>.filtered.csv)")

	return cmd
}

func newDatasetStatsCommand(_ *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <csv>",
		Short: "Summarize a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := dataset.ReadFile(args[0])
			if err != nil {
				return err
			}

			stats := dataset.Summarize(rows)

			tw := table.NewWriter()
			tw.SetStyle(table.StyleLight)
			tw.SetTitle("Dataset: %s", filepath.Base(args[0]))
			tw.AppendHeader(table.Row{"Metric", "Value"})
			tw.AppendRow(table.Row{"Rows", stats.Rows})
			tw.AppendRow(table.Row{"Positives", stats.Positives})
			tw.AppendRow(table.Row{"Negatives", stats.Negatives})
			tw.AppendRow(table.Row{"Repositories", stats.Repos})
			tw.AppendRow(table.Row{"Distinct methods", stats.Methods})

			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())

			return nil
		},
	}
}

// orDerived returns explicit when set, otherwise the input path with
// suffix spliced in before the extension: data.csv → data.train.csv.
func orDerived(explicit, input, suffix string) string {
	if explicit != "" {
		return explicit
	}

	ext := filepath.Ext(input)

	return strings.TrimSuffix(input, ext) + suffix + ext
}
