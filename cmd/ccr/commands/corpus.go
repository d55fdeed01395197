package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aladics/code-change-repr/internal/corpus"
	"github.com/aladics/code-change-repr/internal/dataset"
	"github.com/aladics/code-change-repr/internal/gitsnap"
	"github.com/aladics/code-change-repr/internal/pipeline"
	"github.com/aladics/code-change-repr/internal/snapcache"
	"github.com/aladics/code-change-repr/pkg/safeconv"
)

// NewCorpusCommand creates the corpus command group.
func NewCorpusCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Build corpora and vocabularies from datasets",
	}

	cmd.AddCommand(
		newCorpusBuildCommand(app),
		newCorpusVocabCommand(app),
		newCorpusStatsCommand(app),
	)

	return cmd
}

// BuildFlags holds the corpus build flag values that override config.
type BuildFlags struct {
	reposDir     string
	cacheDir     string
	outDir       string
	workers      int
	language     string
	maxRootPaths int
	skipN        int
	ignorePath   string
	vocabPath    string
}

func newCorpusBuildCommand(app *App) *cobra.Command {
	bf := &BuildFlags{}

	cmd := &cobra.Command{
		Use:   "build <csv>",
		Short: "Convert a dataset into aligned before/after corpus files",
		Long: `Run the corpus pipeline over a dataset.

Every row's before and after snapshots are acquired (cache, then local
clones under --repos-dir, then the row's raw URLs), parsed, diffed into
change trees, and flattened. The output directory receives
corpus.before, corpus.after, and manifest.csv mapping corpus lines back
to dataset row indices.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorpusBuild(cmd, app, bf, args[0])
		},
	}

	cmd.Flags().StringVar(&bf.reposDir, "repos-dir", "", "directory of local clones named <owner>/<repo> (default from config)")
	cmd.Flags().StringVar(&bf.cacheDir, "cache-dir", "", "snapshot cache directory (default from config)")
	cmd.Flags().StringVar(&bf.outDir, "out-dir", "", "corpus output directory (default from config)")
	cmd.Flags().IntVar(&bf.workers, "workers", 0, "parallel workers (0 = config, then CPU count)")
	cmd.Flags().StringVarP(&bf.language, "language", "l", "", "force one grammar for every row")
	cmd.Flags().IntVar(&bf.maxRootPaths, "max-root-paths", 0, "cap on root paths per tree (0 = config default)")
	cmd.Flags().IntVar(&bf.skipN, "skip", 0, "skip the first N rows")
	cmd.Flags().StringVar(&bf.ignorePath, "ignore", "", "CSV of rows to exclude from the corpus")
	cmd.Flags().StringVar(&bf.vocabPath, "vocab", "", "vocabulary CSV for the unchanged check")

	return cmd
}

func runCorpusBuild(cmd *cobra.Command, app *App, bf *BuildFlags, csvPath string) error {
	rows, err := dataset.ReadFile(csvPath)
	if err != nil {
		return err
	}

	cfg, mirror, err := buildPipelineConfig(app, bf)
	if err != nil {
		return err
	}

	if mirror != nil {
		defer mirror.Close()
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	outDir := bf.outDir
	if outDir == "" {
		outDir = app.Config.Pipeline.OutDir
	}

	out, err := corpus.NewWriter(outDir)
	if err != nil {
		return err
	}

	counters, runErr := p.Run(cmd.Context(), rows, out)

	if err := errors.Join(runErr, out.Close()); err != nil {
		return err
	}

	printCounters(cmd, counters, out.Lines(), outDir)

	return nil
}

// buildPipelineConfig assembles the pipeline collaborators from config
// and flags. The returned mirror is non-nil when local clones are in
// play and must be closed after the run.
func buildPipelineConfig(app *App, bf *BuildFlags) (pipeline.Config, *gitsnap.Mirror, error) {
	cfg := pipeline.Config{
		Logger:  app.Providers.Logger,
		Tracer:  app.Providers.Tracer,
		Metrics: app.Metrics,
		Options: pipeline.Options{
			Language:     firstNonEmpty(bf.language, app.Config.Parser.Language),
			MaxRootPaths: firstPositive(bf.maxRootPaths, app.Config.Parser.MaxRootPaths),
			Workers:      firstPositive(bf.workers, app.Config.Pipeline.Workers),
			SkipN:        bf.skipN,
		},
	}

	cacheDir := ""
	if app.Config.Cache.DiskEnabled {
		cacheDir = firstNonEmpty(bf.cacheDir, app.Config.Cache.Directory)
	}

	budget, err := humanize.ParseBytes(app.Config.Cache.MemoryBudget)
	if err != nil {
		return pipeline.Config{}, nil, fmt.Errorf("cache memory budget: %w", err)
	}

	cache, err := snapcache.New(safeconv.SafeInt64(budget), cacheDir)
	if err != nil {
		return pipeline.Config{}, nil, err
	}

	cfg.Cache = cache

	var mirror *gitsnap.Mirror

	reposDir := firstNonEmpty(bf.reposDir, app.Config.Pipeline.ReposDir)
	if reposDir != "" {
		mirror = gitsnap.NewMirror(reposDir)
		cfg.Mirror = mirror
	}

	cfg.Fetcher = snapcache.NewFetcher(app.Config.Pipeline.FetchTimeout, app.Config.Pipeline.FetchRetries)

	if bf.ignorePath != "" {
		ignore, readErr := dataset.ReadFile(bf.ignorePath)
		if readErr != nil {
			return pipeline.Config{}, nil, fmt.Errorf("ignore list: %w", readErr)
		}

		cfg.Ignore = ignore
	}

	if bf.vocabPath != "" {
		vocab, loadErr := corpus.LoadFile(bf.vocabPath)
		if loadErr != nil {
			return pipeline.Config{}, nil, fmt.Errorf("vocabulary: %w", loadErr)
		}

		cfg.Vocab = vocab
	}

	return cfg, mirror, nil
}

func printCounters(cmd *cobra.Command, c pipeline.Counters, lines int, outDir string) {
	out := cmd.OutOrStdout()

	color.New(color.FgGreen).Fprintf(out, "done      %d\n", c.Done)

	failedColor := color.New(color.FgRed)
	if c.Failed == 0 {
		failedColor = color.New(color.FgGreen)
	}

	failedColor.Fprintf(out, "failed    %d\n", c.Failed)
	fmt.Fprintf(out, "unchanged %d\n", c.Unchanged)
	fmt.Fprintf(out, "ignored   %d\n", c.Ignored)
	fmt.Fprintf(out, "skipped   %d\n", c.Skipped)
	fmt.Fprintf(out, "%d corpus line pairs in %s\n", lines, outDir)
}

func newCorpusVocabCommand(app *App) *cobra.Command {
	var (
		out     string
		keep    int
		noBelow int
		noAbove float64
	)

	cmd := &cobra.Command{
		Use:   "vocab <corpus-file>",
		Short: "Build and save a vocabulary from a corpus file",
		Long: `Count token document frequencies over a corpus file, drop tokens that
are too rare or too common, keep the most frequent remainder, and save
the result as a two-column CSV.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vocab, err := corpus.BuildVocabularyFile(args[0])
			if err != nil {
				return err
			}

			total := vocab.Len()

			if !cmd.Flags().Changed("keep") {
				keep = app.Config.Corpus.VocabKeep
			}

			if !cmd.Flags().Changed("no-below") {
				noBelow = app.Config.Corpus.VocabNoBelow
			}

			if !cmd.Flags().Changed("no-above") {
				noAbove = app.Config.Corpus.VocabNoAbove
			}

			vocab.FilterExtremes(noBelow, noAbove, keep)

			if err := vocab.SaveFile(out); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d tokens over %d documents, wrote %s\n",
				vocab.Len(), total, vocab.NumDocs(), out)

			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "vocab.csv", "vocabulary output path")
	cmd.Flags().IntVar(&keep, "keep", 0, "tokens to keep after filtering (default from config)")
	cmd.Flags().IntVar(&noBelow, "no-below", 0, "drop tokens in fewer documents (0 = 1% of documents)")
	cmd.Flags().Float64Var(&noAbove, "no-above", 0, "drop tokens in more than this fraction of documents (default from config)")

	return cmd
}

func newCorpusStatsCommand(_ *App) *cobra.Command {
	var (
		top  int
		html string
	)

	cmd := &cobra.Command{
		Use:   "stats <corpus-file>",
		Short: "Show token statistics for a corpus file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vocab, err := corpus.BuildVocabularyFile(args[0])
			if err != nil {
				return err
			}

			counts := corpus.TopTokens(vocab, top)
			title := fmt.Sprintf("Top %d tokens (%d documents)", len(counts), vocab.NumDocs())

			fmt.Fprintln(cmd.OutOrStdout(), corpus.RenderTable(title, counts))

			if html == "" {
				return nil
			}

			f, err := os.Create(html)
			if err != nil {
				return fmt.Errorf("create chart file: %w", err)
			}

			if err := corpus.WriteBarChart(f, title, counts); err != nil {
				return errors.Join(err, f.Close())
			}

			if err := f.Close(); err != nil {
				return fmt.Errorf("close chart file: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote chart to %s\n", html)

			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", corpus.DefaultTopTokens, "number of tokens to show")
	cmd.Flags().StringVar(&html, "html", "", "also write an HTML bar chart to this path")

	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}

	return 0
}
