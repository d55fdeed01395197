package commands

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aladics/code-change-repr/internal/corpus"
	"github.com/aladics/code-change-repr/internal/dataset"
)

const statsCorpus = "alpha,beta,gamma\nalpha,beta\nalpha,delta\n"

func TestCorpusVocabCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	corpusPath := writeTestFile(t, dir, "corpus.before", statsCorpus)
	outPath := filepath.Join(dir, "vocab.csv")

	out, _, err := execute(t, newCorpusVocabCommand(testApp(t)),
		corpusPath, "--keep", "2", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "kept 2 of 4 tokens over 3 documents")

	vocab, err := corpus.LoadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, 2, vocab.Len())
	assert.True(t, vocab.Contains("alpha"))
	assert.True(t, vocab.Contains("beta"))
}

func TestCorpusVocabCommand_ConfigDefaults(t *testing.T) {
	t.Parallel()

	app := testApp(t)
	app.Config.Corpus.VocabKeep = 1

	dir := t.TempDir()
	corpusPath := writeTestFile(t, dir, "corpus.before", statsCorpus)
	outPath := filepath.Join(dir, "vocab.csv")

	_, _, err := execute(t, newCorpusVocabCommand(app), corpusPath, "--out", outPath)
	require.NoError(t, err)

	vocab, err := corpus.LoadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, 1, vocab.Len())
	assert.True(t, vocab.Contains("alpha"))
}

func TestCorpusStatsCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	corpusPath := writeTestFile(t, dir, "corpus.before", statsCorpus)

	out, _, err := execute(t, newCorpusStatsCommand(testApp(t)), corpusPath, "--top", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "Top 2 tokens (3 documents)")
	assert.Contains(t, out, "alpha")
	assert.NotContains(t, out, "delta")
}

func TestCorpusStatsCommand_WritesChart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	corpusPath := writeTestFile(t, dir, "corpus.before", statsCorpus)
	chartPath := filepath.Join(dir, "tokens.html")

	out, _, err := execute(t, newCorpusStatsCommand(testApp(t)),
		corpusPath, "--html", chartPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote chart to")

	chart, err := os.ReadFile(chartPath)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(string(chart)), "echarts")
}

func TestCorpusBuildCommand_EmptyDataset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := writeRows(t, dir, "data.csv", nil)
	outDir := filepath.Join(dir, "out")

	out, _, err := execute(t, newCorpusBuildCommand(testApp(t)),
		csvPath, "--out-dir", outDir, "--cache-dir", filepath.Join(dir, "cache"))
	require.NoError(t, err)
	assert.Contains(t, out, "0 corpus line pairs")

	before, err := os.ReadFile(filepath.Join(outDir, corpus.BeforeFileName))
	require.NoError(t, err)
	assert.Empty(t, before)
}

func TestCorpusBuildCommand_FetchesOverHTTP(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/before/A.java", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, calcBefore)
	})
	mux.HandleFunc("/after/A.java", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, calcAfter)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	row := dataset.Row{
		Repository: "acme/lib",
		BeforeURL:  server.URL + "/before/A.java",
		AfterURL:   server.URL + "/after/A.java",
		BeforePath: "src/A.java",
		AfterPath:  "src/A.java",
		BeforePos:  dataset.Position{Line: 2, Col: 5},
		AfterPos:   dataset.Position{Line: 2, Col: 5},
		MethodName: "add",
		BeforeSHA:  "111",
		AfterSHA:   "222",
		Label:      dataset.LabelPositive,
	}

	dir := t.TempDir()
	csvPath := writeRows(t, dir, "data.csv", []dataset.Row{row})
	outDir := filepath.Join(dir, "out")

	out, _, err := execute(t, newCorpusBuildCommand(testApp(t)),
		csvPath, "--out-dir", outDir, "--cache-dir", filepath.Join(dir, "cache"))
	require.NoError(t, err)
	assert.Contains(t, out, "done      1")
	assert.Contains(t, out, "1 corpus line pairs in")

	manifest, err := os.ReadFile(filepath.Join(outDir, corpus.ManifestFileName))
	require.NoError(t, err)
	assert.Equal(t, "corpus_line,row_index\n0,0\n", string(manifest))

	before, err := os.ReadFile(filepath.Join(outDir, corpus.BeforeFileName))
	require.NoError(t, err)
	after, err := os.ReadFile(filepath.Join(outDir, corpus.AfterFileName))
	require.NoError(t, err)

	beforeLine := strings.TrimSuffix(string(before), "\n")
	afterLine := strings.TrimSuffix(string(after), "\n")
	assert.NotEmpty(t, beforeLine)
	assert.NotEmpty(t, afterLine)
	assert.NotEqual(t, beforeLine, afterLine)
}

func TestBuildPipelineConfig_Defaults(t *testing.T) {
	t.Parallel()

	app := testApp(t)
	app.Config.Cache.DiskEnabled = false

	cfg, mirror, err := buildPipelineConfig(app, &BuildFlags{})
	require.NoError(t, err)

	assert.Nil(t, mirror)
	assert.Nil(t, cfg.Mirror)
	assert.NotNil(t, cfg.Cache)
	assert.NotNil(t, cfg.Fetcher)
	assert.Equal(t, "", cfg.Options.Language)
	assert.Equal(t, 1000, cfg.Options.MaxRootPaths)
	assert.Equal(t, 0, cfg.Options.Workers)
}

func TestBuildPipelineConfig_FlagsWin(t *testing.T) {
	t.Parallel()

	app := testApp(t)
	app.Config.Cache.DiskEnabled = false
	app.Config.Parser.Language = "go"

	bf := &BuildFlags{
		language:     "java",
		maxRootPaths: 50,
		workers:      3,
		skipN:        7,
		reposDir:     t.TempDir(),
	}

	cfg, mirror, err := buildPipelineConfig(app, bf)
	require.NoError(t, err)

	require.NotNil(t, mirror)
	defer mirror.Close()

	assert.NotNil(t, cfg.Mirror)
	assert.Equal(t, "java", cfg.Options.Language)
	assert.Equal(t, 50, cfg.Options.MaxRootPaths)
	assert.Equal(t, 3, cfg.Options.Workers)
	assert.Equal(t, 7, cfg.Options.SkipN)
}

func TestBuildPipelineConfig_BadIgnoreList(t *testing.T) {
	t.Parallel()

	app := testApp(t)
	app.Config.Cache.DiskEnabled = false

	_, _, err := buildPipelineConfig(app, &BuildFlags{ignorePath: "nope.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ignore list")
}

func TestBuildPipelineConfig_BadVocabulary(t *testing.T) {
	t.Parallel()

	app := testApp(t)
	app.Config.Cache.DiskEnabled = false

	_, _, err := buildPipelineConfig(app, &BuildFlags{vocabPath: "nope.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vocabulary")
}

func TestBuildPipelineConfig_BadMemoryBudget(t *testing.T) {
	t.Parallel()

	app := testApp(t)
	app.Config.Cache.MemoryBudget = "many"

	_, _, err := buildPipelineConfig(app, &BuildFlags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache memory budget")
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a", firstNonEmpty("a", "b"))
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestFirstPositive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, firstPositive(3, 5))
	assert.Equal(t, 5, firstPositive(0, 5))
	assert.Equal(t, 5, firstPositive(-1, 5))
	assert.Equal(t, 0, firstPositive(0, 0))
}
