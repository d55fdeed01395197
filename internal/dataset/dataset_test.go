package dataset_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aladics/code-change-repr/internal/dataset"
)

// testSeed keeps every sampling test deterministic.
const testSeed = 1234

// makeRow builds a distinct sample; i%3 spreads rows over three repos.
func makeRow(i int, label string) dataset.Row {
	return dataset.Row{
		Repository: fmt.Sprintf("owner/repo%d", i%3),
		BeforeURL:  fmt.Sprintf("https://example.com/before/%d", i),
		AfterURL:   fmt.Sprintf("https://example.com/after/%d", i),
		BeforePath: fmt.Sprintf("src/File%d.java", i),
		AfterPath:  fmt.Sprintf("src/File%d.java", i),
		BeforePos:  dataset.Position{Line: i + 1, Col: 5},
		AfterPos:   dataset.Position{Line: i + 2, Col: 5},
		MethodName: fmt.Sprintf("method%d", i),
		BeforeSHA:  fmt.Sprintf("%040d", i),
		AfterSHA:   fmt.Sprintf("%040d", i+1),
		Label:      label,
	}
}

func makeRows(n int, label string) []dataset.Row {
	rows := make([]dataset.Row, 0, n)
	for i := range n {
		rows = append(rows, makeRow(i, label))
	}

	return rows
}

func TestParsePosition(t *testing.T) {
	t.Parallel()

	pos, err := dataset.ParsePosition("12:5")
	require.NoError(t, err)
	assert.Equal(t, dataset.Position{Line: 12, Col: 5}, pos)
	assert.Equal(t, "12:5", pos.String())
}

func TestParsePosition_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "no_separator", input: "12"},
		{name: "bad_line", input: "a:5"},
		{name: "bad_col", input: "12:b"},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := dataset.ParsePosition(tt.input)
			require.ErrorIs(t, err, dataset.ErrMalformedPosition)
		})
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	rows := makeRows(5, dataset.LabelPositive)

	var buf bytes.Buffer

	require.NoError(t, dataset.Write(&buf, rows))

	got, err := dataset.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestRead_RejectsMissingHeader(t *testing.T) {
	t.Parallel()

	_, err := dataset.Read(strings.NewReader(""))
	require.ErrorIs(t, err, dataset.ErrMissingHeader)

	_, err = dataset.Read(strings.NewReader("not,a,header\n"))
	require.ErrorIs(t, err, dataset.ErrMissingHeader)
}

func TestReadUnlabeled_StampsLabel(t *testing.T) {
	t.Parallel()

	input := "apache/santuario-java,https://u1,https://u2,src/A.java,src/A.java,10:5,12:5,engineLoad,abc,def\n"

	rows, err := dataset.ReadUnlabeled(strings.NewReader(input), dataset.LabelNegative)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, dataset.LabelNegative, rows[0].Label)
	assert.Equal(t, "apache/santuario-java", rows[0].Repository)
	assert.Equal(t, dataset.Position{Line: 10, Col: 5}, rows[0].BeforePos)
	assert.Equal(t, "engineLoad", rows[0].MethodName)
}

func TestSplit_Deterministic(t *testing.T) {
	t.Parallel()

	rows := makeRows(10, dataset.LabelPositive)

	train1, test1 := dataset.Split(rows, 0.8, testSeed)
	train2, test2 := dataset.Split(rows, 0.8, testSeed)

	assert.Len(t, train1, 8)
	assert.Len(t, test1, 2)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)

	assert.ElementsMatch(t, rows, append(append([]dataset.Row{}, train1...), test1...))
}

func TestSampleBalanced_KeepsRatio(t *testing.T) {
	t.Parallel()

	positives := makeRows(10, dataset.LabelPositive)
	negatives := makeRows(50, dataset.LabelNegative)
	for i := range negatives {
		negatives[i].MethodName = "neg" + negatives[i].MethodName
	}

	train, posLeft, negLeft, err := dataset.SampleBalanced(positives, negatives, 4, 0.2, testSeed)
	require.NoError(t, err)

	// 4 positives at a 0.2 share means 16 negatives.
	assert.Len(t, train, 20)
	assert.Len(t, posLeft, 6)
	assert.Len(t, negLeft, 34)

	var nPos int

	for _, row := range train {
		if row.Label == dataset.LabelPositive {
			nPos++
		}
	}

	assert.Equal(t, 4, nPos)
}

func TestSampleBalanced_Deterministic(t *testing.T) {
	t.Parallel()

	positives := makeRows(10, dataset.LabelPositive)
	negatives := makeRows(50, dataset.LabelNegative)
	for i := range negatives {
		negatives[i].MethodName = "neg" + negatives[i].MethodName
	}

	train1, _, _, err := dataset.SampleBalanced(positives, negatives, 4, 0.2, testSeed)
	require.NoError(t, err)

	train2, _, _, err := dataset.SampleBalanced(positives, negatives, 4, 0.2, testSeed)
	require.NoError(t, err)

	assert.Equal(t, train1, train2)
}

func TestSampleBalanced_DropsRelabeledDuplicates(t *testing.T) {
	t.Parallel()

	positives := makeRows(2, dataset.LabelPositive)

	// One negative describes the same change as a drawn positive.
	duplicate := positives[0]
	duplicate.Label = dataset.LabelNegative

	distinct := makeRow(7, dataset.LabelNegative)
	negatives := []dataset.Row{duplicate, distinct}

	// 2 positives at a 0.5 share draws both negatives; the duplicate must go.
	train, _, _, err := dataset.SampleBalanced(positives, negatives, 2, 0.5, testSeed)
	require.NoError(t, err)

	assert.Len(t, train, 3)
	assert.NotContains(t, train, duplicate)
}

func TestSampleBalanced_NotEnoughRows(t *testing.T) {
	t.Parallel()

	positives := makeRows(3, dataset.LabelPositive)
	negatives := makeRows(3, dataset.LabelNegative)

	_, _, _, err := dataset.SampleBalanced(positives, negatives, 5, 0.2, testSeed)
	require.ErrorIs(t, err, dataset.ErrSampleTooLarge)
}

func TestAssembleTestSet(t *testing.T) {
	t.Parallel()

	posLeft := makeRows(3, dataset.LabelPositive)
	negLeft := makeRows(10, dataset.LabelNegative)
	for i := range negLeft {
		negLeft[i].MethodName = "neg" + negLeft[i].MethodName
	}

	test, err := dataset.AssembleTestSet(posLeft, negLeft, 0.5, testSeed)
	require.NoError(t, err)

	// 3 positives at a 0.5 share means 3 negatives.
	assert.Len(t, test, 6)

	for _, row := range posLeft {
		assert.Contains(t, test, row)
	}
}

func TestNormalizeRepoURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "github_with_git_suffix",
			input: "https://github.com/apache/santuario-java.git",
			want:  "apache/santuario-java",
		},
		{
			name:  "github_plain",
			input: "https://github.com/owner/name",
			want:  "owner/name",
		},
		{
			name:  "apache_wip_host",
			input: "https://git-wip-us.apache.org/repos/asf/commons-lang.git",
			want:  "apache/commons-lang",
		},
		{
			name:  "apache_host",
			input: "https://git.apache.org/santuario-java.git",
			want:  "apache/santuario-java",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := dataset.NormalizeRepoURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRepoURL_UnknownHost(t *testing.T) {
	t.Parallel()

	_, err := dataset.NormalizeRepoURL("https://gitlab.com/owner/name.git")
	require.ErrorIs(t, err, dataset.ErrUnknownRepoHost)
}

func TestReadScores_GroupsByCommit(t *testing.T) {
	t.Parallel()

	input := `repo_url,sha,filename,similarity,contribution
https://github.com/apache/santuario-java.git,def,A.java,0.9,0.5
https://github.com/apache/santuario-java.git,def,B.java,0.8,0.3
https://git-wip-us.apache.org/repos/asf/commons-lang,fff,C.java,0.7,0.2
`

	commits, err := dataset.ReadScores(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, "apache/santuario-java", commits[0].Repo)
	assert.Equal(t, "def", commits[0].SHA)
	assert.Len(t, commits[0].Files, 2)

	assert.Equal(t, "apache/commons-lang", commits[1].Repo)
	assert.True(t, commits[0].FileChanged("some/dir/A.java"))
	assert.False(t, commits[0].FileChanged("some/dir/Z.java"))
}

func TestFilterScored(t *testing.T) {
	t.Parallel()

	commits := []dataset.ScoredCommit{
		{
			Repo: "apache/santuario-java",
			SHA:  "def",
			Files: []dataset.FileScore{
				{Filename: "A.java", Similarity: 0.9, Contribution: 0.5},
			},
		},
	}

	kept := makeRow(0, dataset.LabelPositive)
	kept.Repository = "apache/santuario-java"
	kept.AfterSHA = "def"
	kept.AfterPath = "src/main/A.java"

	wrongFile := kept
	wrongFile.AfterPath = "src/main/Z.java"

	wrongSHA := kept
	wrongSHA.AfterSHA = "zzz"

	rows := []dataset.Row{kept, wrongFile, wrongSHA}

	filtered := dataset.FilterScored(rows, commits)
	require.Len(t, filtered, 1)
	assert.Equal(t, kept, filtered[0])
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	rows := append(makeRows(6, dataset.LabelPositive), makeRows(3, dataset.LabelNegative)...)

	stats := dataset.Summarize(rows)

	assert.Equal(t, 9, stats.Rows)
	assert.Equal(t, 6, stats.Positives)
	assert.Equal(t, 3, stats.Negatives)
	assert.Equal(t, 3, stats.Repos)

	// The first three methods repeat across the label classes.
	assert.Equal(t, 6, stats.Methods)
}
