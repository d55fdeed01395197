package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
)

// scoreColumns is the strict width of a score report row.
const scoreColumns = 5

// ErrUnknownRepoHost is returned when a repository URL is not on a host the
// normalizer understands.
var ErrUnknownRepoHost = errors.New("unknown repository host")

// FileScore is one scored file inside an introducing commit.
type FileScore struct {
	Filename     string
	Similarity   float64
	Contribution float64
}

// ScoredCommit groups the scored files of one introducing commit.
type ScoredCommit struct {
	Repo  string // normalized "owner/name"
	SHA   string
	Files []FileScore
}

// FileChanged reports whether the commit scored a file with the same base
// name as filePath.
func (c ScoredCommit) FileChanged(filePath string) bool {
	base := path.Base(filePath)

	for _, file := range c.Files {
		if file.Filename == base {
			return true
		}
	}

	return false
}

// NormalizeRepoURL reduces a clone URL to "owner/name". GitHub URLs lose
// their prefix; apache git hosts map to "apache/<stem>".
func NormalizeRepoURL(raw string) (string, error) {
	cleaned := strings.ReplaceAll(raw, ".git", "")

	switch {
	case strings.Contains(cleaned, "https://github.com/"):
		return strings.ReplaceAll(cleaned, "https://github.com/", ""), nil
	case strings.Contains(cleaned, "git-wip-us.apache.org"),
		strings.Contains(cleaned, "git.apache.org"):
		base := path.Base(cleaned)

		return "apache/" + strings.TrimSuffix(base, path.Ext(base)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownRepoHost, raw)
	}
}

// ReadScores parses a score report: a header row followed by
// "repo_url,sha,filename,similarity,contribution" rows. Rows sharing a
// (repo, sha) pair are grouped into one ScoredCommit, in first-seen order.
func ReadScores(r io.Reader) ([]ScoredCommit, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = scoreColumns

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}

	if err != nil {
		return nil, fmt.Errorf("read score header: %w", err)
	}

	if head[0] != "repo_url" {
		return nil, fmt.Errorf("%w: got %q", ErrMissingHeader, head[0])
	}

	var (
		commits []ScoredCommit
		index   = make(map[string]int)
	)

	for i := 0; ; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("score row %d: %w", i+1, err)
		}

		repo, err := NormalizeRepoURL(record[0])
		if err != nil {
			return nil, fmt.Errorf("score row %d: %w", i+1, err)
		}

		similarity, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("score row %d: %w", i+1, err)
		}

		contribution, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, fmt.Errorf("score row %d: %w", i+1, err)
		}

		sha := record[1]
		key := repo + "\x00" + sha

		pos, ok := index[key]
		if !ok {
			pos = len(commits)
			index[key] = pos

			commits = append(commits, ScoredCommit{Repo: repo, SHA: sha})
		}

		commits[pos].Files = append(commits[pos].Files, FileScore{
			Filename:     record[2],
			Similarity:   similarity,
			Contribution: contribution,
		})
	}

	return commits, nil
}

// ReadScoresFile reads a score report from disk.
func ReadScoresFile(name string) ([]ScoredCommit, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open scores: %w", err)
	}
	defer f.Close()

	return ReadScores(f)
}

// FilterScored keeps rows whose repository and after-state commit appear in
// the score report with the row's after-state file among the scored files.
func FilterScored(rows []Row, commits []ScoredCommit) []Row {
	index := make(map[string]ScoredCommit, len(commits))
	for _, commit := range commits {
		index[commit.Repo+"\x00"+commit.SHA] = commit
	}

	var kept []Row

	for _, row := range rows {
		commit, ok := index[row.Repository+"\x00"+row.AfterSHA]
		if !ok {
			continue
		}

		if commit.FileChanged(row.AfterPath) {
			kept = append(kept, row)
		}
	}

	return kept
}
