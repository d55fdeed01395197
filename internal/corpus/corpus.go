// Package corpus builds flattened change corpora and the vocabulary used
// to filter them.
//
// A corpus is a pair of text files, corpus.before and corpus.after, holding
// one flattened change tree per line. Lines are aligned: line i of both
// files describes the two states of the same dataset row, and a manifest
// maps line numbers back to row indices.
package corpus

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File names inside a corpus directory.
const (
	BeforeFileName   = "corpus.before"
	AfterFileName    = "corpus.after"
	ManifestFileName = "manifest.csv"
)

// maxLineBytes caps corpus line length when scanning. Flattened methods are
// long but bounded by the root-path cap.
const maxLineBytes = 4 << 20

// dirPerm is the mode for created corpus directories.
const dirPerm = 0o755

// Tokenize splits a corpus line into normalized tokens: comma-separated,
// lowercased, space-trimmed.
func Tokenize(line string) []string {
	parts := strings.Split(line, ",")

	tokens := make([]string, len(parts))
	for i, part := range parts {
		tokens[i] = strings.TrimSpace(strings.ToLower(part))
	}

	return tokens
}

// ForEachLine streams the lines of a corpus file.
func ForEachLine(r io.Reader, fn func(line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)

	for scanner.Scan() {
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan corpus: %w", err)
	}

	return nil
}

// BuildVocabulary streams corpus lines into a fresh vocabulary. Each line
// counts as one document.
func BuildVocabulary(r io.Reader) (*Vocabulary, error) {
	vocab := NewVocabulary()

	err := ForEachLine(r, func(line string) error {
		vocab.AddDocument(Tokenize(line))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return vocab, nil
}

// BuildVocabularyFile builds a vocabulary from a corpus file on disk.
func BuildVocabularyFile(name string) (*Vocabulary, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	return BuildVocabulary(f)
}

// Writer appends aligned before/after corpus lines plus a manifest mapping
// corpus line numbers to dataset row indices.
type Writer struct {
	beforeFile   *os.File
	afterFile    *os.File
	manifestFile *os.File

	before   *bufio.Writer
	after    *bufio.Writer
	manifest *csv.Writer

	lines int
}

// NewWriter creates the three corpus files inside dir, truncating any
// previous run.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}

	beforeFile, err := os.Create(filepath.Join(dir, BeforeFileName))
	if err != nil {
		return nil, fmt.Errorf("create before corpus: %w", err)
	}

	afterFile, err := os.Create(filepath.Join(dir, AfterFileName))
	if err != nil {
		beforeFile.Close()

		return nil, fmt.Errorf("create after corpus: %w", err)
	}

	manifestFile, err := os.Create(filepath.Join(dir, ManifestFileName))
	if err != nil {
		beforeFile.Close()
		afterFile.Close()

		return nil, fmt.Errorf("create manifest: %w", err)
	}

	w := &Writer{
		beforeFile:   beforeFile,
		afterFile:    afterFile,
		manifestFile: manifestFile,
		before:       bufio.NewWriter(beforeFile),
		after:        bufio.NewWriter(afterFile),
		manifest:     csv.NewWriter(manifestFile),
	}

	if err := w.manifest.Write([]string{"corpus_line", "row_index"}); err != nil {
		w.Close()

		return nil, fmt.Errorf("write manifest header: %w", err)
	}

	return w, nil
}

// Append writes one aligned line pair and its manifest entry.
func (w *Writer) Append(rowIndex int, beforeLine, afterLine string) error {
	if _, err := w.before.WriteString(beforeLine + "\n"); err != nil {
		return fmt.Errorf("append before line: %w", err)
	}

	if _, err := w.after.WriteString(afterLine + "\n"); err != nil {
		return fmt.Errorf("append after line: %w", err)
	}

	if err := w.manifest.Write([]string{strconv.Itoa(w.lines), strconv.Itoa(rowIndex)}); err != nil {
		return fmt.Errorf("append manifest entry: %w", err)
	}

	w.lines++

	return nil
}

// Lines returns how many line pairs were appended.
func (w *Writer) Lines() int {
	return w.lines
}

// Close flushes and closes all three files.
func (w *Writer) Close() error {
	w.manifest.Flush()

	return errors.Join(
		w.manifest.Error(),
		w.before.Flush(),
		w.after.Flush(),
		w.beforeFile.Close(),
		w.afterFile.Close(),
		w.manifestFile.Close(),
	)
}
