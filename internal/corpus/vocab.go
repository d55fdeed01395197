package corpus

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
)

// OOVToken substitutes tokens that fall outside the vocabulary.
const OOVToken = "OOV_TOKEN"

// DefaultKeepN bounds the vocabulary after extreme filtering.
const DefaultKeepN = 500

// defaultNoBelowPercent derives the rare-token floor from the document
// count when the caller does not pick one.
const defaultNoBelowPercent = 0.01

// ErrMissingVocabHeader is returned when a vocabulary file does not start
// with the expected header row.
var ErrMissingVocabHeader = errors.New("missing vocabulary header")

// Vocabulary tracks how many documents each token appears in.
type Vocabulary struct {
	docFreq map[string]int
	numDocs int
}

// NewVocabulary returns an empty vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{docFreq: make(map[string]int)}
}

// AddDocument counts each distinct token of one document.
func (v *Vocabulary) AddDocument(tokens []string) {
	seen := make(map[string]struct{}, len(tokens))

	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}

		seen[token] = struct{}{}
		v.docFreq[token]++
	}

	v.numDocs++
}

// NumDocs returns how many documents were added.
func (v *Vocabulary) NumDocs() int {
	return v.numDocs
}

// Len returns the number of distinct tokens.
func (v *Vocabulary) Len() int {
	return len(v.docFreq)
}

// Contains reports whether token is in the vocabulary.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.docFreq[token]

	return ok
}

// DocFreq returns the document frequency of token, zero when absent.
func (v *Vocabulary) DocFreq(token string) int {
	return v.docFreq[token]
}

// FilterExtremes drops tokens present in fewer than noBelow documents or in
// more than the noAbove fraction of them, then keeps the keepN most
// document-frequent. Ties break lexically. A noBelow of zero means 1% of
// the documents, rounded; a keepN of zero means DefaultKeepN.
func (v *Vocabulary) FilterExtremes(noBelow int, noAbove float64, keepN int) {
	if noBelow <= 0 {
		noBelow = int(math.Round(float64(v.numDocs) * defaultNoBelowPercent))
	}

	if keepN <= 0 {
		keepN = DefaultKeepN
	}

	ceiling := int(noAbove * float64(v.numDocs))

	kept := make([]TokenCount, 0, len(v.docFreq))

	for token, freq := range v.docFreq {
		if freq < noBelow || freq > ceiling {
			continue
		}

		kept = append(kept, TokenCount{Token: token, Count: freq})
	}

	sortByCount(kept)

	if len(kept) > keepN {
		kept = kept[:keepN]
	}

	filtered := make(map[string]int, len(kept))
	for _, entry := range kept {
		filtered[entry.Token] = entry.Count
	}

	v.docFreq = filtered
}

// FilterDocument maps tokens through the vocabulary, substituting OOVToken
// for anything outside it. The result has the same length as the input.
func (v *Vocabulary) FilterDocument(tokens []string) []string {
	out := make([]string, len(tokens))

	for i, token := range tokens {
		if v.Contains(token) {
			out[i] = token
		} else {
			out[i] = OOVToken
		}
	}

	return out
}

// Tokens returns every token with its document frequency, most frequent
// first, ties lexical.
func (v *Vocabulary) Tokens() []TokenCount {
	out := make([]TokenCount, 0, len(v.docFreq))
	for token, freq := range v.docFreq {
		out = append(out, TokenCount{Token: token, Count: freq})
	}

	sortByCount(out)

	return out
}

// Save writes the vocabulary as token,doc_freq rows, most frequent first.
func (v *Vocabulary) Save(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"token", "doc_freq"}); err != nil {
		return fmt.Errorf("write vocabulary header: %w", err)
	}

	for _, entry := range v.Tokens() {
		if err := writer.Write([]string{entry.Token, strconv.Itoa(entry.Count)}); err != nil {
			return fmt.Errorf("write vocabulary row: %w", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush vocabulary: %w", err)
	}

	return nil
}

// SaveFile writes the vocabulary to disk.
func (v *Vocabulary) SaveFile(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create vocabulary: %w", err)
	}

	if err := v.Save(f); err != nil {
		f.Close()

		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close vocabulary: %w", err)
	}

	return nil
}

// Load reads a saved vocabulary. The document count is not persisted, so a
// loaded vocabulary filters documents but cannot be re-filtered.
func Load(r io.Reader) (*Vocabulary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingVocabHeader
	}

	if err != nil {
		return nil, fmt.Errorf("read vocabulary header: %w", err)
	}

	if head[0] != "token" {
		return nil, fmt.Errorf("%w: got %q", ErrMissingVocabHeader, head[0])
	}

	vocab := NewVocabulary()

	for i := 0; ; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("vocabulary row %d: %w", i+1, err)
		}

		freq, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, fmt.Errorf("vocabulary row %d: %w", i+1, err)
		}

		vocab.docFreq[record[0]] = freq
	}

	return vocab, nil
}

// LoadFile reads a saved vocabulary from disk.
func LoadFile(name string) (*Vocabulary, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()

	return Load(f)
}

func sortByCount(entries []TokenCount) {
	slices.SortFunc(entries, func(a, b TokenCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}

		return cmp.Compare(a.Token, b.Token)
	})
}
