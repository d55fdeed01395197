// Package dataset reads, writes, and samples method-level code-change
// datasets.
//
// A row describes one method change: where both states live (repository,
// URLs, file paths, positions), which method changed, and a binary label.
// Rows travel as CSV with a fixed 11-column header.
package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Labels carried in the last CSV column.
const (
	LabelPositive = "1"
	LabelNegative = "0"
)

// DefaultSeed is the seed used by deterministic shuffles and samples when
// the caller does not pick one.
const DefaultSeed = 1234

// ErrMalformedPosition is returned when a position cell is not "line:col".
var ErrMalformedPosition = errors.New("malformed position")

// header is the exact column order of a labeled dataset file.
var header = []string{
	"Repository",
	"Before state URL",
	"After state URL",
	"Before state file path",
	"After state file path",
	"Before state line:col",
	"After state line:col",
	"Method name",
	"Before state commit hash",
	"After state commit hash",
	"Label",
}

// Header returns a copy of the dataset column names.
func Header() []string {
	out := make([]string, len(header))
	copy(out, header)

	return out
}

// Position is a 1-based line and column pair.
type Position struct {
	Line int
	Col  int
}

// ParsePosition parses a "line:col" cell.
func ParsePosition(s string) (Position, error) {
	lineStr, colStr, ok := strings.Cut(s, ":")
	if !ok {
		return Position{}, fmt.Errorf("%w: %q", ErrMalformedPosition, s)
	}

	line, err := strconv.Atoi(strings.TrimSpace(lineStr))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q", ErrMalformedPosition, s)
	}

	col, err := strconv.Atoi(strings.TrimSpace(colStr))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q", ErrMalformedPosition, s)
	}

	return Position{Line: line, Col: col}, nil
}

// String renders the position back into its CSV cell form.
func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Col)
}

// Row is one method-change sample.
type Row struct {
	Repository string
	BeforeURL  string
	AfterURL   string
	BeforePath string
	AfterPath  string
	BeforePos  Position
	AfterPos   Position
	MethodName string
	BeforeSHA  string
	AfterSHA   string
	Label      string
}

// key identifies the sample independent of its label, so the same change
// cannot enter a set as both classes.
func (r Row) key() string {
	return strings.Join([]string{
		r.Repository,
		r.BeforeURL,
		r.AfterURL,
		r.BeforePath,
		r.AfterPath,
		r.BeforePos.String(),
		r.AfterPos.String(),
		r.MethodName,
		r.BeforeSHA,
		r.AfterSHA,
	}, "\x00")
}

// record renders the row as its 11 CSV cells.
func (r Row) record() []string {
	return []string{
		r.Repository,
		r.BeforeURL,
		r.AfterURL,
		r.BeforePath,
		r.AfterPath,
		r.BeforePos.String(),
		r.AfterPos.String(),
		r.MethodName,
		r.BeforeSHA,
		r.AfterSHA,
		r.Label,
	}
}

// rowFromRecord parses one CSV record. The label argument overrides the
// record's own label column when the record has only the 10 data cells.
func rowFromRecord(record []string, label string) (Row, error) {
	beforePos, err := ParsePosition(record[5])
	if err != nil {
		return Row{}, err
	}

	afterPos, err := ParsePosition(record[6])
	if err != nil {
		return Row{}, err
	}

	if len(record) > unlabeledColumns {
		label = record[10]
	}

	return Row{
		Repository: record[0],
		BeforeURL:  record[1],
		AfterURL:   record[2],
		BeforePath: record[3],
		AfterPath:  record[4],
		BeforePos:  beforePos,
		AfterPos:   afterPos,
		MethodName: record[7],
		BeforeSHA:  record[8],
		AfterSHA:   record[9],
		Label:      label,
	}, nil
}
