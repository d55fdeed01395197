package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// labeledColumns and unlabeledColumns are the strict record widths.
const (
	labeledColumns   = 11
	unlabeledColumns = 10
)

// ErrMissingHeader is returned when a labeled dataset does not start with
// the expected header row.
var ErrMissingHeader = errors.New("missing dataset header")

// Read parses a labeled dataset: a header row followed by 11-column rows.
func Read(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = labeledColumns

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}

	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if head[0] != header[0] {
		return nil, fmt.Errorf("%w: got %q", ErrMissingHeader, head[0])
	}

	var rows []Row

	for i := 0; ; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		row, err := rowFromRecord(record, "")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// ReadUnlabeled parses a headerless 10-column file and stamps every row
// with the given label.
func ReadUnlabeled(r io.Reader, label string) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = unlabeledColumns

	var rows []Row

	for i := 0; ; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		row, err := rowFromRecord(record, label)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// Write renders rows as a labeled dataset with the standard header.
func Write(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		if err := writer.Write(row.record()); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush dataset: %w", err)
	}

	return nil
}

// ReadFile reads a labeled dataset from disk.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// ReadUnlabeledFile reads a headerless 10-column file from disk.
func ReadUnlabeledFile(path, label string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return ReadUnlabeled(f, label)
}

// WriteFile writes a labeled dataset to disk.
func WriteFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}

	if err := Write(f, rows); err != nil {
		f.Close()

		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}

	return nil
}
