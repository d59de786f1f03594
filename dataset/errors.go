package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrDatasetUnavailable   = errors.New("dataset: unavailable")
	ErrEmptyDataset         = errors.New("dataset: no samples")
	ErrMalformedRow         = errors.New("dataset: malformed row")
	ErrMissingFeatureColumn = errors.New("dataset: missing feature column")
)

// MalformedRowError reports a data row whose field count does not match the
// header, or a line the CSV reader could not parse.
type MalformedRowError struct {
	Row    int    // 1-based line in the input
	Fields int    // Fields found on the row
	Want   int    // Fields in the header
	Reason string // Set for CSV syntax errors
}

func (e *MalformedRowError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("dataset: malformed row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("dataset: malformed row %d: %d fields, want %d", e.Row, e.Fields, e.Want)
}

func (e *MalformedRowError) Unwrap() error {
	return ErrMalformedRow
}

// MissingColumnError names a required column absent from the header
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("dataset: missing feature column %q", e.Column)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingFeatureColumn
}
