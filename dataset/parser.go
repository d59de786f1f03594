package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-screen/features"
)

// ParseOptions controls how a reference corpus is read
type ParseOptions struct {
	LabelColumn    string  `json:"label_column" yaml:"label_column"`       // Header cell identifying the header row
	LabelThreshold float64 `json:"label_threshold" yaml:"label_threshold"` // Label values at or above are Affected
	StdDevFloor    float64 `json:"std_dev_floor" yaml:"std_dev_floor"`     // Lower bound for per-feature std
}

// DefaultParseOptions returns the options for the Sakar-layout voice corpus
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		LabelColumn:    "class",
		LabelThreshold: 0.5,
		StdDevFloor:    1e-6,
	}
}

// ParseReport describes lenient parsing decisions. Cells that are missing,
// non-numeric or non-finite are read as 0 and counted here.
type ParseReport struct {
	HeaderRow       int            `json:"header_row"`       // 1-based line of the header
	RowsRead        int            `json:"rows_read"`        // Samples produced
	BlankRows       int            `json:"blank_rows"`       // All-empty rows skipped
	DefaultedCells  map[string]int `json:"defaulted_cells"`  // Per feature column
	DefaultedLabels int            `json:"defaulted_labels"` // Label cells read as 0
}

// Defaulted returns the total count of defaulted feature cells
func (r *ParseReport) Defaulted() int {
	total := 0
	for _, n := range r.DefaultedCells {
		total += n
	}
	return total
}

// Parse reads a CSV corpus. Rows before the header (the first row holding
// the label column) are ignored. Every later non-blank row must have as
// many fields as the header.
func Parse(r io.Reader, opts ParseOptions) ([]Sample, *ParseReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	report := &ParseReport{DefaultedCells: make(map[string]int)}
	var (
		samples  []Sample
		columns  []int // feature -> header index
		labelIdx = -1
		width    int
		sawRows  bool
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, nil, &MalformedRowError{Row: pe.StartLine, Reason: pe.Err.Error()}
			}
			return nil, nil, fmt.Errorf("%w: read: %w", ErrDatasetUnavailable, err)
		}
		sawRows = true
		line, _ := reader.FieldPos(0)

		if labelIdx < 0 {
			idx := indexOf(record, opts.LabelColumn)
			if idx < 0 {
				continue
			}
			columns, err = featureColumns(record)
			if err != nil {
				return nil, nil, err
			}
			labelIdx = idx
			width = len(record)
			report.HeaderRow = line
			continue
		}

		if isBlank(record) {
			report.BlankRows++
			continue
		}
		if len(record) != width {
			return nil, nil, &MalformedRowError{Row: line, Fields: len(record), Want: width}
		}

		var v features.Vector
		for f, idx := range columns {
			x, ok := parseCell(record[idx])
			if !ok {
				report.DefaultedCells[features.Feature(f).Name()]++
			}
			v[f] = x
		}

		score, ok := parseCell(record[labelIdx])
		if !ok {
			report.DefaultedLabels++
		}

		samples = append(samples, Sample{
			Features: v,
			Label:    features.LabelFromScore(score, opts.LabelThreshold),
			Row:      line,
		})
	}

	if labelIdx < 0 {
		if !sawRows {
			return nil, nil, ErrEmptyDataset
		}
		return nil, nil, &MissingColumnError{Column: opts.LabelColumn}
	}
	if len(samples) == 0 {
		return nil, nil, ErrEmptyDataset
	}

	report.RowsRead = len(samples)
	return samples, report, nil
}

// featureColumns maps every feature to its header index
func featureColumns(header []string) ([]int, error) {
	columns := make([]int, features.Count)
	for i, name := range features.Names() {
		idx := indexOf(header, name)
		if idx < 0 {
			return nil, &MissingColumnError{Column: name}
		}
		columns[i] = idx
	}
	return columns, nil
}

// indexOf finds the first cell equal to name, ignoring case and space
func indexOf(record []string, name string) int {
	for i, cell := range record {
		if strings.EqualFold(strings.TrimSpace(cell), name) {
			return i
		}
	}
	return -1
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseCell reads a float, reporting false (and 0) for anything that is not
// a finite number.
func parseCell(cell string) (float64, bool) {
	x, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}
