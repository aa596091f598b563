// Package csv provides CSV file reading and writing for tabular data.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	aqio "github.com/hed1ad/aqguard/pkg/io"
	"github.com/hed1ad/aqguard/pkg/table"
)

// Reader reads data from CSV files.
type Reader struct {
	file         *os.File
	reader       *csv.Reader
	hasHeader    bool
	decimalComma bool
	timeColumns  map[string]bool
	textColumns  map[string]bool
	headers      []string
}

var _ aqio.Reader = (*Reader)(nil)

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithComma sets the field delimiter.
func WithComma(c rune) Option {
	return func(r *Reader) {
		r.reader.Comma = c
	}
}

// WithDecimalComma makes numeric cells use "," as the decimal separator.
func WithDecimalComma(on bool) Option {
	return func(r *Reader) {
		r.decimalComma = on
	}
}

// WithTimeColumns parses the named columns as timestamps in aqio.TimeLayout.
func WithTimeColumns(names ...string) Option {
	return func(r *Reader) {
		for _, n := range names {
			r.timeColumns[n] = true
		}
	}
}

// WithStringColumns keeps the named columns as text even when they look numeric.
func WithStringColumns(names ...string) Option {
	return func(r *Reader) {
		for _, n := range names {
			r.textColumns[n] = true
		}
	}
}

// NewReader creates a new CSV reader over a file.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := NewStreamReader(file, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file
	return r, nil
}

// NewStreamReader creates a CSV reader over an arbitrary stream.
func NewStreamReader(src io.Reader, opts ...Option) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	r := &Reader{
		reader:      cr,
		hasHeader:   true,
		timeColumns: make(map[string]bool),
		textColumns: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(r)
	}

	// Read header if present
	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil {
			return nil, err
		}
		r.headers = headers
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Read returns all data as a table. Columns whose non-empty cells all parse
// as numbers become float columns, the rest stay strings.
func (r *Reader) Read() (*table.Table, error) {
	var records [][]string
	width := len(r.headers)

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if width == 0 {
			width = len(record)
		}
		if len(record) > width {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", len(records)+2, len(record), width)
		}
		records = append(records, record)
	}

	names := columnNames(r.headers, width)
	cols := make([]*table.Column, width)
	for j := 0; j < width; j++ {
		cells := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				cells[i] = strings.TrimSpace(rec[j])
			}
		}

		col, err := r.buildColumn(names[j], cells)
		if err != nil {
			return nil, err
		}
		cols[j] = col
	}

	return table.New(cols...)
}

func (r *Reader) buildColumn(name string, cells []string) (*table.Column, error) {
	if r.timeColumns[strings.TrimSpace(name)] {
		times := make([]time.Time, len(cells))
		for i, cell := range cells {
			if cell == "" {
				continue
			}
			ts, err := time.Parse(aqio.TimeLayout, cell)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
			times[i] = ts
		}
		return table.NewTime(name, times), nil
	}

	if r.textColumns[strings.TrimSpace(name)] {
		return table.NewString(name, cells), nil
	}

	floats := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := r.parseFloat(cell)
		if err != nil {
			return table.NewString(name, cells), nil
		}
		floats[i] = v
	}
	return table.NewFloat(name, floats), nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// parseFloat converts a cell to a float; empty cells are NaN.
func (r *Reader) parseFloat(cell string) (float64, error) {
	if cell == "" {
		return math.NaN(), nil
	}
	if r.decimalComma {
		cell = strings.Replace(cell, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// columnNames fills blank or absent header names with pandas-style
// placeholders so they can be recognised and dropped downstream.
func columnNames(headers []string, width int) []string {
	names := make([]string, width)
	for j := 0; j < width; j++ {
		if j < len(headers) && strings.TrimSpace(headers[j]) != "" {
			names[j] = headers[j]
			continue
		}
		names[j] = fmt.Sprintf("Unnamed: %d", j)
	}
	return names
}
