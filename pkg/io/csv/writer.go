package csv

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	aqio "github.com/hed1ad/aqguard/pkg/io"
	"github.com/hed1ad/aqguard/pkg/table"
)

// Writer writes tables as CSV with a header row.
type Writer struct {
	file   *os.File
	writer *csv.Writer
}

var _ aqio.Writer = (*Writer)(nil)

// WriterOption configures a CSV writer.
type WriterOption func(*Writer)

// WithWriteComma sets the output field delimiter.
func WithWriteComma(c rune) WriterOption {
	return func(w *Writer) {
		w.writer.Comma = c
	}
}

// NewWriter creates or truncates filename.
func NewWriter(filename string, opts ...WriterOption) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := NewStreamWriter(file, opts...)
	w.file = file
	return w, nil
}

// NewStreamWriter creates a writer over an arbitrary stream.
func NewStreamWriter(dst io.Writer, opts ...WriterOption) *Writer {
	w := &Writer{writer: csv.NewWriter(dst)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the header and every row, then flushes.
func (w *Writer) Write(t *table.Table) error {
	if err := w.writer.Write(t.Names()); err != nil {
		return err
	}

	cols := t.Columns()
	record := make([]string, len(cols))
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range cols {
			record[j] = formatCell(c, i)
		}
		if err := w.writer.Write(record); err != nil {
			return err
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Close releases resources.
func (w *Writer) Close() error {
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func formatCell(c *table.Column, i int) string {
	switch c.Kind {
	case table.Float:
		v := c.Floats[i]
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case table.String:
		return c.Strings[i]
	default:
		if c.Times[i].IsZero() {
			return ""
		}
		return c.Times[i].Format(aqio.TimeLayout)
	}
}
