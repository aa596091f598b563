// Package io provides input/output utilities for tabular sensor data.
package io

import "github.com/hed1ad/aqguard/pkg/table"

// Reader is the interface for reading a complete table from a source.
type Reader interface {
	// Read returns the complete dataset.
	Read() (*table.Table, error)

	// Close releases resources.
	Close() error
}

// Writer is the interface for persisting a table.
type Writer interface {
	// Write outputs the whole table.
	Write(t *table.Table) error

	// Close releases resources.
	Close() error
}

// TimeLayout is the layout used when time columns are written as text.
const TimeLayout = "2006-01-02 15:04:05"
