// Package parser reads event logs (CSV, XLSX) into the in-memory model.
// Every row is one activity execution: case id, activity label, resource,
// enabled/start/end timestamps. End and enabled cells may be empty; an
// empty end marks the activity as ongoing.
package parser

import (
	"context"
	"io"

	"github.com/caseflow/caseflow/internal/model"
)

// Parser reads an event log from a stream.
type Parser interface {
	// Parse reads from r and returns the loaded log. It should respect
	// context cancellation.
	Parse(ctx context.Context, r io.Reader) (*model.Log, error)
}

// Format represents a supported input format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatXLSX
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format string.
func ParseFormat(s string) Format {
	switch s {
	case "csv", "CSV":
		return FormatCSV
	case "xlsx", "XLSX", "excel", "Excel":
		return FormatXLSX
	default:
		return FormatUnknown
	}
}

// Config holds common parser configuration.
type Config struct {
	// BufferSize is the size of the read buffer in bytes.
	BufferSize int

	// CaseIDColumn is the name of the case ID column.
	CaseIDColumn string

	// ActivityColumn is the name of the activity column.
	ActivityColumn string

	// ResourceColumn is the name of the resource column (optional).
	ResourceColumn string

	// EnabledColumn is the name of the enabled-time column (optional).
	EnabledColumn string

	// StartColumn is the name of the start-time column.
	StartColumn string

	// EndColumn is the name of the end-time column. Empty cells mean the
	// activity is still ongoing.
	EndColumn string

	// TimestampFormat is the expected timestamp format (Go time layout).
	TimestampFormat string

	// Delimiter is the field delimiter for CSV (default: comma).
	Delimiter byte
}

// DefaultConfig returns a Config with the standard event-log columns.
func DefaultConfig() Config {
	return Config{
		BufferSize:      64 * 1024,
		CaseIDColumn:    "case_id",
		ActivityColumn:  "activity",
		ResourceColumn:  "resource",
		EnabledColumn:   "enable_time",
		StartColumn:     "start_time",
		EndColumn:       "end_time",
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		Delimiter:       ',',
	}
}

// New returns the parser for a format.
func New(format Format, cfg Config) (Parser, error) {
	switch format {
	case FormatCSV:
		return NewCSVParser(cfg), nil
	case FormatXLSX:
		return NewXLSXParser(cfg), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}
