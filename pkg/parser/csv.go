package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/caseflow/caseflow/internal/model"
)

// CSVParser implements byte-level CSV parsing without strings.Split.
type CSVParser struct {
	cfg Config
}

// NewCSVParser creates a new CSV parser.
func NewCSVParser(cfg Config) *CSVParser {
	return &CSVParser{cfg: cfg}
}

// Parse implements the Parser interface. Rows missing the case id,
// activity or start time are skipped; empty end/enabled cells produce
// zero-valued times.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader) (*model.Log, error) {
	reader := bufio.NewReaderSize(r, p.cfg.BufferSize)

	headerLine, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(headerLine) == 0 {
		return nil, ErrInvalidCSV
	}

	columns := p.parseCSVLine(trimLineEnding(headerLine))
	colMap := make(map[string]int, len(columns))
	for i, col := range columns {
		colMap[string(col)] = i
	}

	caseIdx, ok := colMap[p.cfg.CaseIDColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, p.cfg.CaseIDColumn)
	}
	actIdx, ok := colMap[p.cfg.ActivityColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, p.cfg.ActivityColumn)
	}
	startIdx, ok := colMap[p.cfg.StartColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, p.cfg.StartColumn)
	}
	endIdx, hasEnd := colMap[p.cfg.EndColumn]
	enabledIdx, hasEnabled := colMap[p.cfg.EnabledColumn]
	resIdx, hasRes := colMap[p.cfg.ResourceColumn]

	log := &model.Log{}
	for {
		select {
		case <-ctx.Done():
			return nil, ErrContextCanceled
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if len(line) == 0 && err == io.EOF {
			break
		}

		line = trimLineEnding(line)
		if len(line) > 0 {
			fields := p.parseCSVLine(line)
			if ev, ok := p.buildEvent(fields, caseIdx, actIdx, startIdx, endIdx, hasEnd, enabledIdx, hasEnabled, resIdx, hasRes); ok {
				log.Events = append(log.Events, ev)
			}
		}

		if err == io.EOF {
			break
		}
	}
	return log, nil
}

func (p *CSVParser) buildEvent(fields [][]byte, caseIdx, actIdx, startIdx, endIdx int, hasEnd bool, enabledIdx int, hasEnabled bool, resIdx int, hasRes bool) (model.Event, bool) {
	if len(fields) <= caseIdx || len(fields) <= actIdx || len(fields) <= startIdx {
		return model.Event{}, false
	}
	if len(fields[caseIdx]) == 0 || len(fields[actIdx]) == 0 {
		return model.Event{}, false
	}

	start, err := p.parseTimestamp(fields[startIdx])
	if err != nil {
		return model.Event{}, false
	}

	ev := model.Event{
		CaseID:   string(fields[caseIdx]),
		Activity: string(fields[actIdx]),
		Start:    start,
	}
	if hasRes && resIdx < len(fields) {
		ev.Resource = string(fields[resIdx])
	}
	// Nullable columns: an empty or unparseable cell stays zero.
	if hasEnd && endIdx < len(fields) && len(fields[endIdx]) > 0 {
		if end, err := p.parseTimestamp(fields[endIdx]); err == nil {
			ev.End = end
		}
	}
	if hasEnabled && enabledIdx < len(fields) && len(fields[enabledIdx]) > 0 {
		if enabled, err := p.parseTimestamp(fields[enabledIdx]); err == nil {
			ev.Enabled = enabled
		}
	}
	return ev, true
}

// parseCSVLine parses a CSV line using byte-level scanning.
// Handles quoted fields with embedded delimiters and quotes.
func (p *CSVParser) parseCSVLine(line []byte) [][]byte {
	if len(line) == 0 {
		return nil
	}

	fields := make([][]byte, 0, 8)
	delim := p.cfg.Delimiter
	start := 0
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]

		if c == '"' {
			if !inQuotes {
				inQuotes = true
			} else {
				// Check for escaped quote
				if i+1 < len(line) && line[i+1] == '"' {
					i++ // Skip escaped quote
				} else {
					inQuotes = false
				}
			}
		} else if c == delim && !inQuotes {
			fields = append(fields, unquoteField(line[start:i]))
			start = i + 1
		}
	}
	fields = append(fields, unquoteField(line[start:]))
	return fields
}

// unquoteField removes surrounding quotes and unescapes embedded quotes.
func unquoteField(field []byte) []byte {
	if len(field) < 2 {
		return field
	}
	if field[0] == '"' && field[len(field)-1] == '"' {
		field = field[1 : len(field)-1]
		result := make([]byte, 0, len(field))
		for i := 0; i < len(field); i++ {
			if field[i] == '"' && i+1 < len(field) && field[i+1] == '"' {
				result = append(result, '"')
				i++ // Skip second quote
			} else {
				result = append(result, field[i])
			}
		}
		return result
	}
	return field
}

// parseTimestamp parses a timestamp cell, trying the configured layout
// first and falling back to common RFC3339 variants.
func (p *CSVParser) parseTimestamp(ts []byte) (time.Time, error) {
	s := string(ts)
	if t, err := time.Parse(p.cfg.TimestampFormat, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

// trimLineEnding removes trailing \n and \r characters.
func trimLineEnding(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
