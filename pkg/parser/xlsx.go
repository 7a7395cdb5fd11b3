package parser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/caseflow/caseflow/internal/model"
)

// XLSXParser parses Excel XLSX event logs.
type XLSXParser struct {
	cfg Config
}

// NewXLSXParser creates a new XLSX parser.
func NewXLSXParser(cfg Config) *XLSXParser {
	return &XLSXParser{cfg: cfg}
}

// Parse reads the first sheet of an XLSX workbook using the streaming row
// reader. Column mapping and null handling match the CSV parser.
func (p *XLSXParser) Parse(ctx context.Context, r io.Reader) (*model.Log, error) {
	xlFile, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer xlFile.Close()

	sheetName := xlFile.GetSheetName(0)
	if sheetName == "" {
		sheetList := xlFile.GetSheetList()
		if len(sheetList) == 0 {
			return nil, fmt.Errorf("no sheets found in xlsx file")
		}
		sheetName = sheetList[0]
	}

	rows, err := xlFile.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("xlsx file is empty")
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[col] = i
	}

	caseIdx, ok := colIdx[p.cfg.CaseIDColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, p.cfg.CaseIDColumn)
	}
	actIdx, ok := colIdx[p.cfg.ActivityColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, p.cfg.ActivityColumn)
	}
	startIdx, ok := colIdx[p.cfg.StartColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, p.cfg.StartColumn)
	}
	endIdx, hasEnd := colIdx[p.cfg.EndColumn]
	enabledIdx, hasEnabled := colIdx[p.cfg.EnabledColumn]
	resIdx, hasRes := colIdx[p.cfg.ResourceColumn]

	log := &model.Log{}
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ErrContextCanceled
		default:
		}

		cells, err := rows.Columns()
		if err != nil {
			continue
		}
		if len(cells) <= caseIdx || len(cells) <= actIdx || len(cells) <= startIdx {
			continue
		}
		if cells[caseIdx] == "" || cells[actIdx] == "" {
			continue
		}
		start, err := p.parseTimestamp(cells[startIdx])
		if err != nil {
			continue
		}

		ev := model.Event{
			CaseID:   cells[caseIdx],
			Activity: cells[actIdx],
			Start:    start,
		}
		if hasRes && resIdx < len(cells) {
			ev.Resource = cells[resIdx]
		}
		if hasEnd && endIdx < len(cells) && cells[endIdx] != "" {
			if end, err := p.parseTimestamp(cells[endIdx]); err == nil {
				ev.End = end
			}
		}
		if hasEnabled && enabledIdx < len(cells) && cells[enabledIdx] != "" {
			if enabled, err := p.parseTimestamp(cells[enabledIdx]); err == nil {
				ev.Enabled = enabled
			}
		}
		log.Events = append(log.Events, ev)
	}
	return log, nil
}

// parseTimestamp handles both the configured layout and the formats Excel
// commonly renders dates in.
func (p *XLSXParser) parseTimestamp(s string) (time.Time, error) {
	layouts := []string{
		p.cfg.TimestampFormat,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"01-02-06 15:04:05",
		"1/2/06 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}
