// Package reject captures rows that failed filtering or validation so they
// can be inspected or re-fed to the importer later.
package reject

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"vehicle-loader/internal/logging"

	"github.com/xuri/excelize/v2"
)

// reasonColumn is appended after the row's own columns in every reject file.
const reasonColumn = "reject_reason"

// Sink receives rejected rows together with the error that rejected them.
type Sink interface {
	Write(row map[string]interface{}, cause error) error

	// Close flushes buffered data and releases the underlying file.
	// Implementations are idempotent.
	Close() error
}

// New selects a Sink implementation from the file extension: .xlsx gets the
// spreadsheet writer, everything else the CSV writer.
func New(path string) (Sink, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return NewXLSXSink(path), nil
	}
	return NewCSVSink(path)
}

// sortedHeaders derives the reject-file column order from one row.
func sortedHeaders(row map[string]interface{}) []string {
	headers := make([]string, 0, len(row)+1)
	for k := range row {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	return append(headers, reasonColumn)
}

// cellString renders one row value for a reject file cell. Absent values
// become empty cells.
func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// rejectRow lays out one row plus its failure message in header order.
func rejectRow(headers []string, row map[string]interface{}, cause error) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		if h == reasonColumn {
			if cause != nil {
				out[i] = cause.Error()
			}
			continue
		}
		out[i] = cellString(row[h])
	}
	return out
}

// --- CSV sink ---

// CSVSink appends rejected rows to a CSV file. The header is written only
// when the file is new or empty; headers are determined from the first row.
type CSVSink struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	writer  *csv.Writer
	headers []string
	closed  bool
}

// NewCSVSink opens (or creates) the reject file in append mode.
func NewCSVSink(path string) (*CSVSink, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating directory for reject file '%s': %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening reject file '%s': %w", path, err)
	}
	return &CSVSink{
		path:   path,
		file:   f,
		writer: csv.NewWriter(f),
	}, nil
}

// Write appends one rejected row. Data is flushed after every write so
// rejects survive an aborted run.
func (cs *CSVSink) Write(row map[string]interface{}, cause error) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.closed {
		return fmt.Errorf("reject file '%s': write after close", cs.path)
	}

	if cs.headers == nil {
		cs.headers = sortedHeaders(row)
		info, err := cs.file.Stat()
		if err != nil || info.Size() == 0 {
			if err := cs.writer.Write(cs.headers); err != nil {
				return fmt.Errorf("writing header to reject file '%s': %w", cs.path, err)
			}
		}
	}

	if err := cs.writer.Write(rejectRow(cs.headers, row, cause)); err != nil {
		return fmt.Errorf("writing row to reject file '%s': %w", cs.path, err)
	}
	cs.writer.Flush()
	if err := cs.writer.Error(); err != nil {
		return fmt.Errorf("flushing reject file '%s': %w", cs.path, err)
	}
	return nil
}

// Close flushes and closes the reject file. Safe to call multiple times.
func (cs *CSVSink) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.closed {
		return nil
	}
	cs.closed = true

	cs.writer.Flush()
	flushErr := cs.writer.Error()
	closeErr := cs.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flushing reject file '%s' on close: %w", cs.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing reject file '%s': %w", cs.path, closeErr)
	}
	return nil
}

// --- XLSX sink ---

// xlsxSheet is the worksheet rejected rows are written to.
const xlsxSheet = "Sheet1"

// XLSXSink buffers rejected rows in a spreadsheet saved on Close.
type XLSXSink struct {
	mu      sync.Mutex
	path    string
	file    *excelize.File
	headers []string
	nextRow int
	closed  bool
}

// NewXLSXSink creates a spreadsheet sink. The file is written on Close.
func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{
		path:    path,
		file:    excelize.NewFile(),
		nextRow: 1,
	}
}

// Write appends one rejected row to the worksheet.
func (xs *XLSXSink) Write(row map[string]interface{}, cause error) error {
	xs.mu.Lock()
	defer xs.mu.Unlock()

	if xs.closed {
		return fmt.Errorf("reject file '%s': write after close", xs.path)
	}

	if xs.headers == nil {
		xs.headers = sortedHeaders(row)
		if err := xs.writeRow(xs.headers); err != nil {
			return err
		}
	}
	return xs.writeRow(rejectRow(xs.headers, row, cause))
}

func (xs *XLSXSink) writeRow(cells []string) error {
	startCell, err := excelize.CoordinatesToCellName(1, xs.nextRow)
	if err != nil {
		return fmt.Errorf("computing cell coordinates for reject file '%s': %w", xs.path, err)
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := xs.file.SetSheetRow(xlsxSheet, startCell, &values); err != nil {
		return fmt.Errorf("writing row %d to reject file '%s': %w", xs.nextRow, xs.path, err)
	}
	xs.nextRow++
	return nil
}

// Close saves the spreadsheet to disk and releases it. Safe to call multiple
// times. A sink that never received a row still produces an empty file.
func (xs *XLSXSink) Close() error {
	xs.mu.Lock()
	defer xs.mu.Unlock()

	if xs.closed {
		return nil
	}
	xs.closed = true

	dir := filepath.Dir(xs.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory for reject file '%s': %w", xs.path, err)
		}
	}
	saveErr := xs.file.SaveAs(xs.path)
	if closeErr := xs.file.Close(); closeErr != nil {
		logging.Logf(logging.Error, "Failed to release spreadsheet for '%s': %v", xs.path, closeErr)
	}
	if saveErr != nil {
		return fmt.Errorf("saving reject file '%s': %w", xs.path, saveErr)
	}
	return nil
}
