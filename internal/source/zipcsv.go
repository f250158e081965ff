// Package source streams normalized rows out of a CSV entry held inside a zip
// archive, without extracting the entry to disk.
package source

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"vehicle-loader/internal/logging"
	"vehicle-loader/internal/normalize"
)

// Sentinel errors distinguishing the fatal failure classes of the reader.
var (
	// ErrArchive indicates the archive or the named entry is unusable.
	ErrArchive = errors.New("archive unreadable")
	// ErrEncoding indicates the entry contains bytes that are not valid UTF-8.
	ErrEncoding = errors.New("invalid UTF-8 input")
)

// ZipCSVSource yields one normalized row per CSV line of a named zip entry.
// The sequence is single-pass and forward-only; construct a fresh source for a
// second pass. Values are the trimmed string or nil for empty cells, with the
// cylinders column rewritten to its leading integer (or nil).
type ZipCSVSource struct {
	archive   *zip.ReadCloser
	entry     io.ReadCloser
	reader    *csv.Reader
	headers   []string
	hasCylCol bool
	rowNum    int // 1-based data row counter, header excluded
}

// OpenZipCSV opens entryName inside the archive at archivePath and consumes
// the header row. The decompressed stream is read incrementally; the archive
// is never buffered in full.
func OpenZipCSV(archivePath, entryName string) (*ZipCSVSource, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening archive '%s': %v", ErrArchive, archivePath, err)
	}

	entry, err := zr.Open(entryName)
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("%w: opening entry '%s' in '%s': %v", ErrArchive, entryName, archivePath, err)
	}

	reader := csv.NewReader(entry)
	// Rows are zipped against the header positionally, so mismatched cell
	// counts are tolerated rather than rejected.
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		entry.Close()
		zr.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: entry '%s' is empty (no header row)", ErrArchive, entryName)
		}
		return nil, fmt.Errorf("%w: reading header row of '%s': %v", ErrArchive, entryName, err)
	}
	for i, h := range headers {
		if !utf8.ValidString(h) {
			entry.Close()
			zr.Close()
			return nil, fmt.Errorf("%w: header column %d of '%s'", ErrEncoding, i+1, entryName)
		}
	}

	hasCyl := false
	for _, h := range headers {
		if h == "cylinders" {
			hasCyl = true
			break
		}
	}

	logging.Logf(logging.Debug, "Opened entry '%s' in '%s' with %d header columns", entryName, archivePath, len(headers))
	return &ZipCSVSource{
		archive:   zr,
		entry:     entry,
		reader:    reader,
		headers:   headers,
		hasCylCol: hasCyl,
	}, nil
}

// Headers returns the column names taken from the entry's header row.
func (s *ZipCSVSource) Headers() []string {
	return s.headers
}

// Next returns the next normalized row, or io.EOF once the entry is exhausted.
// Short rows get nil for the trailing headers; extra cells beyond the header
// count are dropped. Duplicate header names keep the last occurring column.
func (s *ZipCSVSource) Next() (map[string]interface{}, error) {
	cells, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: parsing row %d: %v", ErrArchive, s.rowNum+1, err)
	}
	s.rowNum++

	for i, cell := range cells {
		if !utf8.ValidString(cell) {
			return nil, fmt.Errorf("%w: row %d column %d", ErrEncoding, s.rowNum, i+1)
		}
	}

	row := make(map[string]interface{}, len(s.headers))
	for i, header := range s.headers {
		if i < len(cells) {
			row[header] = normalize.Scalar(cells[i])
		} else {
			row[header] = nil
		}
	}
	if s.hasCylCol {
		row["cylinders"] = normalize.LeadingInt(row["cylinders"])
	}
	return row, nil
}

// Close releases the entry stream and the archive handle. Safe to call more
// than once.
func (s *ZipCSVSource) Close() error {
	var firstErr error
	if s.entry != nil {
		if err := s.entry.Close(); err != nil {
			firstErr = fmt.Errorf("closing entry: %w", err)
		}
		s.entry = nil
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing archive: %w", err)
		}
		s.archive = nil
	}
	return firstErr
}
