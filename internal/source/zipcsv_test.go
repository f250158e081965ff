package source

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeZip creates a zip archive in a temp dir with the given entries.
func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating zip file: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %q: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing zip entry %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing zip file: %v", err)
	}
	return path
}

// readAll drains a source into a slice of rows.
func readAll(t *testing.T, s *ZipCSVSource) []map[string]interface{} {
	t.Helper()
	var rows []map[string]interface{}
	for {
		row, err := s.Next()
		if errors.Is(err, io.EOF) {
			return rows
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		rows = append(rows, row)
	}
}

// TestOpenZipCSVNormalization covers trimming, empty-to-absent and the
// cylinders rewrite on a minimal entry.
func TestOpenZipCSVNormalization(t *testing.T) {
	path := writeZip(t, map[string]string{
		"data.csv": "a,b,cylinders\n\" x \",,6 cylinders\n",
	})

	s, err := OpenZipCSV(path, "data.csv")
	if err != nil {
		t.Fatalf("OpenZipCSV: %v", err)
	}
	defer s.Close()

	if got := s.Headers(); !reflect.DeepEqual(got, []string{"a", "b", "cylinders"}) {
		t.Errorf("Headers() = %v", got)
	}

	rows := readAll(t, s)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	want := map[string]interface{}{"a": "x", "b": nil, "cylinders": 6}
	if !reflect.DeepEqual(rows[0], want) {
		t.Errorf("row = %v, want %v", rows[0], want)
	}
}

// TestZipCSVPositionalZip covers the lenient header/cell-count handling:
// short rows get nil for trailing headers, extra cells are dropped.
func TestZipCSVPositionalZip(t *testing.T) {
	path := writeZip(t, map[string]string{
		"data.csv": "a,b,c\nonly\n1,2,3,4,5\n",
	})

	s, err := OpenZipCSV(path, "data.csv")
	if err != nil {
		t.Fatalf("OpenZipCSV: %v", err)
	}
	defer s.Close()

	rows := readAll(t, s)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	wantShort := map[string]interface{}{"a": "only", "b": nil, "c": nil}
	if !reflect.DeepEqual(rows[0], wantShort) {
		t.Errorf("short row = %v, want %v", rows[0], wantShort)
	}
	wantLong := map[string]interface{}{"a": "1", "b": "2", "c": "3"}
	if !reflect.DeepEqual(rows[1], wantLong) {
		t.Errorf("long row = %v, want %v", rows[1], wantLong)
	}
}

// TestZipCSVStreamsManyRows exercises the source over enough rows to catch
// any per-row state leakage without buffering the file up front.
func TestZipCSVStreamsManyRows(t *testing.T) {
	content := "url,region,cylinders\n"
	for i := 0; i < 5000; i++ {
		content += "https://example.org/a,austin,4 cylinders\n"
	}
	path := writeZip(t, map[string]string{"big.csv": content})

	s, err := OpenZipCSV(path, "big.csv")
	if err != nil {
		t.Fatalf("OpenZipCSV: %v", err)
	}
	defer s.Close()

	count := 0
	for {
		row, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next at row %d: %v", count, err)
		}
		if row["cylinders"] != 4 {
			t.Fatalf("row %d cylinders = %v, want 4", count, row["cylinders"])
		}
		count++
	}
	if count != 5000 {
		t.Errorf("streamed %d rows, want 5000", count)
	}
}

// TestOpenZipCSVErrors covers the ErrArchive failure class.
func TestOpenZipCSVErrors(t *testing.T) {
	path := writeZip(t, map[string]string{"data.csv": "a\n1\n"})

	testCases := []struct {
		name    string
		archive string
		entry   string
	}{
		{name: "missing archive", archive: filepath.Join(t.TempDir(), "nope.zip"), entry: "data.csv"},
		{name: "missing entry", archive: path, entry: "other.csv"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := OpenZipCSV(tc.archive, tc.entry)
			if err == nil {
				s.Close()
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrArchive) {
				t.Errorf("error = %v, want ErrArchive", err)
			}
		})
	}
}

// TestOpenZipCSVEmptyEntry covers an entry without a header row.
func TestOpenZipCSVEmptyEntry(t *testing.T) {
	path := writeZip(t, map[string]string{"empty.csv": ""})
	s, err := OpenZipCSV(path, "empty.csv")
	if err == nil {
		s.Close()
		t.Fatal("expected error for empty entry, got nil")
	}
	if !errors.Is(err, ErrArchive) {
		t.Errorf("error = %v, want ErrArchive", err)
	}
}

// TestZipCSVInvalidUTF8 covers the ErrEncoding failure class.
func TestZipCSVInvalidUTF8(t *testing.T) {
	path := writeZip(t, map[string]string{
		"data.csv": "a,b\nok,\xff\xfe\xfd\n",
	})

	s, err := OpenZipCSV(path, "data.csv")
	if err != nil {
		t.Fatalf("OpenZipCSV: %v", err)
	}
	defer s.Close()

	_, err = s.Next()
	if err == nil {
		t.Fatal("expected encoding error, got nil")
	}
	if !errors.Is(err, ErrEncoding) {
		t.Errorf("error = %v, want ErrEncoding", err)
	}
}

// TestZipCSVCloseIdempotent verifies Close is safe to call twice.
func TestZipCSVCloseIdempotent(t *testing.T) {
	path := writeZip(t, map[string]string{"data.csv": "a\n1\n"})
	s, err := OpenZipCSV(path, "data.csv")
	if err != nil {
		t.Fatalf("OpenZipCSV: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
