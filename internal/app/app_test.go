package app

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeVehicleZip builds a small archive with a valid vehicles CSV entry.
func writeVehicleZip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vehicles.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating zip: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("vehicles.csv")
	if err != nil {
		t.Fatalf("creating entry: %v", err)
	}
	csvContent := "url,region,price,cylinders,fuel\n" +
		"https://example.org/1,austin,33590,8 cylinders,gas\n" +
		"https://example.org/2,reno,2500,,diesel\n" +
		"https://example.org/3,reno,not-a-price,,gas\n"
	if _, err := w.Write([]byte(csvContent)); err != nil {
		t.Fatalf("writing entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return path
}

// TestRunNoArgsShowsUsage: invoking with no arguments prints help and exits
// cleanly.
func TestRunNoArgsShowsUsage(t *testing.T) {
	runner := NewAppRunner()
	if err := runner.Run(nil); err != nil {
		t.Errorf("Run(nil) = %v, want nil", err)
	}
}

// TestUsageMentionsFlags sanity-checks the help text.
func TestUsageMentionsFlags(t *testing.T) {
	var buf bytes.Buffer
	NewAppRunner().Usage(&buf)
	for _, flag := range []string{"-archive", "-entry", "-db", "-batch", "-max-rows", "-dry-run"} {
		if !strings.Contains(buf.String(), flag) {
			t.Errorf("usage text missing %q", flag)
		}
	}
}

// TestRunMissingArchive: without an archive or entry the run fails with
// ErrMissingArgs.
func TestRunMissingArchive(t *testing.T) {
	runner := NewAppRunner()
	runner.Out = new(bytes.Buffer)
	err := runner.Run([]string{"-dry-run", "-loglevel", "none"})
	if !errors.Is(err, ErrMissingArgs) {
		t.Errorf("Run = %v, want ErrMissingArgs", err)
	}
}

// TestRunMissingDBConn: a live run without a connection string fails.
func TestRunMissingDBConn(t *testing.T) {
	t.Setenv("DB_CREDENTIALS", "")
	runner := NewAppRunner()
	runner.Out = new(bytes.Buffer)
	err := runner.Run([]string{"-archive", "x.zip", "-entry", "x.csv", "-loglevel", "none"})
	if !errors.Is(err, ErrMissingArgs) {
		t.Errorf("Run = %v, want ErrMissingArgs", err)
	}
}

// TestRunExplicitConfigNotFound: a -config path that does not exist is an
// error when given explicitly.
func TestRunExplicitConfigNotFound(t *testing.T) {
	runner := NewAppRunner()
	runner.Out = new(bytes.Buffer)
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	err := runner.Run([]string{"-config", missing, "-dry-run", "-loglevel", "none"})
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Run = %v, want ErrConfigNotFound", err)
	}
}

// TestRunDryRunEndToEnd drives the whole pipeline over a real zip archive
// without a database: two valid rows parse, the bad-price row is skipped.
func TestRunDryRunEndToEnd(t *testing.T) {
	archive := writeVehicleZip(t)
	var out bytes.Buffer
	runner := NewAppRunner()
	runner.Out = &out

	err := runner.Run([]string{
		"-archive", archive,
		"-entry", "vehicles.csv",
		"-dry-run",
		"-loglevel", "none",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	printed := out.String()
	if !strings.Contains(printed, "total_rows_parsed: 2\n") {
		t.Errorf("expected 2 parsed rows in summary:\n%s", printed)
	}
	if !strings.Contains(printed, "total_rows_inserted: 2\n") {
		t.Errorf("expected 2 counted rows in summary:\n%s", printed)
	}
	// The invalid row's skip output names the offending field.
	if !strings.Contains(printed, "price") {
		t.Errorf("skip output missing offending field:\n%s", printed)
	}
}

// TestRunConfigFileDrivesPipeline loads source settings from YAML, overridden
// only by -dry-run.
func TestRunConfigFileDrivesPipeline(t *testing.T) {
	archive := writeVehicleZip(t)
	cfgPath := filepath.Join(t.TempDir(), "loader.yaml")
	cfgContent := "source:\n  archive: " + archive + "\n  entry: vehicles.csv\nimport:\n  batch_size: 1\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	var out bytes.Buffer
	runner := NewAppRunner()
	runner.Out = &out
	err := runner.Run([]string{"-config", cfgPath, "-dry-run", "-loglevel", "none"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "total_rows_parsed: 2\n") {
		t.Errorf("expected 2 parsed rows:\n%s", out.String())
	}
}
