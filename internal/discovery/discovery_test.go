package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dterrors "github.com/five82/dovetail/internal/errors"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Info(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recordingLogger) Debug(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFindVideoFilesRecursive(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Movies", "B (2020)", "B (2020).mkv"))
	touch(t, filepath.Join(root, "Movies", "a (2019)", "a (2019).mp4"))
	touch(t, filepath.Join(root, "Movies", "a (2019)", "a (2019).nfo"))
	touch(t, filepath.Join(root, "TV", "Show", "S01E01.mkv"))
	touch(t, filepath.Join(root, ".trash", "old.mkv"))
	touch(t, filepath.Join(root, "TV", ".hidden.mkv"))
	touch(t, filepath.Join(root, "TV", "Show", "S01E02_0123abcd.dovetail-mux.mkv"))

	files, err := FindVideoFiles(root)
	if err != nil {
		t.Fatalf("FindVideoFiles() error = %v", err)
	}

	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(root, f)
		rel = append(rel, r)
	}
	want := []string{
		filepath.Join("Movies", "a (2019)", "a (2019).mp4"),
		filepath.Join("Movies", "B (2020)", "B (2020).mkv"),
		filepath.Join("TV", "Show", "S01E01.mkv"),
	}
	if strings.Join(rel, "|") != strings.Join(want, "|") {
		t.Errorf("files = %v, want %v", rel, want)
	}
}

func TestFindVideoFilesOverlappingRoots(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Movies", "x.mkv"))

	files, err := FindVideoFiles(root, filepath.Join(root, "Movies"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("expected overlapping roots to yield 1 file, got %v", files)
	}
}

func TestFindVideoFilesErrors(t *testing.T) {
	empty := t.TempDir()
	touch(t, filepath.Join(empty, "readme.txt"))

	if _, err := FindVideoFiles(empty); !dterrors.IsNoFilesFound(err) {
		t.Errorf("expected no-files-found, got %v", err)
	}
	if _, err := FindVideoFiles(filepath.Join(empty, "missing")); !dterrors.IsKind(err, dterrors.KindPath) {
		t.Errorf("expected path error for missing root, got %v", err)
	}
	if _, err := FindVideoFiles(filepath.Join(empty, "readme.txt")); !dterrors.IsKind(err, dterrors.KindPath) {
		t.Errorf("expected path error for file root, got %v", err)
	}
	if _, err := FindVideoFiles(); !dterrors.IsKind(err, dterrors.KindPath) {
		t.Errorf("expected path error for no roots, got %v", err)
	}
}

func TestFindVideoFilesWithLogging(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 7; i++ {
		touch(t, filepath.Join(root, fmt.Sprintf("m%d.mkv", i)))
	}
	touch(t, filepath.Join(root, "poster.jpg"))

	log := &recordingLogger{}
	res, err := FindVideoFilesWithLogging(log, root)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 7 || res.SkippedCount != 1 {
		t.Errorf("Files=%d Skipped=%d, want 7 and 1", len(res.Files), res.SkippedCount)
	}
	if log.lines[0] != "Found 7 video file(s)" {
		t.Errorf("first log line = %q", log.lines[0])
	}
	if last := log.lines[len(log.lines)-1]; last != "  ... and 2 more" {
		t.Errorf("last log line = %q", last)
	}
}
