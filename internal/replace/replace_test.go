package replace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/logging"
)

func write(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
}

func TestCommitReplacesOriginal(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "movie.mkv")
	tmp := filepath.Join(dir, "movie_ab12cd34.mux.mkv")
	write(t, original, "old", 0640)
	write(t, tmp, "new content", 0600)

	if err := Commit(logging.Discard(), tmp, original); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	data, err := os.ReadFile(original)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new content" {
		t.Errorf("original = %q, want replaced content", data)
	}
	info, _ := os.Stat(original)
	if info.Mode().Perm() != 0640 {
		t.Errorf("mode = %v, want original's 0640", info.Mode().Perm())
	}
	if _, err := os.Stat(tmp); !errors.Is(err, os.ErrNotExist) {
		t.Error("tmp should no longer exist after rename")
	}
}

func TestCommitFailuresLeaveOriginal(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, dir string) (tmp, original string)
		target error
	}{
		{
			name: "missing tmp",
			setup: func(t *testing.T, dir string) (string, string) {
				o := filepath.Join(dir, "a.mkv")
				write(t, o, "old", 0644)
				return filepath.Join(dir, "none.mkv"), o
			},
			target: os.ErrNotExist,
		},
		{
			name: "empty tmp",
			setup: func(t *testing.T, dir string) (string, string) {
				o := filepath.Join(dir, "a.mkv")
				tmp := filepath.Join(dir, "tmp.mkv")
				write(t, o, "old", 0644)
				write(t, tmp, "", 0644)
				return tmp, o
			},
			target: ErrEmptyArtifact,
		},
		{
			name: "tmp is a directory",
			setup: func(t *testing.T, dir string) (string, string) {
				o := filepath.Join(dir, "a.mkv")
				write(t, o, "old", 0644)
				sub := filepath.Join(dir, "sub")
				if err := os.Mkdir(sub, 0755); err != nil {
					t.Fatal(err)
				}
				return sub, o
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tmp, original := tt.setup(t, dir)

			err := Commit(logging.Discard(), tmp, original)
			if !dterrors.IsKind(err, dterrors.KindCommit) {
				t.Fatalf("Commit() error = %v, want commit error", err)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("error %v should wrap %v", err, tt.target)
			}
			data, _ := os.ReadFile(original)
			if string(data) != "old" {
				t.Errorf("original changed to %q", data)
			}
		})
	}
}

func TestCommitMissingOriginal(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp.mkv")
	write(t, tmp, "x", 0644)

	err := Commit(logging.Discard(), tmp, filepath.Join(dir, "gone.mkv"))
	if !dterrors.IsKind(err, dterrors.KindCommit) {
		t.Fatalf("Commit() error = %v", err)
	}
	if _, err := os.Stat(tmp); err != nil {
		t.Error("tmp should be left for cleanup")
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.hevc")
	b := filepath.Join(dir, "b.mkv")
	write(t, a, "x", 0644)
	write(t, b, "y", 0644)

	failed := Cleanup(logging.Discard(), a, b, filepath.Join(dir, "never-created.log"), "")
	if failed != 0 {
		t.Errorf("Cleanup() = %d failures, want 0", failed)
	}
	for _, p := range []string{a, b} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should be removed", p)
		}
	}
}

func TestCleanupCountsFailures(t *testing.T) {
	dir := t.TempDir()
	nonEmpty := filepath.Join(dir, "full")
	if err := os.Mkdir(nonEmpty, 0755); err != nil {
		t.Fatal(err)
	}
	write(t, filepath.Join(nonEmpty, "f"), "x", 0644)

	if failed := Cleanup(nil, nonEmpty); failed != 1 {
		t.Errorf("Cleanup() = %d failures, want 1", failed)
	}
}

func TestCommitReadOnlyOriginal(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "movie.mkv")
	tmp := filepath.Join(dir, "movie_ab12cd34.mux.mkv")
	write(t, original, "old", 0444)
	write(t, tmp, "synced content", 0644)

	// tmp is already read-only when it is flushed.
	if err := Commit(logging.Discard(), tmp, original); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	data, err := os.ReadFile(original)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "synced content" {
		t.Errorf("original = %q", data)
	}
	info, _ := os.Stat(original)
	if info.Mode().Perm() != 0444 {
		t.Errorf("mode = %v, want 0444", info.Mode().Perm())
	}
}

func TestSyncDirMissing(t *testing.T) {
	if err := syncDir(filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Error("syncDir() on a missing directory should fail")
	}
}
