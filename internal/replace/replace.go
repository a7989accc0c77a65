// Package replace swaps a finished artifact into place and removes scratch files.
package replace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/logging"
)

// ErrEmptyArtifact is returned when the replacement has no content.
var ErrEmptyArtifact = errors.New("replacement artifact is empty")

// ErrCrossDevice is returned when tmp and original live on different
// filesystems and a rename cannot be atomic.
var ErrCrossDevice = errors.New("replacement is on a different filesystem than the original")

// Commit atomically replaces original with tmp. The original's permission
// bits and, where the platform allows, its owner are carried over. tmp is
// flushed to disk before the rename and the parent directory after it, so a
// crash never leaves a truncated file at original. On any failure before the
// rename the original is left untouched and the error is a KindCommit
// CoreError.
func Commit(log *logging.Logger, tmp, original string) error {
	info, err := os.Stat(tmp)
	if err != nil {
		return dterrors.NewCommitError(original, err)
	}
	if !info.Mode().IsRegular() {
		return dterrors.NewCommitError(original, fmt.Errorf("%s is not a regular file", tmp))
	}
	if info.Size() == 0 {
		return dterrors.NewCommitError(original, ErrEmptyArtifact)
	}

	orig, err := os.Stat(original)
	if err != nil {
		return dterrors.NewCommitError(original, err)
	}
	if err := os.Chmod(tmp, orig.Mode().Perm()); err != nil {
		return dterrors.NewCommitError(original, err)
	}
	if err := copyOwner(tmp, orig); err != nil {
		log.Debug("keeping owner of %s: %v", tmp, err)
	}
	if err := syncFile(tmp); err != nil {
		return dterrors.NewCommitError(original, err)
	}

	if err := os.Rename(tmp, original); err != nil {
		if errors.Is(err, syscall.EXDEV) {
			err = fmt.Errorf("%w: %v", ErrCrossDevice, err)
		}
		return dterrors.NewCommitError(original, err)
	}

	// The replacement is in place; a failed directory flush only weakens
	// durability of the rename itself.
	if err := syncDir(filepath.Dir(original)); err != nil {
		log.Warn("failed to sync directory of %s: %v", original, err)
	}
	return nil
}

// syncFile flushes the contents of path to stable storage.
func syncFile(path string) error {
	// Read-only is enough for fsync and works after the chmod above.
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for sync: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}

// syncDir flushes the directory entry table of dir.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	err = d.Sync()
	if cerr := d.Close(); err == nil {
		err = cerr
	}
	return err
}

// Cleanup removes every path given. Missing files are ignored; other
// failures are logged and counted, never returned.
func Cleanup(log *logging.Logger, paths ...string) int {
	failed := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove %s: %v", p, err)
			failed++
		}
	}
	return failed
}
