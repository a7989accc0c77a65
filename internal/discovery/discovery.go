// Package discovery walks library roots for video files.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/util"
)

// DiscoveryLogger defines the interface for discovery logging.
type DiscoveryLogger interface {
	Info(format string, args ...any)
	Debug(format string, args ...any)
}

// DiscoveryResult contains the results of file discovery with metadata.
type DiscoveryResult struct {
	Files        []string
	SkippedCount int
	Errors       []error
}

// FindVideoFiles returns every video file under roots, recursively.
// Hidden entries and dovetail scratch artifacts are ignored. Files are
// sorted case-insensitively by full path and appear once even when roots
// overlap.
func FindVideoFiles(roots ...string) ([]string, error) {
	res, err := FindVideoFilesWithLogging(nil, roots...)
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}

// FindVideoFilesWithLogging finds video files and logs discovery progress.
// Unreadable subdirectories are recorded in Errors and skipped.
func FindVideoFilesWithLogging(logger DiscoveryLogger, roots ...string) (*DiscoveryResult, error) {
	if len(roots) == 0 {
		return nil, dterrors.NewPathError("no library roots given")
	}

	result := &DiscoveryResult{}
	seen := make(map[string]bool)

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, dterrors.NewPathError(fmt.Sprintf("directory does not exist: %s", root))
		}
		if !info.IsDir() {
			return nil, dterrors.NewPathError(fmt.Sprintf("%s is not a directory", root))
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				result.Errors = append(result.Errors, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			// Skip hidden entries
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			if util.ContainerForPath(path) == "" || util.IsScratchFile(path) {
				result.SkippedCount++
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			if !seen[abs] {
				seen[abs] = true
				result.Files = append(result.Files, abs)
			}
			return nil
		})
		if err != nil {
			return nil, dterrors.NewIOError(fmt.Sprintf("cannot walk %s", root), err)
		}
	}

	if len(result.Files) == 0 {
		return nil, dterrors.NewNoFilesFoundError(strings.Join(roots, ", "))
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return strings.ToLower(result.Files[i]) < strings.ToLower(result.Files[j])
	})

	if logger != nil {
		logDiscoveredFiles(result.Files, logger)
	}

	return result, nil
}

// logDiscoveredFiles logs the first 5 discovered files plus a count.
func logDiscoveredFiles(files []string, logger DiscoveryLogger) {
	if len(files) == 0 {
		logger.Info("No video files found")
		return
	}

	logger.Info("Found %d video file(s)", len(files))

	maxToLog := min(5, len(files))

	for i := 0; i < maxToLog; i++ {
		logger.Debug("  %s", files[i])
	}

	if len(files) > 5 {
		logger.Debug("  ... and %d more", len(files)-5)
	}
}
