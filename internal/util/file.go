package util

import (
	"os"
	"path/filepath"
	"strings"
)

// VideoExtensions maps supported video file extensions to their container tag.
var VideoExtensions = map[string]string{
	".mkv":  "mkv",
	".mk3d": "mkv",
	".mp4":  "mp4",
	".m4v":  "mp4",
	".mov":  "mov",
	".ts":   "mpegts",
	".m2ts": "mpegts",
	".avi":  "avi",
	".webm": "webm",
}

// MinFreeSpaceFactor is how many times the source size should be free in the
// scratch directory before a conversion starts (elementary stream + new container).
const MinFreeSpaceFactor = 2

// ScratchLabelPrefix starts the label of every intermediate artifact, so a
// crash never leaves behind a file discovery would treat as library content.
const ScratchLabelPrefix = "dovetail-"

// IsScratchFile reports whether path names an intermediate artifact.
func IsScratchFile(path string) bool {
	return strings.Contains(filepath.Base(path), "."+ScratchLabelPrefix)
}

// ContainerForPath returns the container tag implied by the file extension,
// or "" if the extension is not a known video container.
func ContainerForPath(path string) string {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// GetFilename returns the filename from a path.
func GetFilename(path string) string {
	return filepath.Base(path)
}

// GetFileStem returns the filename without extension.
func GetFileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// EnsureDirectory creates a directory if it doesn't exist.
func EnsureDirectory(path string) error {
	return os.MkdirAll(path, 0755)
}

// CheckDiskSpace reports whether dir has at least need bytes available.
// When the free space cannot be determined it returns true and logs nothing.
func CheckDiskSpace(dir string, need uint64, logf func(format string, args ...any)) bool {
	avail := GetAvailableSpace(dir)
	if avail == 0 {
		return true
	}
	if avail < need {
		if logf != nil {
			logf("Low disk space in %s: %s available, %s needed", dir, FormatBytes(avail), FormatBytes(need))
		}
		return false
	}
	return true
}
