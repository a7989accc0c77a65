package util

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// suffixLen is the number of random hex characters appended to scratch names.
const suffixLen = 8

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// EnsureDirectoryWritable checks that path is an existing directory we can create files in.
func EnsureDirectoryWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("directory %s is not accessible: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	probe, err := os.CreateTemp(path, ".dovetail_write_test_*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", path, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// StaleScratchAge is how old an intermediate artifact must be before a
// later run treats it as abandoned.
const StaleScratchAge = 24 * time.Hour

// CleanupStaleScratch removes intermediate artifacts in dir whose
// modification time is older than maxAge. A zero maxAge removes all of
// them. A missing dir is not an error.
func CleanupStaleScratch(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsScratchFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if maxAge > 0 && info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// SanitizeName turns an arbitrary item identity into a file-name-safe token.
func SanitizeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "item"
	}
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}

// Naming produces collision-free scratch and log names for one invocation.
// All names share the invocation's random suffix.
type Naming struct {
	base   string
	suffix string
}

// NewNaming creates a Naming for an item identity with a fresh random suffix.
func NewNaming(identity string) (Naming, error) {
	suffix, err := generateRandomString(suffixLen)
	if err != nil {
		return Naming{}, err
	}
	return Naming{base: SanitizeName(identity), suffix: suffix}, nil
}

// Token returns "<identity>_<suffix>".
func (n Naming) Token() string {
	return n.base + "_" + n.suffix
}

// Artifact returns "<dir>/<identity>_<suffix>.<label>.<ext>".
func (n Naming) Artifact(dir, label, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.%s", n.Token(), label, strings.TrimPrefix(ext, ".")))
}

// Log returns the diagnostic log path for a stage.
func (n Naming) Log(dir, stage string) string {
	return n.Artifact(dir, SanitizeName(stage), "log")
}

// generateRandomString returns n random lowercase hex characters (n <= 32).
func generateRandomString(n int) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate random name: %w", err)
	}
	hex := strings.ReplaceAll(id.String(), "-", "")
	if n > len(hex) {
		n = len(hex)
	}
	return hex[:n], nil
}
