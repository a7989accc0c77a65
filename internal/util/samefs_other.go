//go:build !unix

package util

// SameFilesystem cannot be determined on this platform; callers fall back to
// attempting the rename.
func SameFilesystem(string, string) bool {
	return true
}
