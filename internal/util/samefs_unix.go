//go:build unix

package util

import "golang.org/x/sys/unix"

// SameFilesystem reports whether a and b live on the same device, which is
// what a rename between them needs.
func SameFilesystem(a, b string) bool {
	var sa, sb unix.Stat_t
	if err := unix.Stat(a, &sa); err != nil {
		return false
	}
	if err := unix.Stat(b, &sb); err != nil {
		return false
	}
	return sa.Dev == sb.Dev
}
