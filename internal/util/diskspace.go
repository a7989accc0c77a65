package util

import "github.com/shirou/gopsutil/v4/disk"

// GetAvailableSpace returns the bytes available to unprivileged users on the
// filesystem holding path, or 0 if it cannot be determined.
func GetAvailableSpace(path string) uint64 {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0
	}
	return usage.Free
}
