package util

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"
)

// SystemInfo contains information about the host system.
type SystemInfo struct {
	Hostname    string
	NumCPU      int
	OS          string
	Arch        string
	TotalMemory uint64 // 0 if unknown
}

// GetSystemInfo collects system information.
func GetSystemInfo() SystemInfo {
	hostname, _ := os.Hostname()
	info := SystemInfo{
		Hostname: hostname,
		NumCPU:   runtime.NumCPU(),
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	}
	return info
}
