//go:build !windows

package monitor

import (
	"os"
	"syscall"
)

// actualFileSize returns actual disk usage in bytes on Unix systems.
// Uses stat blocks to handle sparse files correctly.
func actualFileSize(info os.FileInfo) int64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if ok {
		// Blocks are 512 bytes on Unix systems
		return stat.Blocks * 512
	}
	// Fallback to logical size
	return info.Size()
}
