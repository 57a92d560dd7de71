package utils

import (
	"fmt"
	"syscall"
)

// DiskSpaceInfo contains information about disk space
type DiskSpaceInfo struct {
	TotalBytes     uint64
	FreeBytes      uint64
	AvailableBytes uint64
	UsedBytes      uint64
	UsedPercent    float64
}

// GetDiskSpace returns disk space information for a given path
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk space: %w", err)
	}

	totalBytes := stat.Blocks * uint64(stat.Bsize)
	freeBytes := stat.Bfree * uint64(stat.Bsize)
	info := &DiskSpaceInfo{
		TotalBytes:     totalBytes,
		FreeBytes:      freeBytes,
		AvailableBytes: stat.Bavail * uint64(stat.Bsize), // available to non-root users
		UsedBytes:      totalBytes - freeBytes,
	}
	if totalBytes > 0 {
		info.UsedPercent = float64(info.UsedBytes) / float64(totalBytes) * 100
	}

	return info, nil
}

// HasRoomFor reports whether an upload of size bytes fits in the available space at path.
func HasRoomFor(path string, size int64) (bool, error) {
	info, err := GetDiskSpace(path)
	if err != nil {
		return false, err
	}
	return size >= 0 && uint64(size) <= info.AvailableBytes, nil
}

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
