//go:build linux

package storage

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// birthTime 通过 statx 读取文件诞生时间，文件系统不支持时退回修改时间
func birthTime(path string, info os.FileInfo) time.Time {
	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BTIME, &stx); err != nil {
		return info.ModTime()
	}
	if stx.Mask&unix.STATX_BTIME == 0 {
		return info.ModTime()
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
}
