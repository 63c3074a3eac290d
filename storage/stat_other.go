//go:build !linux && !darwin

package storage

import (
	"os"
	"time"
)

// birthTime 其他平台没有可移植的诞生时间，使用修改时间
func birthTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
