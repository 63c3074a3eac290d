package rotation

import (
	"fmt"
	"time"
)

// 字节单位
const (
	KiB uint64 = 1024
	MiB        = 1024 * KiB
	GiB        = 1024 * MiB
)

// Seconds 把浮点秒数转换为 time.Duration
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Days 把天数转换为 time.Duration
func Days(d float64) time.Duration {
	return time.Duration(d * float64(24*time.Hour))
}

// HumanBytes 以 B/KB/MB/GB 的整数形式展示字节数
func HumanBytes(n uint64) string {
	switch {
	case n < KiB:
		return fmt.Sprintf("%dB", n)
	case n < MiB:
		return fmt.Sprintf("%dKB", n/KiB)
	case n < GiB:
		return fmt.Sprintf("%dMB", n/MiB)
	default:
		return fmt.Sprintf("%dGB", n/GiB)
	}
}
