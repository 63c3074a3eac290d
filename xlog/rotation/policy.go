package rotation

import (
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/logkit/storage"
)

// MaxBackupFiles 备份链的编号上限
const MaxBackupFiles = 9

// ErrInvalidPolicy 轮转策略参数非法
var ErrInvalidPolicy = errors.New("invalid rotation policy")

// Policy 轮转策略，创建后不可修改
type Policy struct {
	// MaxSize 活动文件的最大字节数，0 表示不限
	MaxSize uint64
	// MaxAge 活动文件的最大年龄，0 表示不限
	MaxAge time.Duration
	// MaxFiles 最多保留的备份数，取值 [0,9]，0 表示不限（仍受 9 个编号的约束）
	MaxFiles int
}

var (
	// None 不做任何限制
	None = Policy{}
	// Standard 默认策略：1MiB，不限年龄，保留 2 个备份
	Standard = Policy{MaxSize: 1 * MiB, MaxFiles: 2}
)

// NewPolicy 创建并校验轮转策略
func NewPolicy(maxSize uint64, maxAge time.Duration, maxFiles int) (Policy, error) {
	p := Policy{MaxSize: maxSize, MaxAge: maxAge, MaxFiles: maxFiles}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate 校验参数
func (p Policy) Validate() error {
	if p.MaxFiles < 0 || p.MaxFiles > MaxBackupFiles {
		return fmt.Errorf("%w: max files %d out of range [0,%d]", ErrInvalidPolicy, p.MaxFiles, MaxBackupFiles)
	}
	if p.MaxAge < 0 {
		return fmt.Errorf("%w: negative max age %s", ErrInvalidPolicy, p.MaxAge)
	}
	return nil
}

// IsUnlimited 大小与年龄都不限时永远不会触发轮转
func (p Policy) IsUnlimited() bool {
	return p.MaxSize == 0 && p.MaxAge == 0
}

// Cap 备份链的实际长度上限
func (p Policy) Cap() int {
	if p.MaxFiles == 0 {
		return MaxBackupFiles
	}
	return p.MaxFiles
}

// Check 纯判断：info 描述的文件再写入 pending 字节后是否仍满足策略
// 返回 true 表示可以直接追加，false 表示需要先轮转；备份数量不参与判断
func (p Policy) Check(info storage.FileInfo, pending int, now time.Time) bool {
	if p.MaxSize != 0 && uint64(info.Size)+uint64(pending) >= p.MaxSize {
		return false
	}
	if p.MaxAge != 0 && now.Sub(info.Created) >= p.MaxAge {
		return false
	}
	return true
}

// Fits 读取 path 的状态并判断是否可以直接追加
// 文件不存在视为满足（首次写入会创建它）；其他读取错误视为不满足，优先保证数据安全
func (p Policy) Fits(fs storage.Storage, path string, pending int, now time.Time) bool {
	if p.IsUnlimited() {
		return true
	}
	info, err := fs.Stat(path)
	if err != nil {
		return storage.IsNotExist(err)
	}
	return p.Check(info, pending, now)
}

func (p Policy) String() string {
	size, age := "unlimited", "unlimited"
	if p.MaxSize != 0 {
		size = HumanBytes(p.MaxSize)
	}
	if p.MaxAge != 0 {
		age = p.MaxAge.String()
	}
	return fmt.Sprintf("size=%s age=%s files=%d", size, age, p.MaxFiles)
}
