package rotation

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/omeyang/logkit/storage"
)

// DefaultExt 日志文件的默认扩展名
const DefaultExt = "logs"

// Backup 备份链中的一个成员
type Backup struct {
	Path string
	Seq  int
}

// Rotator 管理一个目录下某个日志名的文件集合
// Rotator 本身不加锁，同一日志名的轮转需要由调用方串行化
type Rotator struct {
	fs     storage.Storage
	ext    string
	logger *zap.Logger
}

// RotatorOption Rotator 的可选配置
type RotatorOption func(*Rotator)

// WithExt 设置日志文件扩展名（不含点）
func WithExt(ext string) RotatorOption {
	return func(r *Rotator) {
		if ext = strings.TrimPrefix(ext, "."); ext != "" {
			r.ext = ext
		}
	}
}

// WithLogger 设置诊断日志
func WithLogger(logger *zap.Logger) RotatorOption {
	return func(r *Rotator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRotator 创建 Rotator
func NewRotator(fs storage.Storage, opts ...RotatorOption) *Rotator {
	r := &Rotator{fs: fs, ext: DefaultExt, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ext 日志文件扩展名
func (r *Rotator) Ext() string {
	return r.ext
}

// ActivePath 活动文件路径
func (r *Rotator) ActivePath(dir, name string) string {
	return filepath.Join(dir, name+"."+r.ext)
}

// BackupPath 第 seq 个备份的路径
func (r *Rotator) BackupPath(dir, name string, seq int) string {
	return r.ActivePath(dir, name) + "." + strconv.Itoa(seq)
}

// Chain 按编号升序返回现有备份
// 只有后缀为 1..9 的十进制数的文件属于备份链，其他同名前缀的文件不参与编号
func (r *Rotator) Chain(dir, name string) ([]Backup, error) {
	entries, err := r.fs.List(dir)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	prefix := filepath.Base(r.ActivePath(dir, name)) + "."
	var chain []Backup
	for _, entry := range entries {
		seq, ok := parseSeq(entry, prefix)
		if !ok {
			continue
		}
		chain = append(chain, Backup{Path: filepath.Join(dir, entry), Seq: seq})
	}
	sort.Slice(chain, func(i, j int) bool { return chain[i].Seq < chain[j].Seq })
	return chain, nil
}

func parseSeq(entry, prefix string) (int, bool) {
	suffix, ok := strings.CutPrefix(entry, prefix)
	if !ok || suffix == "" {
		return 0, false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq < 1 || seq > MaxBackupFiles {
		return 0, false
	}
	return seq, true
}

// Rotate 执行一次轮转
//
// 备份链未满时新增一个槽位并返回它的路径；已满时原地平移并返回空字符串，
// 最旧的内容被丢弃。平移从最高槽位向下进行：槽位 i+1 写入原槽位 i 的内容，
// 最后槽位 1 写入活动文件内容并清空活动文件。
// 单个文件的失败会被收集后一并返回；只有槽位 1 写入成功时才会清空活动文件。
func (r *Rotator) Rotate(dir, name string, policy Policy) (string, error) {
	if err := policy.Validate(); err != nil {
		return "", err
	}
	active := r.ActivePath(dir, name)
	content, err := r.fs.Contents(active)
	if err != nil {
		if storage.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("rotate %s: read active file: %w", active, err)
	}
	chain, err := r.Chain(dir, name)
	if err != nil {
		return "", fmt.Errorf("rotate %s: list backups: %w", active, err)
	}

	limit := policy.Cap()
	length := len(chain) + 1
	created := ""
	if len(chain) >= limit {
		length = limit
	} else {
		created = r.BackupPath(dir, name, length)
	}

	// 先读出所有要后移的内容，编号有空洞时写入目标可能覆盖尚未读取的成员
	moved := make([][]byte, length)
	readOK := make([]bool, length)
	var errs error
	for i := 0; i < length-1; i++ {
		data, err := r.fs.Contents(chain[i].Path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read backup %s: %w", chain[i].Path, err))
			continue
		}
		moved[i+1], readOK[i+1] = data, true
	}
	for slot := length; slot >= 2; slot-- {
		target := r.BackupPath(dir, name, slot)
		if !readOK[slot-1] {
			// 来源读取失败时清掉目标槽位，避免留下与上一槽位重复的旧内容
			if err := r.fs.Remove(target); err != nil && !storage.IsNotExist(err) {
				errs = multierr.Append(errs, fmt.Errorf("clear backup slot %s: %w", target, err))
			}
			continue
		}
		if err := r.fs.Create(target, moved[slot-1]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shift backup into %s: %w", target, err))
		}
	}

	front := r.BackupPath(dir, name, 1)
	if err := r.fs.Create(front, content); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("move active file into %s: %w", front, err))
		r.logger.Warn("log rotation failed", zap.String("active", active), zap.Error(errs))
		return "", errs
	}
	if err := r.fs.Create(active, nil); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("truncate %s: %w", active, err))
	}

	// 超出上限或因编号空洞留下的成员
	for _, b := range chain {
		if b.Seq <= length {
			continue
		}
		if err := r.fs.Remove(b.Path); err != nil && !storage.IsNotExist(err) {
			errs = multierr.Append(errs, fmt.Errorf("remove surplus backup %s: %w", b.Path, err))
		}
	}

	if errs != nil {
		r.logger.Warn("log rotation finished with errors", zap.String("active", active), zap.Error(errs))
	} else {
		r.logger.Info("log file rotated",
			zap.String("active", active),
			zap.Int("backups", length),
			zap.String("new_backup", created))
	}
	return created, errs
}

// DeleteAll 删除活动文件以及所有以 "<name>.<ext>." 开头的文件
// 返回删除失败的路径；目录本身无法列出时返回目录路径。重复调用是安全的
func (r *Rotator) DeleteAll(dir, name string) []string {
	base := filepath.Base(r.ActivePath(dir, name))
	entries, err := r.fs.List(dir)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil
		}
		r.logger.Warn("list log directory failed", zap.String("dir", dir), zap.Error(err))
		return []string{dir}
	}

	var failed []string
	for _, entry := range entries {
		if entry != base && !strings.HasPrefix(entry, base+".") {
			continue
		}
		p := filepath.Join(dir, entry)
		if err := r.fs.Remove(p); err != nil && !storage.IsNotExist(err) {
			r.logger.Warn("delete log file failed", zap.String("path", p), zap.Error(err))
			failed = append(failed, p)
		}
	}
	return failed
}
