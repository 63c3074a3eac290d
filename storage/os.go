package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/omeyang/logkit/util"
)

const (
	defaultFileMode os.FileMode = 0o644
	defaultDirMode  os.FileMode = 0o755
)

// OS 基于本地文件系统的 Storage 实现
type OS struct {
	fileMode os.FileMode
	dirMode  os.FileMode
}

// OSOption OS 存储的可选配置
type OSOption func(*OS)

// WithFileMode 设置新建文件的权限
func WithFileMode(mode os.FileMode) OSOption {
	return func(o *OS) {
		o.fileMode = mode
	}
}

// WithDirMode 设置新建目录的权限
func WithDirMode(mode os.FileMode) OSOption {
	return func(o *OS) {
		o.dirMode = mode
	}
}

// NewOS 创建本地文件系统存储
func NewOS(opts ...OSOption) *OS {
	o := &OS{fileMode: defaultFileMode, dirMode: defaultDirMode}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Exists 判断路径是否存在
func (o *OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create 创建或替换文件
// 已存在的文件通过同目录临时文件 + rename 整体替换，新文件拥有新的创建时间；
// 替换前打开的句柄指向旧文件，调用方需要重新打开
func (o *OS) Create(path string, contents []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if len(contents) > 0 {
		if _, err := tmp.Write(contents); err != nil {
			cleanup()
			return fmt.Errorf("create %s: %w", path, err)
		}
	}
	if err := tmp.Chmod(o.fileMode); err != nil {
		cleanup()
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

// Contents 读取完整内容
func (o *OS) Contents(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// List 列出目录下的普通文件名称，按名称排序
func (o *OS) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Remove 删除文件
func (o *OS) Remove(path string) error {
	return os.Remove(path)
}

// Stat 读取大小与创建时间
func (o *OS) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Size: info.Size(), Created: birthTime(path, info)}, nil
}

// OpenAppend 以追加方式打开文件
func (o *OS) OpenAppend(path string) (AppendHandle, error) {
	f, err := util.SafeFileOperation(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, o.fileMode, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// MkdirAll 确保目录存在
func (o *OS) MkdirAll(dir string) error {
	return util.EnsureDirExists(dir, o.dirMode)
}
