package storage

import (
	"errors"
	"io"
	"io/fs"
	"time"
)

// ErrNotExist 文件不存在；各实现返回的错误都可以用 errors.Is(err, ErrNotExist) 判断
var ErrNotExist = fs.ErrNotExist

// FileInfo 文件的观测属性，调用方不应缓存
type FileInfo struct {
	// Size 当前字节数
	Size int64
	// Created 文件创建时间，轮转策略按它计算文件年龄
	Created time.Time
}

// AppendHandle 活动日志文件的追加句柄
type AppendHandle interface {
	io.Writer
	io.Closer
}

// Storage 文件系统能力接口
// 轮转与写入逻辑只依赖这个接口，不直接操作 os 包，便于用内存实现做确定性测试
type Storage interface {
	// Exists 判断路径是否存在
	Exists(path string) bool
	// Create 创建或覆盖文件；contents 为 nil 时得到空文件
	// 覆盖时内容被整体替换，创建时间重置
	Create(path string, contents []byte) error
	// Contents 读取完整内容
	Contents(path string) ([]byte, error)
	// List 列出目录下的条目名称（不含目录前缀）
	List(dir string) ([]string, error)
	// Remove 删除文件
	Remove(path string) error
	// Stat 读取大小与创建时间
	Stat(path string) (FileInfo, error)
	// OpenAppend 以追加方式打开文件，不存在时创建
	OpenAppend(path string) (AppendHandle, error)
	// MkdirAll 确保目录存在
	MkdirAll(dir string) error
}

// IsNotExist 判断错误是否表示文件不存在
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
