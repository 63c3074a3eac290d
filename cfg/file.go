package cfg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce 文件连续变更的合并窗口
const DefaultDebounce = 100 * time.Millisecond

// FileSource 以本地文件为配置源
// 监控的是文件所在目录，编辑器的原子替换（写临时文件再改名）也能被捕获
type FileSource struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger
}

// FileSourceOption FileSource 的可选配置
type FileSourceOption func(*FileSource)

// WithDebounce 设置合并窗口
func WithDebounce(d time.Duration) FileSourceOption {
	return func(fs *FileSource) {
		fs.debounce = d
	}
}

// WithSourceLogger 设置诊断日志
func WithSourceLogger(logger *zap.Logger) FileSourceOption {
	return func(fs *FileSource) {
		if logger != nil {
			fs.logger = logger
		}
	}
}

// NewFileSource 创建文件配置源
func NewFileSource(path string, opts ...FileSourceOption) *FileSource {
	fs := &FileSource{path: filepath.Clean(path), debounce: DefaultDebounce, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Read 读取文件内容
func (fs *FileSource) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", fs.path, err)
	}
	return data, nil
}

// Watch 文件每次变更（合并窗口内只算一次）后发送最新内容；ctx 结束时通道关闭
func (fs *FileSource) Watch(ctx context.Context) (<-chan []byte, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(fs.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(fs.path), err)
	}

	out := make(chan []byte, 1)
	go fs.loop(ctx, watcher, out)
	return out, nil
}

func (fs *FileSource) loop(ctx context.Context, watcher *fsnotify.Watcher, out chan<- []byte) {
	defer close(out)
	defer watcher.Close()

	timer := time.NewTimer(fs.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fs.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(fs.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fs.logger.Warn("config file watcher error", zap.String("path", fs.path), zap.Error(err))
		case <-timer.C:
			data, err := os.ReadFile(fs.path)
			if err != nil {
				// 改名替换的中间状态，等待下一次 Create
				fs.logger.Debug("config file not readable", zap.String("path", fs.path), zap.Error(err))
				continue
			}
			select {
			case out <- data:
			case <-ctx.Done():
				return
			}
		}
	}
}
