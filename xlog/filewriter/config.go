package filewriter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omeyang/logkit/metrics"
	"github.com/omeyang/logkit/storage"
	"github.com/omeyang/logkit/util"
	"github.com/omeyang/logkit/xlog/rotation"
)

// Mode 写入模式
type Mode int

const (
	// Standard 每次调用追加一行
	Standard Mode = iota
	// Brief 连续相同的消息折叠为一行并附带重复次数
	Brief
)

func (m Mode) String() string {
	switch m {
	case Standard:
		return "standard"
	case Brief:
		return "brief"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DefaultQueueSize 请求队列的默认容量
const DefaultQueueSize = 64

// ErrInvalidConfig 写入器配置非法
var ErrInvalidConfig = errors.New("invalid file writer config")

// Config 文件写入器配置
type Config struct {
	// Dir 日志目录，由调用方解析好
	Dir string
	// Name 日志名，活动文件为 <Dir>/<Name>.<Ext>
	Name string
	// Ext 扩展名，默认 rotation.DefaultExt
	Ext    string
	Policy rotation.Policy
	Mode   Mode

	// Storage 默认 storage.NewOS()
	Storage storage.Storage
	// Retry 打开活动文件的重试策略，默认不重试
	Retry   util.RetryPolicy
	Logger  *zap.Logger
	Metrics *metrics.WriterMetrics

	QueueSize int
	Clock     func() time.Time
}

func (c *Config) normalize() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.Name, `/\`) {
		return fmt.Errorf("%w: name %q contains a path separator", ErrInvalidConfig, c.Name)
	}
	if c.Dir == "" {
		return fmt.Errorf("%w: dir is required", ErrInvalidConfig)
	}
	if c.Mode != Standard && c.Mode != Brief {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, int(c.Mode))
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.Storage == nil {
		c.Storage = storage.NewOS()
	}
	if c.Retry == nil {
		c.Retry = &util.NoRetryPolicy{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return nil
}
