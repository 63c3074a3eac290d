package xlog

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultChannel 未指定频道时使用的频道
const DefaultChannel = "logkit"

// LogMessage 一条日志记录，由 Registry 在通过过滤后生成并分发给所有 Provider
type LogMessage struct {
	Payload  string
	Severity Severity
	Channel  string
	Time     time.Time

	// 调用位置
	File     string
	Line     int
	Function string

	Process string
	PID     int

	// Fields 来自 ContextExtractor 的附加信息，例如 trace_id
	Fields map[string]string
}

var (
	processName = filepath.Base(os.Args[0])
	processID   = os.Getpid()
)
