package xlog

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Severity 日志级别，数值越大越严重
type Severity int

// 日志级别常量
const (
	Verbose Severity = iota + 1 // 最详细的跟踪信息
	Debug                       // 调试级别
	Info                        // 信息级别
	Warning                     // 告警级别
	Error                       // 错误级别
)

var severityNames = map[Severity]string{
	Verbose: "Verbose",
	Debug:   "Debug",
	Info:    "Info",
	Warning: "Warning",
	Error:   "Error",
}

var severityEmoji = map[Severity]string{
	Verbose: "◽️",
	Debug:   "◾️",
	Info:    "🔷",
	Warning: "🔶",
	Error:   "❌",
}

// Valid 是否为已定义的级别
func (s Severity) Valid() bool {
	return s >= Verbose && s <= Error
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Emoji 级别对应的图标
func (s Severity) Emoji() string {
	return severityEmoji[s]
}

// Pretty 图标加名称，例如 "🔷 Info"
func (s Severity) Pretty() string {
	return s.Emoji() + " " + s.String()
}

// ZapLevel 映射到 zap 的级别；Verbose 与 Debug 都对应 Debug
func (s Severity) ZapLevel() zapcore.Level {
	switch s {
	case Verbose, Debug:
		return zapcore.DebugLevel
	case Info:
		return zapcore.InfoLevel
	case Warning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// ParseSeverity 解析级别名称，不区分大小写，接受 warn 作为 warning 的别名
func ParseSeverity(text string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "verbose", "trace":
		return Verbose, nil
	case "debug":
		return Debug, nil
	case "info":
		return Info, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	default:
		return 0, fmt.Errorf("unknown log severity: %q", text)
	}
}

// MarshalText 实现 encoding.TextMarshaler，配置文件中以小写名称出现
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid log severity: %d", int(s))
	}
	return []byte(strings.ToLower(s.String())), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
