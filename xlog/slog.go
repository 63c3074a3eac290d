package xlog

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"strings"
)

// ChannelAttr 记录或 With 中以该键出现的属性作为频道而不是内容
const ChannelAttr = "channel"

// SlogHandler 把 log/slog 的记录转入 Registry
type SlogHandler struct {
	reg     *Registry
	channel string
	prefix  string // 已格式化的 With 属性
	groups  []string
}

// NewSlogHandler 创建 slog.Handler；channel 为空时使用 Registry 的默认频道
func NewSlogHandler(reg *Registry, channel string) *SlogHandler {
	return &SlogHandler{reg: reg, channel: channel}
}

// NewSlogLogger 便捷方法
func NewSlogLogger(reg *Registry, channel string) *slog.Logger {
	return slog.New(NewSlogHandler(reg, channel))
}

// SeverityFromSlog slog 级别映射：低于 Debug 为 Verbose，高于 Warn 为 Error
func SeverityFromSlog(level slog.Level) Severity {
	switch {
	case level < slog.LevelDebug:
		return Verbose
	case level < slog.LevelInfo:
		return Debug
	case level < slog.LevelWarn:
		return Info
	case level < slog.LevelError:
		return Warning
	default:
		return Error
	}
}

// Enabled 实现 slog.Handler
func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.reg.Loggable(SeverityFromSlog(level))
}

// Handle 实现 slog.Handler
func (h *SlogHandler) Handle(ctx context.Context, r slog.Record) error {
	s := SeverityFromSlog(r.Level)
	if !h.reg.admit(s) {
		return nil
	}
	msg := LogMessage{Severity: s, Channel: h.channel}
	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		msg.File = shortFile(frame.File)
		msg.Line = frame.Line
		msg.Function = shortFunction(frame.Function)
	}

	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		if len(h.groups) == 0 && a.Key == ChannelAttr {
			msg.Channel = a.Value.String()
			return true
		}
		appendAttr(&b, h.groups, a)
		return true
	})
	payload := b.String()
	msg.Time = r.Time
	h.reg.publish(ctx, msg, func() string { return payload })
	return nil
}

// WithAttrs 实现 slog.Handler
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		if len(h.groups) == 0 && a.Key == ChannelAttr {
			next.channel = a.Value.String()
			continue
		}
		appendAttr(&b, h.groups, a)
	}
	next.prefix = b.String()
	return &next
}

// WithGroup 实现 slog.Handler
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(slices.Clip(h.groups), name)
	return &next
}

// appendAttr 以 " group.key=value" 的形式追加属性
func appendAttr(b *strings.Builder, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		if a.Key != "" {
			groups = append(slices.Clip(groups), a.Key)
		}
		for _, ga := range attrs {
			appendAttr(b, groups, ga)
		}
		return
	}
	b.WriteByte(' ')
	for _, g := range groups {
		b.WriteString(g)
		b.WriteByte('.')
	}
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}
