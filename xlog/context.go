package xlog

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// ContextKey 附加信息在 context 中的键
type ContextKey string

// 预定义的键
const (
	RequestIDKey ContextKey = "request_id"
	UserIDKey    ContextKey = "user_id"
	SessionIDKey ContextKey = "session_id"
)

// ContextExtractor 从上下文中提取附加到日志记录上的信息
type ContextExtractor interface {
	Extract(ctx context.Context) map[string]string
}

// DefaultContextExtractor 提取 trace/span id 与若干字符串键
type DefaultContextExtractor struct {
	keys []ContextKey
}

// NewDefaultContextExtractor 创建提取器，除预定义键外还会提取 additionalKeys
func NewDefaultContextExtractor(additionalKeys ...ContextKey) *DefaultContextExtractor {
	keys := []ContextKey{RequestIDKey, UserIDKey, SessionIDKey}
	return &DefaultContextExtractor{keys: append(keys, additionalKeys...)}
}

// Extract 提取信息，没有任何信息时返回 nil
func (e *DefaultContextExtractor) Extract(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	var info map[string]string
	set := func(k, v string) {
		if info == nil {
			info = make(map[string]string)
		}
		info[k] = v
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		set("trace_id", sc.TraceID().String())
		set("span_id", sc.SpanID().String())
	}
	for _, key := range e.keys {
		if value, ok := ctx.Value(key).(string); ok {
			set(string(key), value)
		}
	}
	return info
}
