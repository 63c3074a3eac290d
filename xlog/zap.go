package xlog

import (
	"go.uber.org/zap"
)

// ZapProvider 把记录转发给 zap，相当于系统日志出口
// 频道作为 logger 名称，调用位置与附加信息作为字段
type ZapProvider struct {
	*ChannelSet
	logger *zap.Logger
}

// NewZapProvider 创建 zap Provider；logger 为 nil 时使用 zap.L()
func NewZapProvider(logger *zap.Logger, opts ...ProviderOption) *ZapProvider {
	if logger == nil {
		logger = zap.L()
	}
	o := applyProviderOptions(opts)
	return &ZapProvider{
		ChannelSet: NewChannelSet(o.id, o.channels...),
		logger:     logger,
	}
}

// Log 转发一条记录
func (p *ZapProvider) Log(msg LogMessage) error {
	ce := p.logger.Named(msg.Channel).Check(msg.Severity.ZapLevel(), msg.Payload)
	if ce == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 4+len(msg.Fields))
	fields = append(fields,
		zap.String("severity", msg.Severity.String()),
		zap.String("file", msg.File),
		zap.Int("line", msg.Line),
		zap.String("function", msg.Function),
	)
	for k, v := range msg.Fields {
		fields = append(fields, zap.String(k, v))
	}
	ce.Time = msg.Time
	ce.Write(fields...)
	return nil
}

// Flush 同步 zap 的缓冲
func (p *ZapProvider) Flush() error {
	return p.logger.Sync()
}
