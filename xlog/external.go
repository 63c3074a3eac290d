package xlog

// Listener 只关心级别与内容的外部监听者，例如宿主应用接管 SDK 的日志
type Listener interface {
	Log(severity Severity, message string)
}

// ListenerFunc 函数形式的 Listener
type ListenerFunc func(severity Severity, message string)

// Log 实现 Listener
func (f ListenerFunc) Log(severity Severity, message string) {
	f(severity, message)
}

// ExternalProvider 把记录转交给 Listener
type ExternalProvider struct {
	*ChannelSet
	listener Listener
}

// NewExternalProvider 创建外部监听 Provider
func NewExternalProvider(listener Listener, opts ...ProviderOption) *ExternalProvider {
	o := applyProviderOptions(opts)
	return &ExternalProvider{
		ChannelSet: NewChannelSet(o.id, o.channels...),
		listener:   listener,
	}
}

// Log 转交内容
func (p *ExternalProvider) Log(msg LogMessage) error {
	if p.listener != nil {
		p.listener.Log(msg.Severity, msg.Payload)
	}
	return nil
}
