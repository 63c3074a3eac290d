package xlog

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Provider 日志的落地端
// Log 只会收到已经通过级别过滤的记录，频道过滤由 Provider 自己根据 Accepts 完成
type Provider interface {
	// ID 标识，用于注销
	ID() string
	// Channels 订阅的频道，空表示订阅全部
	Channels() []string
	// AddChannel 订阅频道，重复添加无副作用
	AddChannel(channel string)
	// RemoveChannel 取消订阅频道
	RemoveChannel(channel string)
	// Accepts 是否接收该频道的记录
	Accepts(channel string) bool
	// Log 处理一条记录；返回的错误由 Registry 上报，不会影响其他 Provider
	Log(msg LogMessage) error
}

// Flusher 持有缓冲内容的 Provider 实现它
type Flusher interface {
	Flush() error
}

// ChannelSet Provider 的频道订阅集合，可嵌入自定义 Provider
type ChannelSet struct {
	mu       sync.RWMutex
	id       string
	channels map[string]struct{}
}

// NewChannelSet 创建订阅集合；id 为空时生成一个 UUID
func NewChannelSet(id string, channels ...string) *ChannelSet {
	if id == "" {
		id = uuid.NewString()
	}
	set := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		set[ch] = struct{}{}
	}
	return &ChannelSet{id: id, channels: set}
}

// ID 标识
func (c *ChannelSet) ID() string {
	return c.id
}

// Channels 已排序的订阅频道
func (c *ChannelSet) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

// AddChannel 订阅频道
func (c *ChannelSet) AddChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels == nil {
		c.channels = make(map[string]struct{})
	}
	c.channels[channel] = struct{}{}
}

// RemoveChannel 取消订阅频道
func (c *ChannelSet) RemoveChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

// Accepts 空集合接收全部频道
func (c *ChannelSet) Accepts(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.channels) == 0 {
		return true
	}
	_, ok := c.channels[channel]
	return ok
}

// ProviderOption 内置 Provider 的通用配置
type ProviderOption func(*providerOptions)

type providerOptions struct {
	id       string
	channels []string
	format   Format
	layout   string
}

func defaultProviderOptions() providerOptions {
	return providerOptions{format: FormatStandard, layout: DefaultDateLayout}
}

func applyProviderOptions(opts []ProviderOption) providerOptions {
	o := defaultProviderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithID 指定 Provider 标识
func WithID(id string) ProviderOption {
	return func(o *providerOptions) {
		o.id = id
	}
}

// WithChannels 指定初始订阅频道；不指定时订阅全部
func WithChannels(channels ...string) ProviderOption {
	return func(o *providerOptions) {
		o.channels = append(o.channels, channels...)
	}
}

// WithFormat 指定日志行的组成部分
func WithFormat(format Format) ProviderOption {
	return func(o *providerOptions) {
		if len(format) > 0 {
			o.format = format
		}
	}
}

// WithDateLayout 指定时间格式
func WithDateLayout(layout string) ProviderOption {
	return func(o *providerOptions) {
		if layout != "" {
			o.layout = layout
		}
	}
}
