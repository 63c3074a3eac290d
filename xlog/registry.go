package xlog

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/logkit/metrics/sample"
)

// ErrorHandler 接收 Provider 返回的错误；日志调用方不会感知这些错误
type ErrorHandler func(providerID string, err error)

// Registry 日志分发中心：持有 Provider 列表，按级别、开关、采样过滤后分发记录
// 由应用的组合根创建并传递，测试中可以创建互不影响的实例
type Registry struct {
	mu        sync.RWMutex
	providers []Provider

	minSeverity atomic.Int32
	enabled     atomic.Bool
	debug       atomic.Bool
	failures    atomic.Uint64

	channel   string
	sampler   sample.Sampler
	extractor ContextExtractor
	onError   ErrorHandler
	clock     func() time.Time
	logger    *zap.Logger
}

// RegistryOption Registry 的可选配置
type RegistryOption func(*Registry)

// WithMinSeverity 设置最低级别，默认 Debug
func WithMinSeverity(s Severity) RegistryOption {
	return func(r *Registry) {
		if s.Valid() {
			r.minSeverity.Store(int32(s))
		}
	}
}

// WithDefaultChannel 设置默认频道
func WithDefaultChannel(channel string) RegistryOption {
	return func(r *Registry) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// WithSampler 对 Verbose 与 Debug 级别的记录采样
func WithSampler(s sample.Sampler) RegistryOption {
	return func(r *Registry) {
		r.sampler = s
	}
}

// WithContextExtractor 设置上下文提取器，nil 表示不提取
func WithContextExtractor(e ContextExtractor) RegistryOption {
	return func(r *Registry) {
		r.extractor = e
	}
}

// WithErrorHandler 设置 Provider 错误回调
func WithErrorHandler(h ErrorHandler) RegistryOption {
	return func(r *Registry) {
		r.onError = h
	}
}

// WithDebug 打开 IfDebug 系列调用
func WithDebug(debug bool) RegistryOption {
	return func(r *Registry) {
		r.debug.Store(debug)
	}
}

// WithClock 设置记录时间的来源
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithDiagnostics 设置 Registry 自身的诊断日志；未设置 ErrorHandler 时 Provider 错误记录在这里
func WithDiagnostics(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry 创建 Registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		channel:   DefaultChannel,
		extractor: NewDefaultContextExtractor(),
		clock:     time.Now,
		logger:    zap.NewNop(),
	}
	r.minSeverity.Store(int32(Debug))
	r.enabled.Store(true)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ---- Provider 生命周期 ----

// Register 添加 Provider
func (r *Registry) Register(providers ...Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range providers {
		if p != nil {
			r.providers = append(r.providers, p)
		}
	}
}

// Unregister 移除第一个标识与订阅频道都相同的 Provider，返回是否找到
func (r *Registry) Unregister(p Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	channels := p.Channels()
	for i, item := range r.providers {
		if item.ID() == p.ID() && slices.Equal(item.Channels(), channels) {
			r.providers = slices.Delete(r.providers, i, i+1)
			return true
		}
	}
	return false
}

// UnregisterID 移除所有标识为 id 的 Provider，返回移除的数量
func (r *Registry) UnregisterID(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.providers)
	r.providers = slices.DeleteFunc(r.providers, func(p Provider) bool { return p.ID() == id })
	return before - len(r.providers)
}

// Empty 移除全部 Provider，不会关闭它们
func (r *Registry) Empty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = nil
}

// Providers 当前 Provider 的快照
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.providers)
}

// Silence 所有 Provider 取消订阅 channel
// 注意：订阅集合为空的 Provider 接收全部频道，取消最后一个订阅会让它重新接收全部
func (r *Registry) Silence(channel string) {
	for _, p := range r.Providers() {
		p.RemoveChannel(channel)
	}
}

// Add 所有 Provider 订阅 channel
func (r *Registry) Add(channel string) {
	for _, p := range r.Providers() {
		p.AddChannel(channel)
	}
}

// ---- 过滤 ----

// SetMinSeverity 设置最低级别
func (r *Registry) SetMinSeverity(s Severity) error {
	if !s.Valid() {
		return fmt.Errorf("invalid log severity: %d", int(s))
	}
	r.minSeverity.Store(int32(s))
	return nil
}

// MinSeverity 当前最低级别
func (r *Registry) MinSeverity() Severity {
	return Severity(r.minSeverity.Load())
}

// SetEnabled 打开或关闭全部日志
func (r *Registry) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

// Enabled 是否打开
func (r *Registry) Enabled() bool {
	return r.enabled.Load()
}

// SetDebug 打开或关闭 IfDebug 系列调用
func (r *Registry) SetDebug(debug bool) {
	r.debug.Store(debug)
}

// Loggable 该级别的记录是否会被分发
func (r *Registry) Loggable(s Severity) bool {
	return r.enabled.Load() && s >= r.MinSeverity()
}

// Failures Provider 返回错误的累计次数
func (r *Registry) Failures() uint64 {
	return r.failures.Load()
}

// ---- 关闭 ----

// Flush 并发刷新所有实现了 Flusher 的 Provider
func (r *Registry) Flush() error {
	return r.fanOut(func(p Provider) error {
		if f, ok := p.(Flusher); ok {
			return f.Flush()
		}
		return nil
	})
}

// Close 刷新并关闭所有实现了 io.Closer 的 Provider，Provider 列表保持不变
func (r *Registry) Close() error {
	flushErr := r.Flush()
	return multierr.Append(flushErr, r.fanOut(func(p Provider) error {
		if c, ok := p.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}))
}

func (r *Registry) fanOut(fn func(Provider) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, p := range r.Providers() {
		g.Go(func() error {
			if err := fn(p); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("provider %s: %w", p.ID(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// ---- 记录 ----

// Channel 返回绑定到 channel 的 Logger
func (r *Registry) Channel(channel string) Logger {
	return Logger{reg: r, channel: channel}
}

// WithContext 返回携带 ctx 的 Logger，ctx 中的信息由 ContextExtractor 提取
func (r *Registry) WithContext(ctx context.Context) Logger {
	return Logger{reg: r, ctx: ctx}
}

func (r *Registry) root() Logger {
	return Logger{reg: r}
}

// Log 以指定级别记录
func (r *Registry) Log(s Severity, args ...any) { r.root().output(s, 2, sprint(args)) }

// Logf 以指定级别格式化记录，格式化在通过过滤后才执行
func (r *Registry) Logf(s Severity, format string, args ...any) {
	r.root().output(s, 2, sprintf(format, args))
}

// Verbose 记录 Verbose 级别
func (r *Registry) Verbose(args ...any) { r.root().output(Verbose, 2, sprint(args)) }

// Debug 记录 Debug 级别
func (r *Registry) Debug(args ...any) { r.root().output(Debug, 2, sprint(args)) }

// Info 记录 Info 级别
func (r *Registry) Info(args ...any) { r.root().output(Info, 2, sprint(args)) }

// Warning 记录 Warning 级别
func (r *Registry) Warning(args ...any) { r.root().output(Warning, 2, sprint(args)) }

// Error 记录 Error 级别
func (r *Registry) Error(args ...any) { r.root().output(Error, 2, sprint(args)) }

// IfDebug 仅在调试开关打开时记录
func (r *Registry) IfDebug(s Severity, args ...any) {
	if r.debug.Load() {
		r.root().output(s, 2, sprint(args))
	}
}

// Logger 绑定了频道与上下文的记录入口，值类型，可以随意复制
type Logger struct {
	reg     *Registry
	channel string
	ctx     context.Context
}

// Channel 返回绑定到 channel 的副本
func (l Logger) Channel(channel string) Logger {
	l.channel = channel
	return l
}

// WithContext 返回携带 ctx 的副本
func (l Logger) WithContext(ctx context.Context) Logger {
	l.ctx = ctx
	return l
}

// Log 以指定级别记录
func (l Logger) Log(s Severity, args ...any) { l.output(s, 2, sprint(args)) }

// Logf 以指定级别格式化记录
func (l Logger) Logf(s Severity, format string, args ...any) { l.output(s, 2, sprintf(format, args)) }

// Verbose 记录 Verbose 级别
func (l Logger) Verbose(args ...any) { l.output(Verbose, 2, sprint(args)) }

// Debug 记录 Debug 级别
func (l Logger) Debug(args ...any) { l.output(Debug, 2, sprint(args)) }

// Info 记录 Info 级别
func (l Logger) Info(args ...any) { l.output(Info, 2, sprint(args)) }

// Warning 记录 Warning 级别
func (l Logger) Warning(args ...any) { l.output(Warning, 2, sprint(args)) }

// Error 记录 Error 级别
func (l Logger) Error(args ...any) { l.output(Error, 2, sprint(args)) }

// IfDebug 仅在调试开关打开时记录
func (l Logger) IfDebug(s Severity, args ...any) {
	if l.reg.debug.Load() {
		l.output(s, 2, sprint(args))
	}
}

// output 过滤并分发；skip 为调用方相对 output 的栈深度
func (l Logger) output(s Severity, skip int, payload func() string) {
	r := l.reg
	if !r.admit(s) {
		return
	}
	msg := LogMessage{Severity: s, Channel: l.channel}
	if pc, file, line, ok := runtime.Caller(skip); ok {
		msg.File = shortFile(file)
		msg.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			msg.Function = shortFunction(fn.Name())
		}
	}
	r.publish(l.ctx, msg, payload)
}

// admit 级别、开关与采样过滤
func (r *Registry) admit(s Severity) bool {
	if !r.Loggable(s) {
		return false
	}
	if s <= Debug && r.sampler != nil && !r.sampler.Sample() {
		return false
	}
	return true
}

// publish 补全记录并分发给订阅了该频道的 Provider
func (r *Registry) publish(ctx context.Context, msg LogMessage, payload func() string) {
	providers := r.Providers()
	if len(providers) == 0 {
		return
	}
	if msg.Channel == "" {
		msg.Channel = r.channel
	}
	msg.Payload = payload()
	if msg.Time.IsZero() {
		msg.Time = r.clock()
	}
	msg.Process = processName
	msg.PID = processID
	if ctx != nil && r.extractor != nil {
		msg.Fields = r.extractor.Extract(ctx)
	}

	for _, p := range providers {
		if !p.Accepts(msg.Channel) {
			continue
		}
		if err := p.Log(msg); err != nil {
			r.failures.Add(1)
			if r.onError != nil {
				r.onError(p.ID(), err)
			} else {
				r.logger.Warn("log provider failed", zap.String("provider", p.ID()), zap.Error(err))
			}
		}
	}
}

// sprint 延迟拼装内容；func() string 与 func() any 参数在通过过滤后才求值
func sprint(args []any) func() string {
	return func() string {
		return fmt.Sprint(resolve(args)...)
	}
}

func sprintf(format string, args []any) func() string {
	return func() string {
		return fmt.Sprintf(format, resolve(args)...)
	}
}

func resolve(args []any) []any {
	var out []any
	for i, arg := range args {
		var v any
		switch f := arg.(type) {
		case func() string:
			v = f()
		case func() any:
			v = f()
		default:
			continue
		}
		if out == nil {
			out = slices.Clone(args)
		}
		out[i] = v
	}
	if out == nil {
		return args
	}
	return out
}

func shortFile(file string) string {
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		return file[i+1:]
	}
	return file
}

// shortFunction 去掉包路径，保留 "包名.函数" 或 "包名.(*类型).方法"
func shortFunction(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
