package cfg

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// BaseConfig 由 Source 与 Parser 组成的 Config 实现
// 每个观察者通道只缓存一个值：读取慢的观察者拿到的总是最新配置，不会阻塞配置源
type BaseConfig[T any] struct {
	source Source
	parser Parser[T]
	logger *zap.Logger

	current atomic.Pointer[T]

	mu       sync.Mutex
	watchers map[chan T]struct{}
	stopped  bool
	stop     chan struct{}
	stopOnce sync.Once
}

type baseOptions struct {
	logger *zap.Logger
}

// BaseConfigOption BaseConfig 的可选配置
type BaseConfigOption func(*baseOptions)

// WithLogger 设置诊断日志，无效的配置修订记录在这里
func WithLogger(logger *zap.Logger) BaseConfigOption {
	return func(o *baseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewBaseConfig 完成首次加载并跟随 source 的变更，直到 ctx 结束或 Stop
func NewBaseConfig[T any](ctx context.Context, source Source, parser Parser[T],
	opts ...BaseConfigOption) (*BaseConfig[T], error) {
	o := baseOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	bc := &BaseConfig[T]{
		source:   source,
		parser:   parser,
		logger:   o.logger,
		watchers: make(map[chan T]struct{}),
		stop:     make(chan struct{}),
	}
	if err := bc.Load(ctx); err != nil {
		return nil, err
	}
	updates, err := source.Watch(ctx)
	if err != nil {
		return nil, err
	}
	go bc.follow(ctx, updates)
	return bc, nil
}

// Load 重新读取并解析，失败时保留当前值
func (bc *BaseConfig[T]) Load(ctx context.Context) error {
	data, err := bc.source.Read(ctx)
	if err != nil {
		return err
	}
	return bc.apply(data)
}

// Get 当前配置
func (bc *BaseConfig[T]) Get() T {
	if p := bc.current.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

// Watch 先送出当前配置，之后送出每次成功解析的配置；ctx 结束或 Stop 后关闭
func (bc *BaseConfig[T]) Watch(ctx context.Context) (<-chan T, error) {
	ch := make(chan T, 1)

	bc.mu.Lock()
	ch <- bc.Get()
	if bc.stopped {
		bc.mu.Unlock()
		close(ch)
		return ch, nil
	}
	bc.watchers[ch] = struct{}{}
	bc.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			bc.unwatch(ch)
		case <-bc.stop:
		}
	}()
	return ch, nil
}

// Stop 停止跟随并关闭所有观察者，可重复调用
func (bc *BaseConfig[T]) Stop() {
	bc.stopOnce.Do(func() {
		bc.mu.Lock()
		defer bc.mu.Unlock()
		bc.stopped = true
		close(bc.stop)
		for ch := range bc.watchers {
			close(ch)
		}
		clear(bc.watchers)
	})
}

func (bc *BaseConfig[T]) follow(ctx context.Context, updates <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-bc.stop:
			return
		case data, ok := <-updates:
			if !ok {
				return
			}
			if err := bc.apply(data); err != nil {
				bc.logger.Warn("ignore invalid config revision", zap.Error(err))
			}
		}
	}
}

func (bc *BaseConfig[T]) apply(data []byte) error {
	v, err := bc.parser.Parse(data)
	if err != nil {
		return err
	}
	bc.current.Store(&v)
	bc.broadcast(v)
	return nil
}

// broadcast 用最新值替换观察者通道中尚未读取的旧值
// 只有持锁的 broadcast 会写入观察者通道，清空后写入不会阻塞
func (bc *BaseConfig[T]) broadcast(v T) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	for ch := range bc.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (bc *BaseConfig[T]) unwatch(ch chan T) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if _, ok := bc.watchers[ch]; ok {
		delete(bc.watchers, ch)
		close(ch)
	}
}
