package pool

import (
	"bytes"
	"sync"
)

// ObjectFactory 定义对象创建和重置方法的接口
type ObjectFactory[T any] interface {
	New() T
	Reset(T)
}

// Pool 泛型对象池，归还时由 factory 重置对象
type Pool[T any] struct {
	pool    sync.Pool
	factory ObjectFactory[T]
}

// New 初始化对象池并预先放入 prefill 个对象
func New[T any](factory ObjectFactory[T], prefill int) *Pool[T] {
	p := &Pool[T]{factory: factory}
	p.pool.New = func() any {
		return factory.New()
	}
	p.Fill(prefill)
	return p
}

// Get 获取对象
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put 重置并归还对象
func (p *Pool[T]) Put(item T) {
	p.factory.Reset(item)
	p.pool.Put(item)
}

// Fill 预先放入 n 个对象
func (p *Pool[T]) Fill(n int) {
	for i := 0; i < n; i++ {
		p.pool.Put(p.factory.New())
	}
}

// BufferFactory 创建与重置 *bytes.Buffer
// 容量超过 MaxCap 的缓冲区在重置时被替换，避免个别超长日志长期占用内存
type BufferFactory struct {
	InitCap int
	MaxCap  int
}

// NewBufferFactory 构造函数
func NewBufferFactory(initCap, maxCap int) *BufferFactory {
	return &BufferFactory{InitCap: initCap, MaxCap: maxCap}
}

// New 创建新的缓冲区
func (f *BufferFactory) New() *bytes.Buffer {
	return bytes.NewBuffer(make([]byte, 0, f.InitCap))
}

// Reset 清空缓冲区
func (f *BufferFactory) Reset(buf *bytes.Buffer) {
	if f.MaxCap > 0 && buf.Cap() > f.MaxCap {
		*buf = *bytes.NewBuffer(make([]byte, 0, f.InitCap))
		return
	}
	buf.Reset()
}

// BufferPool 日志行拼装使用的缓冲区池
type BufferPool = Pool[*bytes.Buffer]

// NewBufferPool 创建缓冲区池
func NewBufferPool(initCap, maxCap int) *BufferPool {
	return New[*bytes.Buffer](NewBufferFactory(initCap, maxCap), 0)
}
