package cfg

import "context"

// Config 可热更新的配置，面向使用方
// 使用方只关心当前值与变更，不关心配置来自文件还是其他来源
type Config[T any] interface {
	// Load 从来源重新读取并解析，失败时保留当前值
	Load(ctx context.Context) error
	// Get 当前值，首次加载前为零值
	Get() T
	// Watch 返回变更通道，第一个值总是调用时的当前值，之后每次成功解析送出一次。
	// 通道只缓存最新值，读取慢的观察者会跳过中间版本；ctx 结束或 Stop 后关闭
	Watch(ctx context.Context) (<-chan T, error)
	// Stop 停止跟随来源并关闭所有观察者通道，可重复调用
	Stop()
}

// Source 原始配置数据的来源，例如本地文件
type Source interface {
	// Read 读取完整内容
	Read(ctx context.Context) ([]byte, error)
	// Watch 内容变化时送出新内容；ctx 结束后关闭通道
	Watch(ctx context.Context) (<-chan []byte, error)
}

// Parser 把原始数据解析为 T；返回错误的修订不会替换当前值
type Parser[T any] interface {
	Parse(data []byte) (T, error)
}

// ParserFunc 函数适配为 Parser
type ParserFunc[T any] func(data []byte) (T, error)

// Parse 调用 f
func (f ParserFunc[T]) Parse(data []byte) (T, error) {
	return f(data)
}

// Validated 在 parser 解析成功后再调用 validate，校验失败的修订视为解析失败
func Validated[T any](parser Parser[T], validate func(T) error) Parser[T] {
	return ParserFunc[T](func(data []byte) (T, error) {
		v, err := parser.Parse(data)
		if err != nil {
			return v, err
		}
		return v, validate(v)
	})
}

var _ Config[struct{}] = (*BaseConfig[struct{}])(nil)
