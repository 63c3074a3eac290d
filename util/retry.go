package util

import "time"

// RetryPolicy 定义重试策略的接口
type RetryPolicy interface {
	// ShouldRetry 决定第 attempt 次尝试失败后是否继续重试，attempt 从 1 开始
	ShouldRetry(attempt int, err error) bool
	// WaitDuration 返回第 attempt 次失败后，应该等待多久再进行重试
	WaitDuration(attempt int) time.Duration
}

// NoRetryPolicy 不重试策略
type NoRetryPolicy struct{}

func (np *NoRetryPolicy) ShouldRetry(_ int, _ error) bool {
	return false // 永远不重试
}

func (np *NoRetryPolicy) WaitDuration(_ int) time.Duration {
	return 0
}

// SimpleRetryPolicy 是一个基于固定时间间隔和最大尝试次数的简单重试策略
type SimpleRetryPolicy struct {
	MaxAttempts int           // 最大尝试次数
	WaitTime    time.Duration // 两次重试之间的等待时间
}

// ShouldRetry 返回true如果尝试次数小于MaxAttempts
func (p *SimpleRetryPolicy) ShouldRetry(attempt int, _ error) bool {
	return attempt < p.MaxAttempts
}

// WaitDuration 返回固定的等待时间
func (p *SimpleRetryPolicy) WaitDuration(_ int) time.Duration {
	return p.WaitTime
}

// ExponentialBackoffRetryPolicy 是一个基于退避的重试策略，等待时间随尝试次数线性增长
type ExponentialBackoffRetryPolicy struct {
	BaseWaitTime time.Duration // 基础等待时间
	MaxAttempts  int           // 最大尝试次数
}

// ShouldRetry 返回true如果尝试次数小于MaxAttempts
func (p *ExponentialBackoffRetryPolicy) ShouldRetry(attempt int, _ error) bool {
	return attempt < p.MaxAttempts
}

// WaitDuration 返回等待时间，随着尝试次数增加而增加
func (p *ExponentialBackoffRetryPolicy) WaitDuration(attempt int) time.Duration {
	if attempt >= p.MaxAttempts {
		return 0
	}
	return p.BaseWaitTime * time.Duration(attempt+1)
}

// Do 按策略执行 fn，直到成功或策略拒绝重试；返回最后一次的错误
func Do(policy RetryPolicy, fn func() error) error {
	if policy == nil {
		policy = &NoRetryPolicy{}
	}
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !policy.ShouldRetry(attempt, err) {
			return err
		}
		if wait := policy.WaitDuration(attempt); wait > 0 {
			time.Sleep(wait)
		}
	}
}
