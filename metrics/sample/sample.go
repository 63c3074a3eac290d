package sample

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// SamplerType 采样器类型
type SamplerType string

const (
	// RateSamplerType 按比率采样
	RateSamplerType SamplerType = "rate"
	// JitterSamplerType 按比率采样，且两次命中之间至少间隔 jitter
	JitterSamplerType SamplerType = "jitter"
)

// Sampler 决定一条低级别日志是否保留
type Sampler interface {
	Sample() bool
	SetRate(rate float64)
	GetRate() float64
}

// New 按类型创建采样器
func New(typ SamplerType, rate float64, jitter time.Duration) (Sampler, error) {
	switch typ {
	case RateSamplerType, "":
		return NewRateSampler(rate), nil
	case JitterSamplerType:
		return NewJitterSampler(rate, jitter), nil
	default:
		return nil, fmt.Errorf("unknown sampler type %q", typ)
	}
}

func clampRate(rate float64) float64 {
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return math.Min(rate, 1)
}

// RateSampler 按比率采样
type RateSampler struct {
	// 采样率 [0,1] 映射到 [0,2^63]，用整数以便原子读写
	rate atomic.Uint64
}

// NewRateSampler 创建 RateSampler，rate 会被截断到 [0,1]
func NewRateSampler(rate float64) *RateSampler {
	s := &RateSampler{}
	s.SetRate(rate)
	return s
}

// Sample 以当前比率返回 true
func (s *RateSampler) Sample() bool {
	return rand.Uint64()>>1 < s.rate.Load()
}

// SetRate 设置采样率
func (s *RateSampler) SetRate(rate float64) {
	s.rate.Store(uint64(clampRate(rate) * (1 << 63)))
}

// GetRate 当前采样率
func (s *RateSampler) GetRate() float64 {
	return float64(s.rate.Load()) / (1 << 63)
}

// JitterSampler 在比率采样之上限制命中频率
type JitterSampler struct {
	rate   atomic.Uint64 // math.Float64bits
	jitter time.Duration
	last   atomic.Int64 // 上一次命中的 UnixNano
	now    func() time.Time
}

// NewJitterSampler 创建 JitterSampler
func NewJitterSampler(rate float64, jitter time.Duration) *JitterSampler {
	s := &JitterSampler{jitter: jitter, now: time.Now}
	s.SetRate(rate)
	return s
}

// Sample 距上次命中不足 jitter 时返回 false，否则按比率采样
func (s *JitterSampler) Sample() bool {
	now := s.now().UnixNano()
	last := s.last.Load()
	if last != 0 && now-last < int64(s.jitter) {
		return false
	}
	if rand.Float64() >= s.GetRate() {
		return false
	}
	// 并发命中时只放行一个
	return s.last.CompareAndSwap(last, now)
}

// SetRate 设置采样率
func (s *JitterSampler) SetRate(rate float64) {
	s.rate.Store(math.Float64bits(clampRate(rate)))
}

// GetRate 当前采样率
func (s *JitterSampler) GetRate() float64 {
	return math.Float64frombits(s.rate.Load())
}
