package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WriterMetrics 文件写入管道的旁路计数器，按日志名打标签
// 方法对 nil 接收者安全，未配置指标时调用方无需判断
type WriterMetrics struct {
	Writes    *prometheus.CounterVec
	Bytes     *prometheus.CounterVec
	Rotations *prometheus.CounterVec
	Failures  *prometheus.CounterVec
	Collapsed *prometheus.CounterVec
}

// NewWriterMetrics 在 registerer 上注册写入指标；registerer 为 nil 时使用默认注册表
func NewWriterMetrics(registerer prometheus.Registerer) *WriterMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)
	return &WriterMetrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logkit_file_writes_total",
			Help: "Total number of messages appended to log files",
		}, []string{"log"}),
		Bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logkit_file_write_bytes_total",
			Help: "Total number of bytes appended to log files",
		}, []string{"log"}),
		Rotations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logkit_file_rotations_total",
			Help: "Total number of log file rotations",
		}, []string{"log"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logkit_file_failures_total",
			Help: "Total number of failed log file operations",
		}, []string{"log", "op"}), // op: open, append, rotate, delete
		Collapsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logkit_file_collapsed_total",
			Help: "Total number of repeated messages collapsed by brief writers",
		}, []string{"log"}),
	}
}

// ObserveWrite 记录一次成功追加
func (m *WriterMetrics) ObserveWrite(log string, n int) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(log).Inc()
	m.Bytes.WithLabelValues(log).Add(float64(n))
}

// ObserveRotation 记录一次轮转
func (m *WriterMetrics) ObserveRotation(log string) {
	if m == nil {
		return
	}
	m.Rotations.WithLabelValues(log).Inc()
}

// ObserveFailure 记录一次失败
func (m *WriterMetrics) ObserveFailure(log, op string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(log, op).Inc()
}

// ObserveCollapsed 记录一次被折叠的重复消息
func (m *WriterMetrics) ObserveCollapsed(log string) {
	if m == nil {
		return
	}
	m.Collapsed.WithLabelValues(log).Inc()
}
