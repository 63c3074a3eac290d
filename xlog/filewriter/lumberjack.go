package filewriter

import (
	"math"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/omeyang/logkit/xlog/rotation"
)

// Lumberjack 基于 lumberjack 的按行写入器
// 备份按时间戳重命名而不是编号平移，适合已经采用 lumberjack 目录布局的宿主
type Lumberjack struct {
	logger *lumberjack.Logger
}

// NewLumberjack 按轮转策略创建 lumberjack 写入器
// lumberjack 以 MB 和天为单位，策略中的值向上取整；MaxSize 为 0 时使用 lumberjack 的默认值 100MB。
// 注意 MaxAge 在这里只用于清理超龄的备份，活动文件不会因为年龄而轮转，只按大小轮转
func NewLumberjack(filename string, policy rotation.Policy) (*Lumberjack, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Lumberjack{
		logger: &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    ceilDiv(float64(policy.MaxSize), float64(rotation.MiB)),
			MaxAge:     ceilDiv(float64(policy.MaxAge), float64(rotation.Days(1))),
			MaxBackups: policy.MaxFiles,
			LocalTime:  true,
		},
	}, nil
}

func ceilDiv(v, unit float64) int {
	return int(math.Ceil(v / unit))
}

// WriteLine 追加一行
func (l *Lumberjack) WriteLine(line string) error {
	_, err := l.logger.Write([]byte(line + "\n"))
	return err
}

// Write 实现 io.Writer
func (l *Lumberjack) Write(p []byte) (int, error) {
	return l.logger.Write(p)
}

// Rotate 手动触发轮转
func (l *Lumberjack) Rotate() error {
	return l.logger.Rotate()
}

// Close 关闭当前文件
func (l *Lumberjack) Close() error {
	return l.logger.Close()
}

var (
	_ LineWriter = (*Writer)(nil)
	_ LineWriter = (*Lumberjack)(nil)
)
