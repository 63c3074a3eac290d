package xlog

import (
	"github.com/omeyang/logkit/xlog/filewriter"
)

// FileProvider 把记录写入 LineWriter
// brief 模式的写入器收到不含时间的精简行，相同调用点的重复日志才能被折叠
type FileProvider struct {
	*ChannelSet
	writer   filewriter.LineWriter
	composer *Composer
	brief    bool
}

// NewFileProvider 创建文件 Provider，Close 时一并关闭 writer
func NewFileProvider(writer filewriter.LineWriter, opts ...ProviderOption) *FileProvider {
	o := applyProviderOptions(opts)
	p := &FileProvider{
		ChannelSet: NewChannelSet(o.id, o.channels...),
		writer:     writer,
		composer:   NewComposer(o.format, o.layout),
	}
	if m, ok := writer.(interface{ Mode() filewriter.Mode }); ok {
		p.brief = m.Mode() == filewriter.Brief
	}
	return p
}

// Log 写入一行
func (p *FileProvider) Log(msg LogMessage) error {
	if p.brief {
		return p.writer.WriteLine(Brief(msg))
	}
	return p.writer.WriteLine(p.composer.Compose(msg))
}

// Flush 结束 brief 写入器尚未写出次数的重复段
func (p *FileProvider) Flush() error {
	if f, ok := p.writer.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close 关闭写入器
func (p *FileProvider) Close() error {
	return p.writer.Close()
}
